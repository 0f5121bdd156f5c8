package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/inkwell/blogapi/config"
	"github.com/inkwell/blogapi/models"
	"github.com/inkwell/blogapi/routes"
	"github.com/inkwell/blogapi/utils"
)

var dbSeq atomic.Int64

// newTestServer builds the full router against a fresh in-memory database.
// Redis is disabled so caching, the token blacklist and the state store all
// use their in-memory fallbacks.
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_DISABLED", "1")
	t.Setenv("GIN_MODE", "test")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "100000")
	t.Setenv("GIN_PATH", filepath.Join(t.TempDir(), "gin.log"))
	t.Setenv("LOG_PATH", filepath.Join(t.TempDir(), "app.log"))

	cfg := config.Load()
	require.NoError(t, utils.InitLogger(cfg))

	db := newTestDB(t)
	return routes.SetupRouter(db), db
}

func newTestDB(t *testing.T) *gorm.DB {
	// A named shared-cache database keeps all pooled connections on the
	// same in-memory store; the sequence isolates tests from each other.
	dsn := fmt.Sprintf("file:blogapi_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
		&models.PageView{},
	))
	return db
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

// fieldErrors decodes the per-field validation detail from an error envelope.
func fieldErrors(t *testing.T, env envelope) map[string]string {
	t.Helper()

	var data struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Fields
}

// registerUser creates an account through the API and returns its JWT.
func registerUser(t *testing.T, r http.Handler, username string) string {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, "register %s: %s", username, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

type postPayload struct {
	ID       uint     `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Author   string   `json:"author"`
	Category *string  `json:"category"`
	Tags     []string `json:"tag"`
}

func createPost(t *testing.T, r http.Handler, token, title, category string, tags []string) postPayload {
	t.Helper()

	body := gin.H{"title": title, "content": "some content", "tag": tags}
	if category != "" {
		body["category"] = category
	}
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/posts", token, body)
	require.Equal(t, http.StatusOK, w.Code, "create post %q: %s", title, w.Body.String())

	var data struct {
		Post postPayload `json:"post"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Post
}

type commentPayload struct {
	ID      uint             `json:"id"`
	Post    string           `json:"post"`
	Content string           `json:"content"`
	Author  string           `json:"author"`
	Parent  *uint            `json:"parent"`
	Replies []commentPayload `json:"replies"`
}

func createComment(t *testing.T, r http.Handler, token, postTitle, content string, parent *uint) commentPayload {
	t.Helper()

	body := gin.H{"post": postTitle, "content": content}
	if parent != nil {
		body["parent"] = *parent
	}
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/comments", token, body)
	require.Equal(t, http.StatusOK, w.Code, "create comment: %s", w.Body.String())

	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Comment
}

func seedTaxonomy(t *testing.T, db *gorm.DB, categories, tags []string) {
	t.Helper()
	for _, name := range categories {
		require.NoError(t, db.Create(&models.Category{Name: name}).Error)
	}
	for _, name := range tags {
		require.NoError(t, db.Create(&models.Tag{Name: name}).Error)
	}
}

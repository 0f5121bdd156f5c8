package controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/blogapi/models"
)

func TestCreateCommentValidation(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_cval")
	createPost(t, r, alice, "First Post", "", nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/comments", alice,
		gin.H{"post": "No Such Title", "content": "hi"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no such post: No Such Title", fieldErrors(t, env)["post"])

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/comments", alice,
		gin.H{"post": "First Post", "content": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldErrors(t, env), "content")

	w, env = doJSON(t, r, http.MethodPost, "/api/v1/comments", alice,
		gin.H{"post": "First Post", "content": "hi", "parent": 999})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no such parent comment: 999", fieldErrors(t, env)["parent"])
}

func TestCreateCommentParentMustSharePost(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_xpost")
	createPost(t, r, alice, "Post A", "", nil)
	createPost(t, r, alice, "Post B", "", nil)

	onA := createComment(t, r, alice, "Post A", "on a", nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/comments", alice,
		gin.H{"post": "Post B", "content": "cross", "parent": onA.ID})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "parent comment belongs to a different post",
		fieldErrors(t, env)["parent"])
}

func TestCommentAuthorIsAuthenticatedUser(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_cauthor")
	createPost(t, r, alice, "Authored Post", "", nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/comments", alice,
		gin.H{"post": "Authored Post", "content": "mine", "author": "mallory"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "alice_cauthor", data.Comment.Author)
	assert.Equal(t, "Authored Post", data.Comment.Post)
}

func TestCommentNestingThreeLevels(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_deep")
	bob := registerUser(t, r, "bob_deep")
	createPost(t, r, alice, "Deep Thread", "", nil)

	c1 := createComment(t, r, alice, "Deep Thread", "level one", nil)
	c2 := createComment(t, r, bob, "Deep Thread", "level two", &c1.ID)
	c3 := createComment(t, r, alice, "Deep Thread", "level three", &c2.ID)

	w, env := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/comments/%d", c1.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	root := data.Comment
	require.Len(t, root.Replies, 1)
	assert.Equal(t, "level two", root.Replies[0].Content)
	assert.Equal(t, "bob_deep", root.Replies[0].Author)
	require.Len(t, root.Replies[0].Replies, 1)
	assert.Equal(t, "level three", root.Replies[0].Replies[0].Content)
	assert.Equal(t, c3.ID, root.Replies[0].Replies[0].ID)
	// Leaves carry an empty replies array, not null.
	assert.NotNil(t, root.Replies[0].Replies[0].Replies)
	assert.Empty(t, root.Replies[0].Replies[0].Replies)
}

// A reply shows up twice in a listing: as a flat row of its own and nested
// under its parent's subtree.
func TestListCommentsFlatRowsCarrySubtrees(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_flat")
	post := createPost(t, r, alice, "Flat Post", "", nil)

	c1 := createComment(t, r, alice, "Flat Post", "root comment", nil)
	c2 := createComment(t, r, alice, "Flat Post", "the reply", &c1.ID)

	w, env := doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/comments?post_id=%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Items []commentPayload `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Items, 2)

	first, second := data.Items[0], data.Items[1]
	assert.Equal(t, c1.ID, first.ID)
	require.Len(t, first.Replies, 1)
	assert.Equal(t, c2.ID, first.Replies[0].ID)

	assert.Equal(t, c2.ID, second.ID)
	require.NotNil(t, second.Parent)
	assert.Equal(t, c1.ID, *second.Parent)
	assert.Empty(t, second.Replies)
}

func TestOnlyAuthorMayModifyComment(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_cown")
	bob := registerUser(t, r, "bob_cown")
	createPost(t, r, alice, "Guarded Post", "", nil)

	c := createComment(t, r, alice, "Guarded Post", "original", nil)

	w, _ := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c.ID), bob,
		gin.H{"content": "defaced"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/comments/%d", c.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "original", data.Comment.Content)

	w, env = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c.ID), alice,
		gin.H{"content": "edited"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "edited", data.Comment.Content)

	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", c.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPatchCommentParent(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_reparent")
	createPost(t, r, alice, "Movable Post", "", nil)

	c1 := createComment(t, r, alice, "Movable Post", "first root", nil)
	c2 := createComment(t, r, alice, "Movable Post", "second root", nil)
	c3 := createComment(t, r, alice, "Movable Post", "child of first", &c1.ID)

	// Move c3 under c2.
	w, env := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c3.ID), alice,
		gin.H{"parent": c2.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotNil(t, data.Comment.Parent)
	assert.Equal(t, c2.ID, *data.Comment.Parent)

	// Explicit null detaches to top level.
	w, env = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c3.ID), alice,
		gin.H{"parent": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Nil(t, data.Comment.Parent)

	// A comment cannot be moved under its own subtree.
	w, env = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c1.ID), alice,
		gin.H{"parent": c1.ID})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "a comment cannot be reparented under its own subtree",
		fieldErrors(t, env)["parent"])
}

func TestPatchCommentMovePostCarriesSubtree(t *testing.T) {
	r, db := newTestServer(t)
	alice := registerUser(t, r, "alice_move")
	origin := createPost(t, r, alice, "Origin Post", "", nil)
	target := createPost(t, r, alice, "Target Post", "", nil)

	c1 := createComment(t, r, alice, "Origin Post", "thread root", nil)
	c2 := createComment(t, r, alice, "Origin Post", "child", &c1.ID)
	c3 := createComment(t, r, alice, "Origin Post", "grandchild", &c2.ID)

	w, env := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c1.ID), alice,
		gin.H{"post": "Target Post"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Target Post", data.Comment.Post)

	// The reply subtree moves with its root and stays attached.
	require.Len(t, data.Comment.Replies, 1)
	assert.Equal(t, c2.ID, data.Comment.Replies[0].ID)
	assert.Equal(t, "Target Post", data.Comment.Replies[0].Post)
	require.Len(t, data.Comment.Replies[0].Replies, 1)
	assert.Equal(t, c3.ID, data.Comment.Replies[0].Replies[0].ID)

	var counts struct{ origin, target int64 }
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", origin.ID).Count(&counts.origin).Error)
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", target.ID).Count(&counts.target).Error)
	assert.Zero(t, counts.origin)
	assert.Equal(t, int64(3), counts.target)
}

func TestPatchCommentMoveReplyRequiresParentChange(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_replymove")
	createPost(t, r, alice, "Origin Post", "", nil)
	createPost(t, r, alice, "Target Post", "", nil)

	c1 := createComment(t, r, alice, "Origin Post", "root", nil)
	c2 := createComment(t, r, alice, "Origin Post", "reply", &c1.ID)
	c3 := createComment(t, r, alice, "Origin Post", "nested reply", &c2.ID)

	// A reply cannot leave its parent behind on the old post.
	w, env := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c2.ID), alice,
		gin.H{"post": "Target Post"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldErrors(t, env), "parent")

	// Clearing the parent in the same request detaches and moves the reply
	// together with its own subtree.
	w, env = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/comments/%d", c2.ID), alice,
		gin.H{"post": "Target Post", "parent": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Target Post", data.Comment.Post)
	assert.Nil(t, data.Comment.Parent)
	require.Len(t, data.Comment.Replies, 1)
	assert.Equal(t, c3.ID, data.Comment.Replies[0].ID)

	// The old parent keeps serializing without the departed reply.
	w, env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/comments/%d", c1.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Origin Post", data.Comment.Post)
	assert.Empty(t, data.Comment.Replies)
}

func TestUpdateCommentMovePost(t *testing.T) {
	r, _ := newTestServer(t)
	alice := registerUser(t, r, "alice_putmove")
	createPost(t, r, alice, "Origin Post", "", nil)
	createPost(t, r, alice, "Target Post", "", nil)

	c1 := createComment(t, r, alice, "Origin Post", "root", nil)
	c2 := createComment(t, r, alice, "Origin Post", "reply", &c1.ID)

	w, env := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/comments/%d", c1.ID), alice,
		gin.H{"post": "Target Post", "content": "moved root"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Comment commentPayload `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Target Post", data.Comment.Post)
	assert.Equal(t, "moved root", data.Comment.Content)
	require.Len(t, data.Comment.Replies, 1)
	assert.Equal(t, c2.ID, data.Comment.Replies[0].ID)
	assert.Equal(t, "Target Post", data.Comment.Replies[0].Post)

	// Keeping the old-post parent while moving is still rejected on PUT.
	w, env = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/comments/%d", c2.ID), alice,
		gin.H{"post": "Origin Post", "content": "stray", "parent": c1.ID})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "parent comment belongs to a different post", fieldErrors(t, env)["parent"])
}

func TestDeleteCommentRemovesSubtree(t *testing.T) {
	r, db := newTestServer(t)
	alice := registerUser(t, r, "alice_subdel")
	post := createPost(t, r, alice, "Pruned Post", "", nil)

	c1 := createComment(t, r, alice, "Pruned Post", "root", nil)
	c2 := createComment(t, r, alice, "Pruned Post", "child", &c1.ID)
	createComment(t, r, alice, "Pruned Post", "grandchild", &c2.ID)
	survivor := createComment(t, r, alice, "Pruned Post", "unrelated root", nil)

	w, env := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", c1.ID), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 3, data.Deleted)

	var remaining []models.Comment
	require.NoError(t, db.Where("post_id = ?", post.ID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, survivor.ID, remaining[0].ID)
}

package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkwell/blogapi/middleware"
	"github.com/inkwell/blogapi/models"
	"github.com/inkwell/blogapi/utils"
)

// PostController manages CRUD operations for posts.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

type postRequest struct {
	Title    string   `json:"title" binding:"required,min=1"`
	Content  string   `json:"content" binding:"required"`
	Category string   `json:"category"`
	Tags     []string `json:"tag"`
}

// CreatePost allows authenticated users to create new posts. The author is
// always the authenticated caller; any author value in the body is ignored.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40021, "validation failed",
			map[string]string{"title": "title cannot be empty"})
		return
	}
	content := utils.Sanitize(req.Content)

	category, fieldErr := p.resolveCategory(req.Category)
	if fieldErr != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40022, "validation failed", fieldErr)
		return
	}
	tags, fieldErr := p.resolveTags(req.Tags)
	if fieldErr != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40023, "validation failed", fieldErr)
		return
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{
		UserID:  userID,
		Title:   title,
		Content: content,
		Tags:    tags,
	}
	if category != nil {
		post.CategoryID = &category.ID
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	p.respondWithPost(ctx, post.ID)
}

// ListPosts returns paginated posts, newest first. Supports filtering by tag
// name and creation date plus free-text search over title, category name and
// author username.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"), 10)
	tagName := strings.TrimSpace(ctx.Query("tag__name"))
	createdAt := strings.TrimSpace(ctx.Query("created_at"))
	search := strings.TrimSpace(ctx.Query("search"))

	// Cache unfiltered listings only, to avoid cache key explosion
	unfiltered := tagName == "" && createdAt == "" && search == ""
	cacheKey := fmt.Sprintf("cache:posts:list:page=%d:size=%d", page, pageSize)
	if unfiltered {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	query := p.db.Model(&models.Post{}).
		Preload("User").Preload("Category").Preload("Tags").
		Order("posts.created_at DESC")

	if tagName != "" {
		query = query.
			Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", tagName)
	}
	if createdAt != "" {
		query = query.Where("DATE(posts.created_at) = DATE(?)", createdAt)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.
			Joins("JOIN users ON users.id = posts.user_id").
			Joins("LEFT JOIN categories ON categories.id = posts.category_id").
			Where("posts.title LIKE ? OR categories.name LIKE ? OR users.username LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}

	var posts []models.Post
	offset := (page - 1) * pageSize
	if err := query.Select("posts.*").Offset(offset).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	items := make([]models.PostView, 0, len(posts))
	for _, post := range posts {
		items = append(items, post.View())
	}

	payload := gin.H{
		"items":      items,
		"pagination": paginationMeta(page, pageSize, total),
	}
	if unfiltered {
		utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes("cache:post:detail:" + postID); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var post models.Post
	if err := p.db.Preload("User").Preload("Category").Preload("Tags").First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	payload := gin.H{"post": post.View()}
	utils.CacheSetJSON("cache:post:detail:"+postID, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}

// UpdatePost replaces a post's content. Only the author may do this.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	post, ok := p.loadOwnedPost(ctx)
	if !ok {
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40021, "validation failed",
			map[string]string{"title": "title cannot be empty"})
		return
	}

	category, fieldErr := p.resolveCategory(req.Category)
	if fieldErr != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40022, "validation failed", fieldErr)
		return
	}
	tags, fieldErr := p.resolveTags(req.Tags)
	if fieldErr != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40023, "validation failed", fieldErr)
		return
	}

	post.Title = title
	post.Content = utils.Sanitize(req.Content)
	post.CategoryID = nil
	if category != nil {
		post.CategoryID = &category.ID
	}

	if err := p.savePost(post, &tags); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update post")
		return
	}

	p.invalidatePost(post.ID)
	p.respondWithPost(ctx, post.ID)
}

// PatchPost partially updates a post. Only the author may do this.
func (p *PostController) PatchPost(ctx *gin.Context) {
	var req struct {
		Title    *string   `json:"title"`
		Content  *string   `json:"content"`
		Category *string   `json:"category"`
		Tags     *[]string `json:"tag"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	post, ok := p.loadOwnedPost(ctx)
	if !ok {
		return
	}

	if req.Title != nil {
		title := utils.Sanitize(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40021, "validation failed",
				map[string]string{"title": "title cannot be empty"})
			return
		}
		post.Title = title
	}
	if req.Content != nil {
		post.Content = utils.Sanitize(*req.Content)
	}
	if req.Category != nil {
		category, fieldErr := p.resolveCategory(*req.Category)
		if fieldErr != nil {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40022, "validation failed", fieldErr)
			return
		}
		post.CategoryID = nil
		if category != nil {
			post.CategoryID = &category.ID
		}
	}

	var tags *[]models.Tag
	if req.Tags != nil {
		resolved, fieldErr := p.resolveTags(*req.Tags)
		if fieldErr != nil {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40023, "validation failed", fieldErr)
			return
		}
		tags = &resolved
	}

	if err := p.savePost(post, tags); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update post")
		return
	}

	p.invalidatePost(post.ID)
	p.respondWithPost(ctx, post.ID)
}

// DeletePost removes a post and, transitively, all its comments. Only the
// author may do this.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, ok := p.loadOwnedPost(ctx)
	if !ok {
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(post).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete post")
		return
	}

	p.invalidatePost(post.ID)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// loadOwnedPost fetches the post from the id path param and enforces the
// authorship policy: 404 when missing, 403 when the caller is not the author.
func (p *PostController) loadOwnedPost(ctx *gin.Context) (*models.Post, bool) {
	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return nil, false
	}

	if !middleware.IsOwner(ctx, post) {
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only modify your own posts")
		return nil, false
	}
	return &post, true
}

func (p *PostController) savePost(post *models.Post, tags *[]models.Tag) error {
	if err := p.db.Save(post).Error; err != nil {
		return err
	}
	if tags != nil {
		return p.db.Model(post).Association("Tags").Replace(*tags)
	}
	return nil
}

// resolveCategory resolves a category by its name (natural key). An empty
// name means no category; an unknown name is a validation error.
func (p *PostController) resolveCategory(name string) (*models.Category, map[string]string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var category models.Category
	if err := p.db.Where("name = ?", name).First(&category).Error; err != nil {
		return nil, map[string]string{"category": fmt.Sprintf("no such category: %s", name)}
	}
	return &category, nil
}

// resolveTags resolves tag names to existing tags. Unknown names are
// validation errors; tags are never auto-created on post writes.
func (p *PostController) resolveTags(names []string) ([]models.Tag, map[string]string) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var tag models.Tag
		if err := p.db.Where("name = ?", name).First(&tag).Error; err != nil {
			return nil, map[string]string{"tag": fmt.Sprintf("no such tag: %s", name)}
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (p *PostController) respondWithPost(ctx *gin.Context, id uint) {
	var post models.Post
	if err := p.db.Preload("User").Preload("Category").Preload("Tags").First(&post, id).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}
	utils.Success(ctx, gin.H{"post": post.View()})
}

func (p *PostController) invalidatePost(id uint) {
	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix("cache:post:detail:" + strconv.Itoa(int(id)))
}

func parsePagination(pageStr, sizeStr string, defaultSize int) (int, int) {
	page := 1
	pageSize := defaultSize
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func paginationMeta(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

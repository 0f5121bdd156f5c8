package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkwell/blogapi/middleware"
	"github.com/inkwell/blogapi/models"
	"github.com/inkwell/blogapi/utils"
)

// CommentController manages CRUD operations for threaded comments. Comments
// reference their post by title and their parent comment by id; each read
// carries the comment's entire reply subtree.
type CommentController struct {
	db *gorm.DB
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{db: db}
}

// CreateComment creates a comment or a reply. The post is resolved by its
// title, the optional parent by numeric id, and the parent must belong to
// the same post. The author is always the authenticated caller regardless
// of anything in the request body.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req struct {
		Post    string `json:"post"`
		Content string `json:"content"`
		Parent  *uint  `json:"parent"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	fields := map[string]string{}
	title := strings.TrimSpace(req.Post)
	if title == "" {
		fields["post"] = "this field is required"
	}
	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		fields["content"] = "content cannot be empty"
	}
	if len(fields) > 0 {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40031, "validation failed", fields)
		return
	}

	var post models.Post
	if err := c.db.Where("title = ?", title).First(&post).Error; err != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40032, "validation failed",
			map[string]string{"post": fmt.Sprintf("no such post: %s", title)})
		return
	}

	if req.Parent != nil {
		var parent models.Comment
		if err := c.db.First(&parent, *req.Parent).Error; err != nil {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40033, "validation failed",
				map[string]string{"parent": fmt.Sprintf("no such parent comment: %d", *req.Parent)})
			return
		}
		if parent.PostID != post.ID {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40034, "validation failed",
				map[string]string{"parent": "parent comment belongs to a different post"})
			return
		}
	}

	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		UserID:   userID,
		ParentID: req.Parent,
		Content:  content,
	}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create comment")
		return
	}

	c.respondWithComment(ctx, comment)
}

// ListComments returns paginated comments, optionally restricted to a single
// post via the post_id query parameter. Every matching row is serialized
// with its own nested subtree, so replies show up both under their parent
// and as flat entries of their own.
func (c *CommentController) ListComments(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"), 20)

	query := c.db.Model(&models.Comment{}).Order("id ASC")
	if postID := strings.TrimSpace(ctx.Query("post_id")); postID != "" {
		query = query.Where("post_id = ?", postID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to count comments")
		return
	}

	var comments []models.Comment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to list comments")
		return
	}

	postIDs := make([]uint, 0, len(comments))
	for _, cmt := range comments {
		postIDs = append(postIDs, cmt.PostID)
	}
	forest, err := c.forestFor(utils.UniqueUint(postIDs))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to load comment tree")
		return
	}

	items := make([]models.CommentNode, 0, len(comments))
	for _, cmt := range comments {
		items = append(items, forest.Node(cmt))
	}

	utils.Success(ctx, gin.H{
		"items":      items,
		"pagination": paginationMeta(page, pageSize, total),
	})
}

// GetComment returns a single comment with its full reply subtree.
func (c *CommentController) GetComment(ctx *gin.Context) {
	var comment models.Comment
	if err := c.db.First(&comment, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40420, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to load comment")
		return
	}

	c.respondWithComment(ctx, comment)
}

// UpdateComment replaces a comment. Only the author may do this.
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	var req struct {
		Post    string `json:"post"`
		Content string `json:"content"`
		Parent  *uint  `json:"parent"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	comment, ok := c.loadOwnedComment(ctx)
	if !ok {
		return
	}

	fields := map[string]string{}
	title := strings.TrimSpace(req.Post)
	if title == "" {
		fields["post"] = "this field is required"
	}
	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		fields["content"] = "content cannot be empty"
	}
	if len(fields) > 0 {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40031, "validation failed", fields)
		return
	}

	var post models.Post
	if err := c.db.Where("title = ?", title).First(&post).Error; err != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40032, "validation failed",
			map[string]string{"post": fmt.Sprintf("no such post: %s", title)})
		return
	}

	if fieldErr := c.validateParent(comment, post.ID, req.Parent); fieldErr != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40034, "validation failed", fieldErr)
		return
	}

	fromPostID := comment.PostID
	comment.PostID = post.ID
	comment.Content = content
	comment.ParentID = req.Parent

	if err := c.saveComment(comment, fromPostID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to update comment")
		return
	}

	c.respondWithComment(ctx, *comment)
}

// PatchComment partially updates a comment. Only the author may do this.
// Parent accepts an id or null; null detaches the comment to top level.
func (c *CommentController) PatchComment(ctx *gin.Context) {
	var req struct {
		Post    *string         `json:"post"`
		Content *string         `json:"content"`
		Parent  json.RawMessage `json:"parent"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	comment, ok := c.loadOwnedComment(ctx)
	if !ok {
		return
	}

	fromPostID := comment.PostID
	targetPostID := comment.PostID

	if req.Post != nil {
		title := strings.TrimSpace(*req.Post)
		var post models.Post
		if err := c.db.Where("title = ?", title).First(&post).Error; err != nil {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40032, "validation failed",
				map[string]string{"post": fmt.Sprintf("no such post: %s", title)})
			return
		}
		targetPostID = post.ID
	}
	if req.Content != nil {
		content := utils.Sanitize(*req.Content)
		if strings.TrimSpace(content) == "" {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40031, "validation failed",
				map[string]string{"content": "content cannot be empty"})
			return
		}
		comment.Content = content
	}

	parentID := comment.ParentID
	parentSet := len(req.Parent) > 0
	if parentSet {
		parentID = nil
		if string(req.Parent) != "null" {
			id, err := strconv.ParseUint(string(req.Parent), 10, 32)
			if err != nil {
				utils.ErrorFields(ctx, http.StatusBadRequest, 40034, "validation failed",
					map[string]string{"parent": "parent must be a comment id or null"})
				return
			}
			v := uint(id)
			parentID = &v
		}
	}

	// A reply's parent lives on its post. Moving the reply elsewhere while
	// keeping that parent would split the pair across posts.
	if targetPostID != fromPostID && !parentSet && comment.ParentID != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40034, "validation failed",
			map[string]string{"parent": "reassign or clear parent when moving a reply to another post"})
		return
	}
	if parentSet {
		if fieldErr := c.validateParent(comment, targetPostID, parentID); fieldErr != nil {
			utils.ErrorFields(ctx, http.StatusBadRequest, 40034, "validation failed", fieldErr)
			return
		}
	}

	comment.PostID = targetPostID
	comment.ParentID = parentID

	if err := c.saveComment(comment, fromPostID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to update comment")
		return
	}

	c.respondWithComment(ctx, *comment)
}

// saveComment persists the comment and, when it moved to another post, drags
// its whole reply subtree along. Replies live on the same post as their
// ancestor, so a post change cascades down the tree in one transaction.
func (c *CommentController) saveComment(comment *models.Comment, fromPostID uint) error {
	var subtree []uint
	if comment.PostID != fromPostID {
		forest, err := c.forestFor([]uint{fromPostID})
		if err != nil {
			return err
		}
		subtree = forest.Subtree(*comment)
	}

	return c.db.Transaction(func(tx *gorm.DB) error {
		if len(subtree) > 0 {
			if err := tx.Model(&models.Comment{}).Where("id IN ?", subtree).
				Update("post_id", comment.PostID).Error; err != nil {
				return err
			}
		}
		return tx.Save(comment).Error
	})
}

// DeleteComment removes a comment and its whole reply subtree. Only the
// author may do this.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	comment, ok := c.loadOwnedComment(ctx)
	if !ok {
		return
	}

	forest, err := c.forestFor([]uint{comment.PostID})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to load comment tree")
		return
	}
	ids := forest.Subtree(*comment)

	if err := c.db.Where("id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50037, "failed to delete comment")
		return
	}

	utils.Success(ctx, gin.H{"message": "comment deleted", "deleted": len(ids)})
}

// loadOwnedComment fetches the comment from the id path param and enforces
// the authorship policy: 404 when missing, 403 when the caller is not the
// author.
func (c *CommentController) loadOwnedComment(ctx *gin.Context) (*models.Comment, bool) {
	var comment models.Comment
	if err := c.db.First(&comment, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40420, "comment not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to load comment")
		return nil, false
	}

	if !middleware.IsOwner(ctx, comment) {
		utils.Error(ctx, http.StatusForbidden, 40320, "you can only modify your own comments")
		return nil, false
	}
	return &comment, true
}

// validateParent checks a new parent id against the target post and the
// comment's own subtree: replies must stay on the same post and a comment
// can never become a descendant of itself.
func (c *CommentController) validateParent(comment *models.Comment, postID uint, parentID *uint) map[string]string {
	if parentID == nil {
		return nil
	}

	var parent models.Comment
	if err := c.db.First(&parent, *parentID).Error; err != nil {
		return map[string]string{"parent": fmt.Sprintf("no such parent comment: %d", *parentID)}
	}
	if parent.PostID != postID {
		return map[string]string{"parent": "parent comment belongs to a different post"}
	}

	forest, err := c.forestFor([]uint{comment.PostID})
	if err != nil {
		return map[string]string{"parent": "failed to validate parent"}
	}
	for _, id := range forest.Subtree(*comment) {
		if id == *parentID {
			return map[string]string{"parent": "a comment cannot be reparented under its own subtree"}
		}
	}
	return nil
}

// forestFor loads every comment of the given posts, in creation order,
// together with the post titles and usernames needed for serialization.
func (c *CommentController) forestFor(postIDs []uint) (*models.CommentForest, error) {
	var rows []models.Comment
	if len(postIDs) > 0 {
		if err := c.db.Where("post_id IN ?", postIDs).Order("id ASC").Find(&rows).Error; err != nil {
			return nil, err
		}
	}

	titles := make(map[uint]string, len(postIDs))
	if len(postIDs) > 0 {
		var posts []models.Post
		if err := c.db.Find(&posts, postIDs).Error; err != nil {
			return nil, err
		}
		for _, p := range posts {
			titles[p.ID] = p.Title
		}
	}

	userIDs := make([]uint, 0, len(rows))
	for _, r := range rows {
		userIDs = append(userIDs, r.UserID)
	}
	usernames := make(map[uint]string)
	if len(userIDs) > 0 {
		var users []models.User
		if err := c.db.Find(&users, utils.UniqueUint(userIDs)).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}

	return models.NewCommentForest(rows, titles, usernames), nil
}

func (c *CommentController) respondWithComment(ctx *gin.Context, comment models.Comment) {
	forest, err := c.forestFor([]uint{comment.PostID})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to load comment tree")
		return
	}
	utils.Success(ctx, gin.H{"comment": forest.Node(comment)})
}

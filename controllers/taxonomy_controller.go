package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkwell/blogapi/models"
	"github.com/inkwell/blogapi/utils"
)

// TaxonomyController manages CRUD for categories and tags. Both are plain
// named entities; deleting one detaches it from posts instead of deleting
// the posts.
type TaxonomyController struct {
	db *gorm.DB
}

// NewTaxonomyController creates a new TaxonomyController instance.
func NewTaxonomyController(db *gorm.DB) *TaxonomyController {
	return &TaxonomyController{db: db}
}

type nameRequest struct {
	Name string `json:"name" binding:"required,min=1"`
}

// ListCategories returns all categories.
func (t *TaxonomyController) ListCategories(ctx *gin.Context) {
	var categories []models.Category
	if err := t.db.Order("id ASC").Find(&categories).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list categories")
		return
	}
	utils.Success(ctx, gin.H{"items": categories})
}

// GetCategory returns a single category.
func (t *TaxonomyController) GetCategory(ctx *gin.Context) {
	var category models.Category
	if err := t.db.First(&category, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40430, "category not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load category")
		return
	}
	utils.Success(ctx, gin.H{"category": category})
}

// CreateCategory creates a category with a globally unique name.
func (t *TaxonomyController) CreateCategory(ctx *gin.Context) {
	name, ok := bindName(ctx)
	if !ok {
		return
	}

	var existing models.Category
	if err := t.db.Where("name = ?", name).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40902, "category already exists")
		return
	}

	category := models.Category{Name: name}
	if err := t.db.Create(&category).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create category")
		return
	}
	utils.Success(ctx, gin.H{"category": category})
}

// UpdateCategory renames a category.
func (t *TaxonomyController) UpdateCategory(ctx *gin.Context) {
	name, ok := bindName(ctx)
	if !ok {
		return
	}

	var category models.Category
	if err := t.db.First(&category, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40430, "category not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load category")
		return
	}

	category.Name = name
	if err := t.db.Save(&category).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to update category")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, gin.H{"category": category})
}

// DeleteCategory removes a category. Posts referencing it keep existing
// with their category cleared.
func (t *TaxonomyController) DeleteCategory(ctx *gin.Context) {
	var category models.Category
	if err := t.db.First(&category, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40430, "category not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load category")
		return
	}

	err := t.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("category_id = ?", category.ID).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to delete category")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, gin.H{"message": "category deleted"})
}

// ListTags returns all tags.
func (t *TaxonomyController) ListTags(ctx *gin.Context) {
	var tags []models.Tag
	if err := t.db.Order("id ASC").Find(&tags).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to list tags")
		return
	}
	utils.Success(ctx, gin.H{"items": tags})
}

// GetTag returns a single tag.
func (t *TaxonomyController) GetTag(ctx *gin.Context) {
	var tag models.Tag
	if err := t.db.First(&tag, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40431, "tag not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load tag")
		return
	}
	utils.Success(ctx, gin.H{"tag": tag})
}

// CreateTag creates a tag with a globally unique name.
func (t *TaxonomyController) CreateTag(ctx *gin.Context) {
	name, ok := bindName(ctx)
	if !ok {
		return
	}

	var existing models.Tag
	if err := t.db.Where("name = ?", name).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40903, "tag already exists")
		return
	}

	tag := models.Tag{Name: name}
	if err := t.db.Create(&tag).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to create tag")
		return
	}
	utils.Success(ctx, gin.H{"tag": tag})
}

// UpdateTag renames a tag.
func (t *TaxonomyController) UpdateTag(ctx *gin.Context) {
	name, ok := bindName(ctx)
	if !ok {
		return
	}

	var tag models.Tag
	if err := t.db.First(&tag, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40431, "tag not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load tag")
		return
	}

	tag.Name = name
	if err := t.db.Save(&tag).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50048, "failed to update tag")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, gin.H{"tag": tag})
}

// DeleteTag removes a tag from the system and from every post's tag set.
func (t *TaxonomyController) DeleteTag(ctx *gin.Context) {
	var tag models.Tag
	if err := t.db.First(&tag, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40431, "tag not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load tag")
		return
	}

	err := t.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("Posts").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50049, "failed to delete tag")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, gin.H{"message": "tag deleted"})
}

func bindName(ctx *gin.Context) (string, bool) {
	var req nameRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40040, "validation failed",
			map[string]string{"name": "this field is required"})
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		utils.ErrorFields(ctx, http.StatusBadRequest, 40040, "validation failed",
			map[string]string{"name": "name cannot be empty"})
		return "", false
	}
	return name, true
}

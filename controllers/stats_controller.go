package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkwell/blogapi/models"
	"github.com/inkwell/blogapi/utils"
)

// StatsController provides blog statistics such as entity counts and views.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate statistics for the blog.
func (s *StatsController) GetStats(ctx *gin.Context) {
	counts := map[string]int64{}
	for name, model := range map[string]interface{}{
		"user_count":     &models.User{},
		"post_count":     &models.Post{},
		"comment_count":  &models.Comment{},
		"category_count": &models.Category{},
		"tag_count":      &models.Tag{},
	} {
		var n int64
		// Fall back to 0 instead of failing the whole endpoint
		if err := s.db.Model(model).Count(&n).Error; err != nil {
			n = 0
		}
		counts[name] = n
	}

	// Views today, summed across all post paths.
	var viewsToday int64
	today := time.Now().In(time.Local).Format("2006-01-02")
	if err := s.db.Model(&models.PageView{}).
		Where("DATE(date) = DATE(?)", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&viewsToday).Error; err != nil {
		viewsToday = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":     counts["user_count"],
		"post_count":     counts["post_count"],
		"comment_count":  counts["comment_count"],
		"category_count": counts["category_count"],
		"tag_count":      counts["tag_count"],
		"views_today":    viewsToday,
	})
}

// GetPostStats returns total views and comment count for a given post id.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id := ctx.Param("id")

	var views int64
	if err := s.db.Model(&models.PageView{}).
		Where("path = ?", "/api/v1/posts/"+id).
		Select("COALESCE(SUM(count),0)").
		Scan(&views).Error; err != nil {
		views = 0
	}

	var commentCount int64
	if err := s.db.Model(&models.Comment{}).Where("post_id = ?", id).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	utils.Success(ctx, gin.H{
		"views":         views,
		"comment_count": commentCount,
	})
}

package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkwell/blogapi/config"
	"github.com/inkwell/blogapi/controllers"
	"github.com/inkwell/blogapi/middleware"
	"github.com/inkwell/blogapi/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Record post views after each request
	r.Use(middleware.PostViewRecorder(db))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db)
	commentController := controllers.NewCommentController(db)
	taxonomyController := controllers.NewTaxonomyController(db)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Safe methods are public, anonymous callers included
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)
	api.GET("/comments", commentController.ListComments)
	api.GET("/comments/:id", commentController.GetComment)
	api.GET("/category", taxonomyController.ListCategories)
	api.GET("/category/:id", taxonomyController.GetCategory)
	api.GET("/tags", taxonomyController.ListTags)
	api.GET("/tags/:id", taxonomyController.GetTag)
	api.GET("/users", authController.ListUsers)
	api.GET("/stats", statsController.GetStats)
	api.GET("/posts/:id/stats", statsController.GetPostStats)

	// Mutations require an authenticated caller; the group middleware
	// rejects unauthenticated requests before any object is loaded.
	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.PATCH("/posts/:id", postController.PatchPost)
	protected.DELETE("/posts/:id", postController.DeletePost)

	protected.POST("/comments", commentController.CreateComment)
	protected.PUT("/comments/:id", commentController.UpdateComment)
	protected.PATCH("/comments/:id", commentController.PatchComment)
	protected.DELETE("/comments/:id", commentController.DeleteComment)

	protected.POST("/category", taxonomyController.CreateCategory)
	protected.PUT("/category/:id", taxonomyController.UpdateCategory)
	protected.PATCH("/category/:id", taxonomyController.UpdateCategory)
	protected.DELETE("/category/:id", taxonomyController.DeleteCategory)

	protected.POST("/tags", taxonomyController.CreateTag)
	protected.PUT("/tags/:id", taxonomyController.UpdateTag)
	protected.PATCH("/tags/:id", taxonomyController.UpdateTag)
	protected.DELETE("/tags/:id", taxonomyController.DeleteTag)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"friendbook/handlers"
	"friendbook/middleware"
)

type Options struct {
	JWTSecret string
	// AuthLimiter throttles /api/auth per client IP. Nil disables it.
	AuthLimiter  middleware.Limiter
	AllowOrigins []string
	Logger       *zap.Logger
}

func SetupRouter(h *handlers.Handler, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger), gin.Recovery())
	router.Use(cors.New(corsConfig(opts.AllowOrigins)))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	}
	router.GET("/", health)
	router.GET("/health", health)
	router.GET("/api/health", health)

	// Uploaded media is public
	router.GET("/uploads/:name", h.ServeMedia)

	// Registration and login
	auth := router.Group("/api/auth")
	if opts.AuthLimiter != nil {
		auth.Use(middleware.RateLimitMiddleware(opts.AuthLimiter, logger))
	}
	auth.POST("/register", h.Register)
	auth.POST("/verify-otp", h.VerifyOTP)
	auth.GET("/verify-email/:token", h.VerifyEmail)
	auth.POST("/login", h.Login)

	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware(opts.JWTSecret))

	// Posts
	protected.GET("/posts", h.ListPosts)
	protected.POST("/posts", h.CreatePost)
	protected.GET("/posts/:id", h.GetPost)
	protected.GET("/posts/:id/likes", h.ListLikers)
	protected.PUT("/posts/:id/like", h.ToggleLike)
	protected.POST("/posts/:id/comment", h.AddComment)
	protected.PUT("/posts/:id", h.UpdatePost)
	protected.DELETE("/posts/:id/media", h.DeleteMedia)
	protected.DELETE("/posts/:id", h.DeletePost)

	// Users
	protected.GET("/users/me", h.GetMyProfile)
	protected.GET("/users/:id", h.GetUser)
	protected.GET("/users/:id/posts", h.GetUserPosts)
	protected.PATCH("/users/:id/profile", h.UpdateProfileImages)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Route not found", "code": "NOT_FOUND"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Credentials cannot be combined with a wildcard origin.
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

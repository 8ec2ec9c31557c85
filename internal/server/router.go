package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/studyloop/studyloop-backend/internal/handlers"
	"github.com/studyloop/studyloop-backend/internal/middleware"
	"github.com/studyloop/studyloop-backend/internal/pkg/envutil"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	SessionHandler  *handlers.SessionHandler
	QuizHandler     *handlers.QuizHandler
	ProgressHandler *handlers.ProgressHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("studyloop-backend"))

	origins := envutil.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", nil)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(origins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/sessions", cfg.SessionHandler.Create)
		protected.GET("/sessions/current", cfg.SessionHandler.Current)
		protected.POST("/sessions/:id/complete", cfg.SessionHandler.Complete)
		protected.POST("/sessions/:id/chat", cfg.SessionHandler.Chat)
		protected.GET("/sessions/:id/chat", cfg.SessionHandler.ChatHistory)

		protected.POST("/quizzes/generate", cfg.QuizHandler.Generate)
		protected.POST("/quizzes/:id/submit", cfg.QuizHandler.Submit)
		protected.GET("/quizzes/results", cfg.QuizHandler.Results)

		protected.GET("/progress", cfg.ProgressHandler.Overall)
		protected.GET("/progress/topics", cfg.ProgressHandler.Topics)
		protected.GET("/reviews", cfg.ProgressHandler.Reviews)
	}

	return router
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studyloop/studyloop-backend/internal/clients/openai"
	"github.com/studyloop/studyloop-backend/internal/clients/redis"
	"github.com/studyloop/studyloop-backend/internal/db"
	"github.com/studyloop/studyloop-backend/internal/handlers"
	"github.com/studyloop/studyloop-backend/internal/middleware"
	"github.com/studyloop/studyloop-backend/internal/observability"
	"github.com/studyloop/studyloop-backend/internal/pkg/envutil"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/repos"
	"github.com/studyloop/studyloop-backend/internal/server"
	"github.com/studyloop/studyloop-backend/internal/services"
	"github.com/studyloop/studyloop-backend/internal/store"
	"github.com/studyloop/studyloop-backend/internal/temporalx"
	"github.com/studyloop/studyloop-backend/internal/temporalx/temporalworker"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	traceShutdown := observability.InitTracing(rootCtx, log, observability.Config{
		ServiceName: "studyloop-backend",
		Environment: envutil.GetEnv("APP_ENV", "development", log),
		Version:     envutil.GetEnv("APP_VERSION", "dev", log),
	})

	// Database
	log.Info("Setting up database from main...")
	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	gormDB := dbService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(gormDB, log)
	userStateRepo := repos.NewUserStateRepo(gormDB, log)

	// Store
	stateStore := store.New(userStateRepo, log)

	// Clients
	log.Info("Setting up clients from main...")
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init AI client", "error", err)
		os.Exit(1)
	}
	cache, err := redis.NewCache(log)
	if err != nil {
		log.Warn("Redis cache unavailable; quiz caching disabled", "error", err)
		cache = nil
	}
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Could not init Temporal client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services from main...")
	authService, err := services.NewAuthService(log, userRepo)
	if err != nil {
		log.Error("Could not init AuthService", "error", err)
		os.Exit(1)
	}
	workflowService := services.NewWorkflowService(log, temporalClient)
	studyService := services.NewStudyService(log, stateStore, aiClient, workflowService)

	// Handlers and middleware
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(log, authService)
	sessionHandler := handlers.NewSessionHandler(log, studyService)
	quizHandler := handlers.NewQuizHandler(log, studyService)
	progressHandler := handlers.NewProgressHandler(log, studyService)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		SessionHandler:  sessionHandler,
		QuizHandler:     quizHandler,
		ProgressHandler: progressHandler,
		AuthMiddleware:  authMiddleware,
	})

	port := envutil.GetEnv("PORT", "8080", log)
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(rootCtx)

	// Temporal worker
	if temporalClient != nil {
		worker, err := temporalworker.NewRunner(log, temporalClient, stateStore, aiClient, cache)
		if err != nil {
			log.Error("Could not init Temporal worker", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			return worker.Start(gCtx)
		})
	} else {
		log.Warn("TEMPORAL_ADDRESS not set; workflows disabled")
	}

	// HTTP server
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Shutdown
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown error", "error", err)
		}
		if cache != nil {
			if err := cache.Close(); err != nil {
				log.Warn("Redis close error", "error", err)
			}
		}
		if temporalClient != nil {
			temporalClient.Close()
		}
		if traceShutdown != nil {
			if err := traceShutdown(shutdownCtx); err != nil {
				log.Warn("Trace shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Fatal", "error", err)
		os.Exit(1)
	}
}

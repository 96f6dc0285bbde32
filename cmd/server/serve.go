package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"logima-backend/docs"
	"logima-backend/internal/config"
	"logima-backend/internal/database"
	"logima-backend/internal/events"
	"logima-backend/internal/handlers"
	"logima-backend/internal/logging"
	"logima-backend/internal/metrics"
	"logima-backend/internal/middleware"
	"logima-backend/internal/openai"
	"logima-backend/internal/services"
	"logima-backend/internal/storage"
	"logima-backend/internal/workpool"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Environment, cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.BaseURL != "" {
		if baseURL, err := url.Parse(cfg.BaseURL); err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	db, err := database.NewDatabaseClient(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.RunMigrations {
		migrator, err := database.NewMigrator(db.DB(), logger)
		if err != nil {
			return err
		}
		if err := migrator.Up(ctx); err != nil {
			return err
		}
	}

	awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
	})
	if err != nil {
		return err
	}
	s3Client := storage.NewS3Client(awsCfg, storage.S3Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.AWSRegion,
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
		SSEAlgorithm:  cfg.S3SSEAlgorithm,
		KMSKeyID:      cfg.S3KMSKeyID,
	})

	var queue events.SQSAPI
	if cfg.SQSUploadsQueueURL != "" {
		queue = sqs.NewFromConfig(awsCfg)
	}
	notifier := events.NewNotifier(cfg.SQSUploadsQueueURL, queue, logger)

	var model services.Completer
	if cfg.OpenAIAPIKey != "" {
		model = openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, project outcomes will use the fallback text")
	}

	pool := workpool.New(cfg.BlockingCallConcurrency)
	m := metrics.New()

	uploadService := services.NewUploadService(s3Client, db, notifier, pool, m, services.UploadPolicy{
		KeyPrefix:           cfg.S3KeyPrefix,
		MaxBytes:            cfg.S3MaxBytes,
		AllowedContentTypes: cfg.S3AllowedContentTypes,
		PresignExpires:      cfg.S3PresignExpires,
	}, logger)
	outcomeService := services.NewOutcomeService(model, pool, services.OutcomeOptions{
		Timeout:    cfg.OutcomeTimeout,
		Retries:    cfg.OutcomeRetries,
		RetryDelay: cfg.OutcomeRetryDelay,
	}, m, logger)
	projectService := services.NewProjectService(db, outcomeService, logger)
	authService := services.NewAuthService(db, cfg.SecretKey, cfg.AccessTokenTTL, logger)

	router := newRouter(cfg, logger, m, routes{
		auth:     handlers.NewAuthHandler(authService, handlers.CookieSettingsFromConfig(cfg)),
		oauth:    handlers.NewGoogleOAuthHandler(authService, cfg),
		projects: handlers.NewProjectsHandler(projectService),
		uploads:  handlers.NewUploadsHandler(uploadService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("events", notifier.Mode().String()).
			Int("blocking_call_concurrency", pool.Size()).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	uploadService.Wait()
	return nil
}

type routes struct {
	auth     *handlers.AuthHandler
	oauth    *handlers.OAuthHandler
	projects *handlers.ProjectsHandler
	uploads  *handlers.UploadsHandler
}

func newRouter(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics, r routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(m.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", middleware.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", handlers.HealthHandler)
	router.GET("/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	requireAuth := middleware.AuthMiddleware(cfg)
	requireCSRF := middleware.CSRFMiddleware()

	authGroup := router.Group("/auth")
	authGroup.POST("/register", r.auth.Register)
	authGroup.POST("/login", r.auth.Login)
	authGroup.POST("/logout", r.auth.Logout)
	authGroup.GET("/me", requireAuth, r.auth.Me)
	authGroup.GET("/google/login", r.oauth.Login)
	authGroup.GET("/google/callback", r.oauth.Callback)

	projects := router.Group("/projects", requireAuth, requireCSRF)
	projects.GET("", r.projects.ListProjects)
	projects.POST("", r.projects.CreateProject)
	projects.GET("/:project_id", r.projects.GetProject)
	projects.PATCH("/:project_id", r.projects.UpdateProject)
	projects.DELETE("/:project_id", r.projects.DeleteProject)
	projects.POST("/:project_id/refresh-outcome", r.projects.RefreshOutcome)

	uploads := router.Group("/uploads", requireAuth, requireCSRF)
	uploads.POST("/presign-post", r.uploads.PresignPost)
	uploads.POST("/confirm", r.uploads.ConfirmUpload)

	return router
}

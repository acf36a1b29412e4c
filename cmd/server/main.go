package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/background"
	"github.com/approvalkit/slack-workflow-engine/internal/config"
	"github.com/approvalkit/slack-workflow-engine/internal/home"
	"github.com/approvalkit/slack-workflow-engine/internal/repository"
	"github.com/approvalkit/slack-workflow-engine/internal/slackkit"
	"github.com/approvalkit/slack-workflow-engine/internal/webhook"
	"github.com/approvalkit/slack-workflow-engine/internal/workflow"
	"github.com/approvalkit/slack-workflow-engine/pkg/database"
	"github.com/approvalkit/slack-workflow-engine/pkg/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Slack Workflow Engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Load workflow definitions
	registry, err := workflow.LoadRegistry(cfg.Workflows.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to load workflow definitions", zap.Error(err))
	}
	logger.Info("Workflow definitions loaded", zap.Strings("types", registry.Types()))

	// Initialize repositories
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	decisionRepo := repository.NewDecisionRepository(db.DB, logger)
	messageRepo := repository.NewMessageRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	// Initialize Slack client and notification layer
	slackClient := slackkit.NewClient(cfg.Slack.BotToken, logger)
	notifier := slackkit.NewNotifier(slackClient, messageRepo, logger)

	// Initialize workflow engine
	engine := workflow.NewEngine(db, requestRepo, decisionRepo, logger)

	// Initialize App Home publisher
	homeData := home.NewData(requestRepo, logger)
	homePublisher := home.NewPublisher(homeData, slackClient,
		cfg.Home.DebounceWindow, cfg.Home.PageSize, logger)

	// Initialize background executor for notification fan-out
	executor := background.NewExecutor(cfg.Background.Workers, cfg.Background.QueueSize, logger)
	defer executor.Stop()

	// Initialize webhook handler
	verifier := webhook.NewVerifier(cfg.Slack.SigningSecret)
	handler := webhook.NewHandler(verifier, registry, engine, notifier,
		slackClient, homePublisher, executor, historyRepo, cfg.Slack, logger)

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize HTTP router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "slack-workflow-engine",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Slack endpoints
	handler.Register(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

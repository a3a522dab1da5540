package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medichain/medichain/internal/config"
	"github.com/medichain/medichain/internal/domain/chat"
	"github.com/medichain/medichain/internal/domain/report"
	"github.com/medichain/medichain/internal/platform/auth"
	"github.com/medichain/medichain/internal/platform/completion"
	"github.com/medichain/medichain/internal/platform/db"
	"github.com/medichain/medichain/internal/platform/ledger"
	"github.com/medichain/medichain/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "report-server",
		Short: "Patient report API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the report API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Ledger anchoring
	anchorer, err := ledger.New(ledger.Config{
		AccountID:  cfg.HederaAccountID,
		PrivateKey: cfg.HederaPrivateKey,
		TopicID:    cfg.HederaTopicID,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ledger anchoring")
	}
	if cfg.HederaTopicID == "" {
		logger.Warn().Msg("HEDERA_TOPIC_ID not set, report anchoring disabled")
	}

	// Completion service
	completionClient := completion.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if !completionClient.Configured() {
		logger.Warn().Msg("OPENAI_API_KEY not set, summaries fall back to original text and chat is unavailable")
	}

	// Domain services
	reportSvc := report.NewService(
		report.NewRepoPG(pool),
		report.NewDocumentParser(),
		report.NewCompletionSummarizer(completionClient),
		anchorer,
		logger,
		cfg.UploadMaxBytes,
		cfg.HederaConfigured(),
	)
	chatSvc := chat.NewService(completionClient)
	authManager := auth.NewManager(cfg.AuthSecret)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Session login stays outside the protected group.
	e.POST("/api/auth/login", loginHandler(authManager))

	api := e.Group("/api")
	if cfg.IsDev() {
		api.Use(auth.DevMiddleware())
	} else {
		api.Use(authManager.Middleware())
	}

	report.NewHandler(reportSvc).RegisterRoutes(api)
	chat.NewHandler(chatSvc).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func loginHandler(manager *auth.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body struct {
			PatientID string `json:"patientId"`
		}
		if err := c.Bind(&body); err != nil || body.PatientID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "patientId is required"})
		}
		token, err := manager.IssueToken(body.PatientID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to issue token"})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"token":     token,
			"expiresIn": auth.TokenTTL.String(),
		})
	}
}

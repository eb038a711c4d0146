package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/api"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/config"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/events"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/interfaces"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/middleware"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/notify"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/provider"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/reconcile"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/repository"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

const serviceName = "navegantes-payments"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry(serviceName, cfg.JaegerEndpoint); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting payment gateway",
		zap.String("environment", cfg.Environment),
		zap.String("policy", cfg.ReconcilePolicy),
	)
	if cfg.IntegritySecret == "" {
		telemetry.Logger.Warn("WOMPI_INTEGRITY_SECRET is not set, signature requests will fail")
	}
	if cfg.WebhookSecret == "" {
		telemetry.Logger.Warn("WOMPI_WEBHOOK_SECRET is not set, webhook signatures will not be verified")
	}

	policy, err := reconcile.ParsePolicy(cfg.ReconcilePolicy)
	if err != nil {
		return err
	}

	customers, closeDB, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	// Webhook replay guard
	var guard middleware.ReplayGuard
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()
		guard = middleware.NewRedisReplayGuard(redisClient)
	}

	// Status change events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		kafkaWriter := events.NewWriter(cfg.KafkaBrokers)
		defer kafkaWriter.Close()
		publisher = events.NewKafkaPublisher(kafkaWriter)
	}

	// Activation notices
	var notifiers notify.Multi
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		notifiers = append(notifiers, notify.NewNatsNotifier(nc))
	}
	if cfg.ResendAPIKey != "" && len(cfg.NotifyTo) > 0 {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg.ResendAPIKey, cfg.NotifyFrom, cfg.NotifyTo))
	} else {
		telemetry.Logger.Warn("Email notifications disabled, RESEND_API_KEY or NOTIFY_TO missing")
	}
	async := notify.NewAsync(notifiers, 15*time.Second)

	reconciler := reconcile.NewReconciler(customers, async, publisher, policy, cfg.Currency)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(api.Deps{
		Config:      cfg,
		Customers:   customers,
		Fetcher:     provider.NewClient(cfg.ProviderURL(), cfg.PublicKey(), cfg.ProviderTimeout),
		Reconciler:  reconciler,
		ReplayGuard: guard,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		telemetry.Logger.Info("Payment gateway listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	async.Wait()

	telemetry.Logger.Info("Server exited")
	return nil
}

// openRepository connects the configured store and makes sure the schema exists.
func openRepository(ctx context.Context, cfg *config.Config) (interfaces.CustomerRepository, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.DatabaseDriver {
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "navegantes.db"
		}
		gdb, err := repository.OpenSQLite(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		repo := repository.NewGormCustomerRepository(gdb)
		if err := repo.InitDB(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		closeFn := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return repo, closeFn, nil
	default:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repository.NewCustomerRepository(db)
		if err := repo.InitDB(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return repo, func() { db.Close() }, nil
	}
}

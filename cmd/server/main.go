// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketing-platform/internal/assessments"
	"marketing-platform/internal/campaigns"
	"marketing-platform/internal/common/config"
	"marketing-platform/internal/common/database"
	"marketing-platform/internal/common/genai"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/common/tenant"
	"marketing-platform/internal/models"
	"marketing-platform/internal/notify"
	"marketing-platform/internal/refinement"
	transport "marketing-platform/internal/transport/http"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting marketing platform server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Campaigns ---
	campaignStore := campaigns.NewStore(pg.DB)
	campaignCache := campaigns.NewCache(campaignStore, campaigns.CacheOptions{
		Fresh:     config.GetDuration(cfg.Cache.FreshTTL),
		Retention: config.GetDuration(cfg.Cache.RetentionTTL),
		Redis:     rdb.Client,
		Logger:    log,
	})

	subCtx, stopSub := context.WithCancel(ctx)
	defer stopSub()
	campaignCache.SubscribeInvalidations(subCtx)

	if cfg.Tenant.DefaultTenant != "" {
		if err := campaignCache.Warm(ctx, cfg.Tenant.DefaultTenant); err != nil {
			log.Warn("cache warm failed, first request will fetch", map[string]interface{}{
				"tenantId": cfg.Tenant.DefaultTenant,
				"error":    err.Error(),
			})
		}
	}

	// --- Assessments ---
	assessmentStore := assessments.NewStore(pg.DB)
	sessionStore := assessments.NewRedisSessionStore(rdb.Client, config.GetDuration(cfg.Assessments.SessionTTL))

	var completionHook assessments.CompletionHook
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		notifier, err := notify.New(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Fatal("notifier init failed", zap.Error(err))
		}
		completionHook = func(hookCtx context.Context, result models.AssessmentResult) {
			notifier.AssessmentCompleted(hookCtx, result.ConfigID, result)
		}
		zapLog.Info("Notification channels initialized")
	}

	// --- Refinement ---
	llm := genai.NewClient(&genai.Config{
		BaseURL:    cfg.APIs.GenAI.BaseURL,
		APIKey:     cfg.APIs.GenAI.APIKey,
		Model:      cfg.APIs.GenAI.Model,
		Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries: cfg.APIs.GenAI.MaxRetries,
	})
	pipeline := refinement.NewPipeline(
		refinement.NewLLMGenerator(llm, cfg.APIs.GenAI.Model),
		llm,
		refinement.Options{
			Model:        cfg.APIs.GenAI.Model,
			StageTimeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
			Logger:       log,
		},
	)

	// --- HTTP server ---
	handlers := transport.NewHandlers(transport.HandlersOptions{
		Tenants:        tenant.FromConfig(cfg.Tenant),
		Cache:          campaignCache,
		CampaignWriter: campaignStore,
		Loader:         assessmentStore,
		Sessions:       sessionStore,
		Refiner:        pipeline,
		CompletionHook: completionHook,
		Logger:         log,
	})

	server := transport.NewServer(transport.ServerOptions{
		Port:         cfg.Server.Port,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}, handlers, pg.DB, rdb.Client, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		zapLog.Error("server stopped unexpectedly", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("server stopped")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/adflow-systems/showads-connector/internal/api"
	"github.com/adflow-systems/showads-connector/internal/config"
	"github.com/adflow-systems/showads-connector/internal/connector"
	"github.com/adflow-systems/showads-connector/internal/customer"
	"github.com/adflow-systems/showads-connector/internal/journal"
	"github.com/adflow-systems/showads-connector/internal/metrics"
	"github.com/adflow-systems/showads-connector/internal/publisher"
	"github.com/adflow-systems/showads-connector/internal/rate"
	"github.com/adflow-systems/showads-connector/internal/showads"
	"github.com/adflow-systems/showads-connector/pkg/logger"
	"github.com/adflow-systems/showads-connector/pkg/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [showads-connector]...")

	// --- Resolve ShowAds credential ---
	projectKey, err := resolveProjectKey(ctx, cfg)
	if err != nil {
		logg.Fatalw("failed to resolve project key", "error", err)
	}
	if projectKey == "" {
		logg.Fatal("no project key configured (set PROJECT_KEY or PROJECT_KEY_SECRET_ID)")
	}

	// --- Connect to NATS (optional) ---
	var (
		nc  *nats.Conn
		pub connector.EventPublisher
	)
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		defer nc.Drain() //nolint:errcheck

		p, err := publisher.New(nc, cfg.DeliverySubject, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		pub = p
	} else {
		logg.Warn("NATS_URL not set; delivery events disabled")
	}

	// --- Delivery journal (Redis dedup + Postgres log, both optional) ---
	jrnl, err := journal.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, cfg.DedupTTL, logger.L())
	if err != nil {
		logg.Fatalw("failed to init journal", "error", err)
	}
	defer jrnl.Close() //nolint:errcheck

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})

	// --- ShowAds API client ---
	client := showads.NewClient(logger.L(), showads.ClientConfig{
		BaseURL:        cfg.ShowAdsBaseURL,
		ProjectKey:     projectKey,
		BulkLimit:      cfg.BulkLimit,
		MaxAttempts:    cfg.MaxAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		TokenTTL:       cfg.TokenTTL,
		Timeout:        cfg.HTTPTimeout,
	}, rateMgr)

	// --- Customer data source ---
	validator, err := customer.NewValidator(customer.Bounds{
		MinAge:      cfg.MinAge,
		MaxAge:      cfg.MaxAge,
		MinBannerID: cfg.MinBannerID,
		MaxBannerID: cfg.MaxBannerID,
	})
	if err != nil {
		logg.Fatalw("invalid validation bounds", "error", err)
	}

	provider, err := customer.NewProvider(logger.L(), cfg.CustomerDataPath, cfg.BatchSize, validator)
	if err != nil {
		logg.Fatalw("failed to open customer data", "error", err)
	}

	// --- Connector service ---
	svc := connector.New(logger.L(), provider, client, jrnl, pub)

	// --- Metrics ---
	metrics.StartServer(fmt.Sprintf(":%d", cfg.MetricsPort))

	// --- Status/health API ---
	app := fiber.New()
	api.RegisterRoutes(app, nc, jrnl, api.NewStatusHandler(logger.L(), svc))

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	// --- Run the delivery once; keep the API up until interrupted ---
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()

	logg.Infow("[showads-connector] running",
		"source", cfg.CustomerDataPath,
		"showads", cfg.ShowAdsBaseURL)

	select {
	case err := <-done:
		if err != nil {
			logg.Errorw("delivery run finished with errors", "error", err)
		} else {
			logg.Info("delivery run complete")
		}
		<-ctx.Done()
	case <-ctx.Done():
	}
	stop()
	logg.Info("shutting down [showads-connector]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.ShutdownWithContext(shutdownCtx) //nolint:errcheck
}

// resolveProjectKey prefers AWS Secrets Manager when a secret ID is
// configured, falling back to the PROJECT_KEY environment variable.
func resolveProjectKey(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.ProjectKeySecretID == "" {
		return cfg.ProjectKey, nil
	}

	awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		return "", fmt.Errorf("init AWS provider: %w", err)
	}
	provider := secrets.NewCachedProvider(awsProvider, secrets.NewCache(30*time.Minute))

	creds, err := provider.GetSecret(ctx, cfg.ProjectKeySecretID)
	if err != nil {
		return "", err
	}

	key, ok := creds["project_key"]
	if !ok {
		return "", fmt.Errorf("secret %s missing project_key field", cfg.ProjectKeySecretID)
	}
	return key, nil
}

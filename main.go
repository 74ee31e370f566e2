// Package main is the entry point for the invoice dashboard service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"gitlab.com/yelinaung/invoice-dashboard/internal/app"
	"gitlab.com/yelinaung/invoice-dashboard/internal/config"
	"gitlab.com/yelinaung/invoice-dashboard/internal/database"
	"gitlab.com/yelinaung/invoice-dashboard/internal/extract"
	"gitlab.com/yelinaung/invoice-dashboard/internal/identity"
	"gitlab.com/yelinaung/invoice-dashboard/internal/invoices"
	"gitlab.com/yelinaung/invoice-dashboard/internal/localstore"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
	"gitlab.com/yelinaung/invoice-dashboard/internal/remote"
	"gitlab.com/yelinaung/invoice-dashboard/internal/repository"
	"gitlab.com/yelinaung/invoice-dashboard/internal/server"
	"gitlab.com/yelinaung/invoice-dashboard/internal/session"
	"gitlab.com/yelinaung/invoice-dashboard/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("Command failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "invoice-dashboard",
		Usage:   "Invoice dashboard service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:  "mock",
				Usage: "Print mock extracted invoices as JSON",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 5, Usage: "number of invoices"},
					&cli.Uint64Flag{Name: "seed", Usage: "random seed, 0 for a random one"},
				},
				Action: mock,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(*cli.Context) error {
					fmt.Printf("invoice-dashboard %s (commit: %s, built: %s)\n", version, commit, date)
					return nil
				},
			},
		},
		DefaultCommand: "serve",
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	if err := logger.InitHashSalt(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.Connect(c.Context, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(c.Context, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Log.Info().Msg("Migrations applied")
	return nil
}

func mock(c *cli.Context) error {
	gen := extract.Default()
	if seed := c.Uint64("seed"); seed != 0 {
		gen = extract.NewGenerator(rand.NewPCG(seed, seed))
	}

	count := c.Int("count")
	if count < 1 {
		return cli.Exit(fmt.Sprintf("count must be at least 1, got %d", count), 1)
	}

	list := make([]models.Invoice, 0, count)
	for i := range count {
		list = append(list, gen.Generate(fmt.Sprintf("mock_%d.pdf", i+1)))
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func serve(c *cli.Context) error {
	ctx := c.Context

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:       cfg.OTelExporter,
		Protocol:       cfg.OTelProtocol,
		ServiceName:    "invoice-dashboard",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Log.Info().Msg("Database initialized successfully")

	var (
		liveBackend invoices.LiveBackend
		profiles    session.ProfileStore = repository.NewProfileRepository(pool)
	)
	if cfg.RemoteConfigured() {
		client, err := remote.Connect(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return fmt.Errorf("failed to connect to remote store: %w", err)
		}
		defer client.Close()
		liveBackend = remote.NewInvoiceBackend(client)
		profiles = remote.NewProfileStore(client)
		logger.Log.Info().Msg("Remote invoice store enabled")
	} else {
		logger.Log.Warn().Msg("Remote store not configured, invoices are stored locally")
	}

	var provider identity.Provider
	if cfg.IdentityEnabled {
		provider = identity.NewAccountProvider(repository.NewAccountRepository(pool))
	}

	kv := repository.NewKeyValueRepository(pool)
	extractor := extract.Default()
	policy := invoices.PolicyByName(cfg.InvoiceFallback)

	registry := server.NewRegistry(func(clientID string) app.Deps {
		return app.Deps{
			Storage:       localstore.Prefixed(kv, localstore.ClientPrefix(clientID)),
			Remote:        liveBackend,
			Policy:        policy,
			Provider:      provider,
			Profiles:      profiles,
			Extractor:     extractor,
			ToastDuration: cfg.ToastDuration,
		}
	}, cfg.SessionTTL)

	registryCtx, stopRegistry := context.WithCancel(ctx)
	registryDone := make(chan struct{})
	go func() {
		defer close(registryDone)
		registry.Run(registryCtx, sweepInterval)
	}()

	router := server.NewRouter(registry, server.NewCookies(cfg.SessionSecret, cfg.SessionTTL), version,
		server.WithHealthCheck(func(ctx context.Context) error { return database.Check(ctx, pool) }),
	)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", cfg.ListenAddr).Str("version", version).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stopRegistry()
		<-registryDone
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn().Err(err).Msg("Server shutdown incomplete")
	}
	stopRegistry()
	<-registryDone
	return nil
}

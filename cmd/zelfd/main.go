// zelfd is the registry ops daemon: it runs migrations, seeds domain
// configs, keeps the domain registry cache fresh and serves metrics and
// health probes. The lifecycle engine itself is library surface, embedded
// by the API service that fronts it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	zelf "github.com/Open-Verifik/zelf-online-version-sub000"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/config"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/db"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/logging"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/registry"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations/domains", "Migration files directory")
	seedDirFlag := flag.String("seed", "", "Seed domain configs from a directory of YAML files, then continue")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("zelfd"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewRegistryPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to registry database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	store := registry.NewStore(pool)

	if *seedDirFlag != "" {
		count, err := registry.LoadSeedDir(ctx, store, *seedDirFlag)
		if err != nil {
			logger.Fatal().Err(err).Str("dir", *seedDirFlag).Msg("seeding failed")
		}
		logger.Info().Int("domains", count).Msg("seeded domain configs")
	}

	engine := zelf.NewEngine(cfg, pool, logger)
	if err := engine.Domains.Refresh(ctx); err != nil {
		logger.Fatal().Err(err).Msg("initial domain registry load failed")
	}
	logger.Info().Strs("payment_networks", engine.Payments.Networks()).Msg("engine ready")

	go refreshLoop(ctx, engine.Domains, cfg.RegistryRefreshTTL, logger)

	opsServer := metrics.NewServer(cfg.OpsListenAddr, engine.Domains.Loaded)

	go func() {
		logger.Info().Str("addr", cfg.OpsListenAddr).Msg("starting ops server")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ops server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	opsServer.Shutdown(shutdownCtx)
}

// refreshLoop keeps the domain snapshot warm so readers never pay the
// refresh cost on their own request path.
func refreshLoop(ctx context.Context, domains *registry.Service, ttl time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := domains.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("domain registry refresh failed, serving stale snapshot")
			}
		}
	}
}

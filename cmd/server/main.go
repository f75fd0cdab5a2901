package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/stakewatch/cardano-rewards-service/internal/application"
	"github.com/stakewatch/cardano-rewards-service/internal/infrastructure/blockfrost"
	"github.com/stakewatch/cardano-rewards-service/internal/infrastructure/postgres"
	"github.com/stakewatch/cardano-rewards-service/internal/infrastructure/prices"
	"github.com/stakewatch/cardano-rewards-service/internal/infrastructure/roster"
	httpHandler "github.com/stakewatch/cardano-rewards-service/internal/interfaces/http"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
	"github.com/stakewatch/cardano-rewards-service/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Cardano Rewards Service...")

	db, err := postgres.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, log); err != nil {
		log.Fatalw("Failed to run migrations", "error", err)
	}

	epochRepo := postgres.NewEpochRepository(db, log)
	poolRepo := postgres.NewPoolRepository(db, log)
	accountRepo := postgres.NewAccountRepository(db, log)
	priceRepo := postgres.NewPriceRepository(db, log)

	ledger := blockfrost.NewClient(&cfg.Blockfrost, log)
	rosterClient := roster.NewClient(&cfg.Roster, log)
	priceClient := prices.NewClient(&cfg.Prices, log)

	clock := clockwork.NewRealClock()

	epochSyncer := application.NewEpochSyncer(ledger, epochRepo, &cfg.Sync, log)
	poolSyncer := application.NewPoolSyncer(ledger, poolRepo, &cfg.Sync, log)
	accountSyncer := application.NewAccountSyncer(ledger, epochRepo, poolRepo, accountRepo, poolSyncer, clock, log)
	historySyncer := application.NewHistorySyncer(ledger, epochRepo, poolRepo, accountRepo, &cfg.Sync, log)
	reviser := application.NewReviser(poolRepo, accountRepo, log)
	integrity := application.NewIntegrityChecker(epochRepo, poolRepo, accountRepo, accountSyncer, historySyncer, log)

	service := application.NewService(cfg, rosterClient, priceClient, poolRepo, accountRepo, priceRepo,
		epochSyncer, poolSyncer, accountSyncer, historySyncer, reviser, integrity, clock, log)

	initializeMetrics(epochRepo, log)

	if err := service.Start(context.Background()); err != nil {
		log.Fatalw("Failed to start sync scheduler", "error", err)
	}
	defer service.Stop()

	router := httpHandler.NewRouter(epochRepo, poolRepo, accountRepo, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	metricsSrv := &http.Server{
		Addr: ":" + cfg.Metrics.Port,
	}

	var g errgroup.Group

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv.Handler = metricsMux
		g.Go(func() error {
			log.Infow("Starting metrics server", "port", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Infow("Starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}
	if cfg.Metrics.Enabled {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Errorw("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := g.Wait(); err != nil {
		log.Errorw("Server error", "error", err)
	}

	log.Info("Server shutdown complete")
}

func initializeMetrics(epochs *postgres.EpochRepository, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	epoch, err := epochs.FindLatest(ctx)
	if err != nil {
		return
	}

	metrics.UpdateLastSyncedEpoch(epoch.Number)
	log.Infow("Initialized metrics", "last_epoch", epoch.Number)
}

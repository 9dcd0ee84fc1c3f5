package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/browserauto"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/cookies"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/httpapi"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/ledger"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/memorybus"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/app"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/buildinfo"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/config"
)

func main() {
	cfgPath := flag.String("config", envOr("TBS_CONFIG", "config.json"), "Chemin de config.json")
	addr := flag.String("addr", "", "Adresse d'écoute (prioritaire sur la config)")
	flag.Parse()

	cfg := config.Load(*cfgPath)
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := zerolog.New(os.Stdout).Level(cfg.ZerologLevel()).With().Timestamp().Str("app", "tbs-server").Logger()
	log.Logger = logger

	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}
	logger.Info().Interface("build", buildinfo.Current()).Str("storage", cfg.Paths.StorageDir).Msg("starting")

	ledgerStore, err := ledger.NewStore(cfg.Paths.StorageDir, logger.With().Str("component", "ledger").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open ledger store")
	}
	sessions, err := cookies.NewStore(cfg.Paths.CookiesDir, logger.With().Str("component", "cookies").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open cookie store")
	}

	bus := memorybus.New()
	defer bus.Close()

	slots := app.NewSlotGenerator(logger, time.Now().UnixNano())
	scanner := app.NewFileScanner(logger)
	limiter := app.NewSessionLimiter(cfg.MaxConcurrentSessions)
	driver := browserauto.New(logger.With().Str("component", "browser").Logger(), sessions, browserauto.Options{Headless: cfg.HeadlessDefault})

	orch := app.NewOrchestrator(logger, slots, ledgerStore, driver, bus, limiter, app.DefaultOrchestratorOptions())
	reconciler := app.NewReconciler(logger.With().Str("component", "reconciler").Logger(), ledgerStore, driver, sessions, bus)
	batches := app.NewBatchService(logger, orch, scanner, reconciler, bus)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Réconciliation périodique: bascule schedules -> publishes une fois
	// l'horaire passé.
	go reconciler.Run(shutdownCtx)

	srv := httpapi.NewServer(logger, batches, scanner, slots, ledgerStore, sessions, bus)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hl-liq-watch/internal/app"
	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/logging"
	"hl-liq-watch/internal/xerrors"

	"go.uber.org/zap"
)

// exit codes per spec.md §6: 0 normal shutdown, 1 unrecoverable startup
// error, 2 configuration error.
const (
	exitOK          = 0
	exitStartupFail = 1
	exitConfigError = 2
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "print alerts to stdout instead of sending them")
	clearCache := flag.Bool("clear-cache", false, "truncate the position cache and exit; the wallet registry is preserved")
	clearDB := flag.Bool("clear-db", false, "truncate the position cache and alert log and exit; the wallet registry is preserved")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", xerrors.Config(err))
		os.Exit(exitConfigError)
	}
	log := logging.New(cfg.Log)
	log.Info("config loaded", zap.String("path", *configPath))

	application, err := app.New(cfg, log, *dryRun)
	if err != nil {
		log.Error("failed to initialize app", zap.Error(err))
		os.Exit(exitStartupFail)
	}

	if *clearCache || *clearDB {
		ctx := context.Background()
		var clearErr error
		if *clearDB {
			clearErr = application.ClearDB(ctx)
		} else {
			clearErr = application.ClearCache(ctx)
		}
		if clearErr != nil {
			log.Error("clear operation failed", zap.Error(clearErr))
			_ = application.Close()
			os.Exit(exitStartupFail)
		}
		_ = application.Close()
		os.Exit(exitOK)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", application.Metrics().Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("app initialized", zap.Bool("dry_run", *dryRun))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && err != context.Canceled {
		log.Error("app terminated", zap.Error(err))
		os.Exit(exitStartupFail)
	}
	os.Exit(exitOK)
}

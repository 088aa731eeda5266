// Command petracache runs a memcached ASCII protocol compatible cache
// server backed by an embedded LSM storage engine, intended to sit
// behind an external router such as mcrouter.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/petra/petracache/internal/config"
	"github.com/petra/petracache/internal/logging"
	"github.com/petra/petracache/internal/metrics"
	"github.com/petra/petracache/internal/server"
	"github.com/petra/petracache/internal/storage"
)

func main() {
	if err := run(); err != nil {
		logging.Errorf("petracache exited with error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	logging.Info("starting petracache")

	var configPath string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if configPath != "" {
		logging.Infof("loading configuration from %s", configPath)
	} else {
		logging.Info("using default configuration (set PETRACACHE_* env vars to customize)")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Infof("configuration: %+v", cfg)

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		logging.Warnf("invalid logging level %q, keeping default: %v", cfg.Logging.Level, err)
	} else {
		logging.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Infof("opening storage engine at %s", cfg.Storage.DBPath)
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage engine: %w", err)
	}
	defer store.Close()

	m := metrics.New()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics, m)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				logging.Errorf("metrics server error: %v", err)
			}
		}()
	}

	srv := server.New(cfg.Server, store, m)

	if metricsServer != nil {
		m.SetReady(true)
		logging.Info("server is ready")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logging.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logging.Errorf("server error: %v", err)
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warnf("metrics server shutdown: %v", err)
		}
	}

	logging.Info("petracache stopped")
	return nil
}

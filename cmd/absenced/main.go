package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gntouts/absenced/internal/config"
	"github.com/gntouts/absenced/internal/notify"
	"github.com/gntouts/absenced/internal/presence"
	"github.com/gntouts/absenced/internal/scan"
	"github.com/gntouts/absenced/internal/server"
	"github.com/gntouts/absenced/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("absenced starting", zap.String("version", version.Short()))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	scanner, err := buildScanner(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build scanner", zap.Error(err))
	}

	notifier := notify.NewMQTTNotifier(notify.MQTTNotifierConfig{
		Broker:   cfg.MQTT.Broker,
		Port:     cfg.MQTT.Port,
		ClientID: cfg.MQTT.ClientID,
		Logger:   logger,
	})

	controller, err := presence.NewController(cfg.Triggers, cfg.Retries)
	if err != nil {
		logger.Fatal("failed to build controller", zap.Error(err))
	}
	tracker := presence.NewTracker(cfg.Triggers, nil)
	metrics := presence.NewMetrics(prometheus.DefaultRegisterer)

	interval := time.Duration(cfg.Delay) * time.Second
	watcher := presence.NewWatcher(presence.WatcherConfig{
		Scanner:    scanner,
		Notifier:   notifier,
		Controller: controller,
		Tracker:    tracker,
		Interval:   interval,
		Topic:      cfg.MQTT.Topic,
		Logger:     logger,
		Metrics:    metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the optional status server in background
	var srv *server.Server
	if cfg.HTTPAddr != "" {
		srv = server.New(server.Config{
			Addr:       cfg.HTTPAddr,
			Controller: controller,
			Tracker:    tracker,
			Interval:   interval,
			Scanner:    cfg.Scanner,
			Logger:     logger,
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.Fatal("status server error", zap.Error(err))
			}
		}()
	}

	// Start the watch loop
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		if err := watcher.Run(ctx); err != nil {
			logger.Error("watcher error", zap.Error(err))
		}
	}()

	logger.Info("absenced ready",
		zap.Strings("triggers", cfg.Triggers),
		zap.Duration("interval", interval),
		zap.Int("retries", cfg.Retries),
		zap.String("scanner", cfg.Scanner),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	cancel()
	<-watcherDone

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", zap.Error(err))
		}
	}

	logger.Info("absenced stopped")
}

// buildScanner constructs the observation backend named in cfg.
func buildScanner(cfg *config.Config, logger *zap.Logger) (scan.Scanner, error) {
	switch cfg.Scanner {
	case config.ScannerWifi:
		return scan.NewWifiScanner(cfg.WifiInterface, logger)
	case config.ScannerARP:
		return scan.NewARPScanner(scan.ARPScannerConfig{
			WarmupAddr: cfg.ARPWarmupAddr,
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown scanner %q", cfg.Scanner)
	}
}

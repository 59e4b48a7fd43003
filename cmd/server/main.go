package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harshraj32/test-app-wispr-flow/internal/audio"
	"github.com/harshraj32/test-app-wispr-flow/internal/catalog"
	"github.com/harshraj32/test-app-wispr-flow/internal/config"
	"github.com/harshraj32/test-app-wispr-flow/internal/keys"
	"github.com/harshraj32/test-app-wispr-flow/internal/metrics"
	"github.com/harshraj32/test-app-wispr-flow/internal/router"
	"github.com/harshraj32/test-app-wispr-flow/internal/sequencer"
	"github.com/harshraj32/test-app-wispr-flow/internal/server"
	"github.com/harshraj32/test-app-wispr-flow/internal/ui"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "audio-test-board"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	platform := cfg.Player.Platform
	if platform == "" {
		platform = runtime.GOOS
	}

	logger.Info("Configuration loaded",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("audio_directory", cfg.Audio.Directory),
		slog.Any("extensions", cfg.Audio.Extensions),
		slog.String("platform", platform),
		slog.Bool("keys_enabled", cfg.Keys.Enabled),
		slog.Duration("pacing_delay", cfg.Sequencer.GetPacingDelayDuration()),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	// Catalog and duration metadata
	lister := catalog.NewLister(catalog.Config{
		Directory:  cfg.Audio.Directory,
		Extensions: cfg.Audio.Extensions,
		CacheTTL:   cfg.Catalog.GetCacheTTLDuration(),
	}, audio.NewProber(), logger, appMetrics)

	var watcher *catalog.Watcher
	if cfg.Catalog.Watch {
		watcher, err = lister.Watch()
		if err != nil {
			logger.Warn("Directory watch disabled", slog.String("error", err.Error()))
		}
	}

	// Simulated modifier key, best effort
	var toggler keys.Toggler
	if cfg.Keys.Enabled {
		keyboard, err := keys.New(platform, cfg.Keys.Modifier, logger)
		if err != nil {
			logger.Warn("Keyboard simulation not available", slog.String("error", err.Error()))
		} else {
			toggler = keyboard
		}
	}

	// Routed player
	launcher, err := router.NewExecLauncher(platform, cfg.Player.Command)
	if err != nil {
		logger.Error("Failed to create audio player launcher", slog.String("error", err.Error()))
		os.Exit(1)
	}
	player := router.NewPlayer(router.Config{
		KillTimeout: cfg.Player.GetKillTimeoutDuration(),
	}, lister, launcher, toggler, logger, appMetrics)

	// Push hub and sequencer
	hub := server.NewHub(logger, appMetrics)
	seq := sequencer.New(sequencer.Config{
		PacingDelay:   cfg.Sequencer.GetPacingDelayDuration(),
		LivenessPoll:  cfg.Sequencer.GetLivenessPollDuration(),
		LivenessGrace: cfg.Sequencer.GetLivenessGraceDuration(),
	}, lister, player, hub, hub, sequencer.SystemClock{}, logger, appMetrics)

	if _, err := seq.LoadCatalog(); err != nil {
		logger.Warn("Initial catalog load failed", slog.String("error", err.Error()))
	}

	page, err := ui.New(logger)
	if err != nil {
		logger.Error("Failed to load UI assets", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:    cfg.HTTP.Port,
		Address: cfg.HTTP.Address,
	}, logger, lister, player, seq, hub, page, appMetrics)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("url", fmt.Sprintf("http://%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("audio_directory", lister.Dir()),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Cancel pending advances, then kill the player and release the key
	seq.Shutdown()
	player.Shutdown()
	hub.Close()

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Error("Error closing directory watcher", slog.String("error", err.Error()))
		}
	}

	logger.Info("Service stopped")
}

// loadConfig reads path. A missing default config file falls back to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}

	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		defaults := config.Default()
		return &defaults, nil
	}

	return nil, err
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

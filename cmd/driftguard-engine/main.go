package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftguardstack/driftguard-engine/internal/api"
	"github.com/driftguardstack/driftguard-engine/internal/cache"
	"github.com/driftguardstack/driftguard-engine/internal/config"
	"github.com/driftguardstack/driftguard-engine/internal/engine"
	"github.com/driftguardstack/driftguard-engine/internal/metrics"
	"github.com/driftguardstack/driftguard-engine/internal/models"
	"github.com/driftguardstack/driftguard-engine/internal/services"
	"github.com/driftguardstack/driftguard-engine/internal/utils"
)

func main() {
	var configPath string
	var stdinMode bool
	var fieldsFlag string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&stdinMode, "stdin", false, "Annotate NDJSON records from stdin and exit")
	flag.StringVar(&fieldsFlag, "fields", "", "Comma-separated numeric fields to monitor (overrides config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	refs := services.LoadReference(loadCtx, logger, cfg.Reference, cacheProvider)
	cancelLoad()

	defaults := services.StreamOptions(cfg.Stream)
	if fieldsFlag != "" {
		defaults.Fields = engine.ParseFields(fieldsFlag)
	}
	service := services.NewMonitorService(logger, defaults, refs).WithAlertDedup(cacheProvider)

	if stdinMode {
		if err := runPipe(service); err != nil {
			logger.Error("pipe mode failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	logger.Info("starting driftguard-engine",
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("probe_address", cfg.Server.Address))

	handlers := api.NewHandlers(logger, service)
	httpServer := api.NewHTTPServer(cfg.Server.HTTPAddress, handlers)

	probeServer, err := api.NewProbeServer(cfg.Server)
	if err != nil {
		logger.Error("failed to create probe server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	go func() {
		if serveErr := probeServer.Start(); serveErr != nil {
			logger.Error("probe server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	probeServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	probeServer.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("driftguard-engine stopped")
}

// runPipe annotates NDJSON records from stdin onto stdout using one default
// session, for batch files and shell pipelines.
func runPipe(service *services.MonitorService) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()
	encoder := json.NewEncoder(writer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			if err := encoder.Encode(map[string]any{"error": fmt.Sprintf("parse record: %v", err)}); err != nil {
				return err
			}
			continue
		}
		out, err := service.Annotate(services.DefaultStreamID, rec)
		if err != nil {
			return err
		}
		if err := encoder.Encode(out); err != nil {
			return err
		}
	}
	return scanner.Err()
}

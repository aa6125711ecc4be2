package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenWatch/internal/chain"
	"tokenWatch/internal/config"
	"tokenWatch/internal/endpoint"
	"tokenWatch/internal/indexer"
	"tokenWatch/internal/metrics"
	"tokenWatch/internal/storage"
	"tokenWatch/internal/token"
)

func main() {
	root := &cobra.Command{
		Use:          "watcher",
		Short:        "Watch new BSC contracts for ERC20 tokens",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runWatcher,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().StringSlice("endpoints", nil, "RPC endpoints in failover order (comma-separated)")
	root.PersistentFlags().Duration("call-timeout", 15*time.Second, "per-request RPC timeout, 0 disables")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.Flags().String("out", "./erc20_tokens.txt", "token log path")
	root.Flags().Duration("utc-offset", 8*time.Hour, "fixed UTC offset for record timestamps")
	root.Flags().Duration("poll-interval", 4*time.Second, "block polling interval for HTTP endpoints")
	root.Flags().Duration("stall-timeout", 60*time.Second, "rotate when no block arrives for this long, 0 disables")
	root.Flags().Duration("rotate-pause", 5*time.Second, "pause after every endpoint failed in a row")
	root.Flags().Int("queue-size", 256, "pending token records before recording blocks")
	root.Flags().Bool("use-receipts", false, "take created addresses from receipts")
	root.Flags().Bool("force-polling", false, "poll for new blocks even on websocket and IPC endpoints")
	root.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	probeCmd := &cobra.Command{
		Use:   "probe <address>",
		Short: "Classify a single contract against the first endpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}
	root.AddCommand(probeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWatcher(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := endpoint.New(cfg.Endpoints)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcherMetrics := metrics.NewWatcherMetrics()
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		if err := watcherMetrics.Register(registry); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		server := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer server.Close()
	}

	sink := storage.NewTextLog(storage.TextLogConfig{
		Path:      cfg.Out,
		Location:  cfg.Location(),
		QueueSize: cfg.QueueSize,
		Failures:  watcherMetrics.SinkWriteFailures,
	}, logger)
	defer sink.Close()

	opts := chain.Options{
		PollInterval: cfg.PollInterval,
		CallTimeout:  cfg.CallTimeout,
		UseReceipts:  cfg.UseReceipts,
		ForcePolling: cfg.ForcePolling,
	}
	dial := func(ctx context.Context, url string) (indexer.Client, error) {
		client, err := chain.Dial(ctx, url, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		StallTimeout: cfg.StallTimeout,
		RotatePause:  cfg.RotatePause,
	}, pool, dial, token.NewClassifier(logger), sink, watcherMetrics, logger)

	logger.Info("watcher start",
		zap.Strings("endpoints", cfg.Endpoints),
		zap.String("out", cfg.Out),
		zap.String("timezone", cfg.Location().String()),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("stall_timeout", cfg.StallTimeout),
		zap.Bool("use_receipts", cfg.UseReceipts),
		zap.Bool("force_polling", cfg.ForcePolling),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	if err := runner.Run(ctx); err != nil {
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Flush(flushCtx); err != nil {
		logger.Warn("flush token log failed", zap.Error(err))
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return server
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Command server runs the LogSentinel ingestion and orchestration
// service: it wires the Config Store, Log Repository, Analyzer Client,
// Batcher, Worker Pool, Batch Processor, and HTTP API together, then
// serves until an interrupt signal triggers graceful shutdown. Adapted
// from the corpus's cobra/viper-based cmd entrypoint.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "modernc.org/sqlite"

	"github.com/logsentinel/logsentinel/internal/analyzer"
	"github.com/logsentinel/logsentinel/internal/api"
	"github.com/logsentinel/logsentinel/internal/batching"
	"github.com/logsentinel/logsentinel/internal/config"
	"github.com/logsentinel/logsentinel/internal/domain"
	"github.com/logsentinel/logsentinel/internal/logging"
	"github.com/logsentinel/logsentinel/internal/notifier"
	"github.com/logsentinel/logsentinel/internal/processing"
	"github.com/logsentinel/logsentinel/internal/repository"
	"github.com/logsentinel/logsentinel/internal/workerpool"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "logsentinel-server",
		Short: "Log-analysis ingestion and orchestration service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	defaults := config.DefaultBootstrapConfig()
	flags := cmd.Flags()
	flags.String("db", defaults.DBPath, "path to the SQLite database file")
	flags.Int("port", defaults.Port, "HTTP listen port")
	flags.String("log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	flags.String("log-format", defaults.LogFormat, "log format: json|text")

	_ = v.BindPFlag("db", flags.Lookup("db"))
	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log_format", flags.Lookup("log-format"))

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	boot, err := config.LoadBootstrap(v)
	if err != nil {
		return fmt.Errorf("load bootstrap config: %w", err)
	}

	logger := logging.New(logging.Config{Level: boot.LogLevel, Format: boot.LogFormat, Output: "stdout"})
	logger.Info("starting logsentinel", "db", boot.DBPath, "port", boot.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("sqlite", boot.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // all access is serialized by our own mutexes; one real connection avoids sqlite lock contention

	registry := prometheus.NewRegistry()

	configStore, err := config.NewStore(ctx, db, boot, logger)
	if err != nil {
		return fmt.Errorf("init config store: %w", err)
	}

	cache, err := repository.NewCache(repository.CacheConfig{}, logger)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	repo, err := repository.Open(ctx, db, cache)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	app := configStore.GetAppConfig()
	analyzerClient := analyzer.NewClient(app.AnalyzerBaseURL, analyzerClientConfig(app), analyzer.NewMetrics(registry))

	notify := notifier.New(logger)

	poolMetrics := workerpool.NewMetrics(registry)
	pool := workerpool.New(ctx, workerpool.Config{WorkerCount: threadCount(app.ThreadCount), QueueSize: nonZero(app.WorkerQueueSize, 10000)}, poolMetrics)

	processor := processing.New(analyzerClient, repo, notify, logger)

	var batcher *batching.Batcher
	batcher = batching.New(batching.Config{
		RingCapacity:    nonZero(app.RingCapacity, 10000),
		BatchSize:       nonZero(app.BatchSize, 100),
		RefreshInterval: nonZeroDuration(app.RefreshInterval, 300*time.Millisecond),
	}, func(batch []domain.AnalysisTask) error {
		return pool.Submit(func(taskCtx context.Context) { processor.Process(taskCtx, batch) })
	}, func() bool {
		return pool.HasHeadroom(nonZero(app.PoolThreshold, 50))
	})
	batcher.SetRealtimeSink(repo)
	batcher.Start(ctx)
	defer batcher.Stop()

	cfgAdapter := api.ConfigStore{
		GetSnapshot:    configStore.GetSnapshot,
		UpdateAppCfg:   configStore.UpdateAppConfig,
		UpdatePrompts:  configStore.UpdatePrompts,
		UpdateChannels: configStore.UpdateChannels,
	}
	server := api.New(batcher, pool, repo, cfgAdapter, notify, logger)

	mux := http.NewServeMux()
	mux.Handle("/", server)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", boot.Port),
		Handler: mux,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown did not complete cleanly", "error", err)
	}
	pool.Shutdown(10 * time.Second)
	return nil
}

func analyzerClientConfig(app config.AppConfig) analyzer.ClientConfig {
	cfg := analyzer.DefaultClientConfig()
	cfg.BreakerEnabled = app.CircuitBreakerEnabled
	return cfg
}

func threadCount(configured int) int {
	if configured > 0 {
		return configured
	}
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// Package main is the entry point for the liquidity estimator.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/liquidity-engine/business/liquidity"
	"github.com/fd1az/liquidity-engine/business/liquidity/app"
	liquidityDI "github.com/fd1az/liquidity-engine/business/liquidity/di"
	"github.com/fd1az/liquidity-engine/business/liquidity/infra"
	"github.com/fd1az/liquidity-engine/internal/apm"
	"github.com/fd1az/liquidity-engine/internal/config"
	"github.com/fd1az/liquidity-engine/internal/health"
	"github.com/fd1az/liquidity-engine/internal/logger"
	"github.com/fd1az/liquidity-engine/internal/metrics"
	"github.com/fd1az/liquidity-engine/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	configPath string
	side       string
	amount     string
	midPrice   string
	watch      bool
	tui        bool
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.side, "side", "", "Trade side: buy or sell (overrides estimator.side)")
	flag.StringVar(&opts.amount, "amount", "", "Trade size in base units (overrides estimator.amount)")
	flag.StringVar(&opts.midPrice, "mid", "", "Reference mid price (overrides estimator.mid_price)")
	flag.BoolVar(&opts.watch, "watch", false, "Re-estimate every estimator.interval until interrupted")
	flag.BoolVar(&opts.tui, "tui", false, "Watch with the terminal dashboard (implies -watch)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("liquidity-engine %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !opts.tui {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return err
	}
	tui := cfg.Estimator.Output == config.OutputTUI
	if tui {
		opts.watch = true
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	// The dashboard owns the terminal, so logs are dropped in TUI mode.
	var logOut io.Writer = os.Stderr
	if tui {
		logOut = io.Discard
	}
	log := logger.New(logOut, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting liquidity estimator",
		"version", version,
		"environment", cfg.App.Environment,
		"watch", opts.watch,
	)

	if cfg.Telemetry.Enabled {
		stop, err := startTelemetry(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&liquidity.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	watcher := liquidityDI.GetWatcher(mono.Services())

	if !opts.watch {
		_, err := watcher.RunOnce(ctx)
		return err
	}

	if cfg.Health.Enabled {
		healthServer := health.NewServer(cfg.Health.Port, version, log)
		healthServer.RegisterCheck("estimates", health.StalenessCheck(watcher.LastSuccess, cfg.Health.MaxStaleness))
		provider := liquidityDI.GetXRPLProvider(mono.Services())
		healthServer.RegisterCheck("xrpl", health.ConnectionCheck(func() bool {
			return provider.IsConnected() || provider.HasFallback()
		}))
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = healthServer.Stop(stopCtx)
		}()
	}

	if dashboard, ok := liquidityDI.GetReporter(mono.Services()).(*infra.TUIReporter); ok {
		return runTUI(ctx, watcher, dashboard)
	}

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	if err := watcher.Stop(); err != nil {
		log.Error(ctx, "error stopping watcher", "error", err)
	}
	return nil
}

// runTUI runs the dashboard in the foreground until the user quits or ctx ends.
func runTUI(ctx context.Context, watcher *app.Watcher, dashboard *infra.TUIReporter) error {
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	go func() {
		<-ctx.Done()
		dashboard.Quit()
	}()

	runErr := dashboard.Run()
	_ = watcher.Stop()
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// applyOverrides copies non-empty flags over the loaded estimator settings
// and checks the result builds a valid request.
func applyOverrides(cfg *config.Config, opts options) error {
	if opts.side != "" {
		cfg.Estimator.Side = opts.side
	}
	if opts.amount != "" {
		cfg.Estimator.Amount = opts.amount
	}
	if opts.midPrice != "" {
		cfg.Estimator.MidPrice = opts.midPrice
	}
	if opts.tui {
		cfg.Estimator.Output = config.OutputTUI
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if _, err := liquidity.RequestFromConfig(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func startTelemetry(ctx context.Context, cfg *config.Config, log *logger.Logger) (func(), error) {
	traceProvider, err := apm.NewTraceProvider(log, apm.Config{
		Provider:    apm.ParseProvider(cfg.Telemetry.TraceProvider),
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.TraceEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
		Protocol:    cfg.Telemetry.OTLPProtocol,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if cfg.Telemetry.MetricsOTLPURL != "" {
		headers, err := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
		if err != nil {
			return nil, fmt.Errorf("invalid telemetry.otlp_headers: %w", err)
		}
		metricOpts = append(metricOpts, metrics.WithProviderConfig(
			metrics.NewOtelCollectorConfig(cfg.Telemetry.MetricsOTLPURL, headers, false)))
	}

	meterProvider, err := metrics.NewMetricProvider(metricOpts...)
	if err != nil {
		_ = traceProvider.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	promServer := metrics.NewPromServer(metrics.WithPort(strconv.Itoa(port)))
	promServer.Start(func(err error) {
		log.Error(ctx, "prometheus server stopped", "port", port, "error", err)
	})
	log.Info(ctx, "prometheus metrics server started", "port", port)

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = promServer.Stop(stopCtx)
		_ = meterProvider.Shutdown(stopCtx)
		_ = traceProvider.Stop()
	}, nil
}

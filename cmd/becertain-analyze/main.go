// Copyright 2025 James Ross
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/beobservant/becertain/internal/analyzer"
	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/events"
	"github.com/beobservant/becertain/internal/fetcher"
	"github.com/beobservant/becertain/internal/obs"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/store"
	"github.com/beobservant/becertain/internal/tenant"
)

var version = "dev"

// stringList accumulates repeated -metric-query flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var role string
	var configPath string
	var tenantID string
	var start, end int64
	var windowSeconds int64
	var step string
	var logQuery string
	var metricQueries stringList
	var services string
	var apdexThresholdMs float64
	var sloTarget float64
	var correlationWindowSecs float64
	var forecastHorizonSecs float64
	var outputPath string
	var showVersion bool

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "analyze", "Role to run: analyze|ingest")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&tenantID, "tenant", "", "Tenant ID (defaults to config's default_tenant_id)")
	fs.Int64Var(&start, "start", 0, "Analysis window start (unix seconds); defaults to now-window")
	fs.Int64Var(&end, "end", 0, "Analysis window end (unix seconds); defaults to now")
	fs.Int64Var(&windowSeconds, "window", 3600, "Analysis window length in seconds, used when -start/-end are omitted")
	fs.StringVar(&step, "step", "30s", "Metric query resolution step")
	fs.StringVar(&logQuery, "log-query", "", "LogQL query selecting the log stream to analyze")
	fs.Var(&metricQueries, "metric-query", "A metric query to analyze; repeatable. Defaults to config's default_metric_queries")
	fs.StringVar(&services, "services", "", "Comma-separated list of services to scope trace analysis to")
	fs.Float64Var(&apdexThresholdMs, "apdex-threshold-ms", 500, "Apdex T threshold in milliseconds")
	fs.Float64Var(&sloTarget, "slo-target", 0, "SLO target availability (e.g. 0.999); defaults to config's default")
	fs.Float64Var(&correlationWindowSecs, "correlation-window-seconds", 60, "Correlation window in seconds")
	fs.Float64Var(&forecastHorizonSecs, "forecast-horizon-seconds", 1800, "Forecast horizon in seconds")
	fs.StringVar(&outputPath, "output", "", "Path to write the JSON report to; defaults to stdout")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Store.Redis.Addr,
		Username:     cfg.Store.Redis.Username,
		Password:     cfg.Store.Redis.Password,
		DB:           cfg.Store.Redis.DB,
		DialTimeout:  cfg.Store.Redis.DialTimeout,
		ReadTimeout:  cfg.Store.Redis.ReadTimeout,
		WriteTimeout: cfg.Store.Redis.WriteTimeout,
		MaxRetries:   cfg.Store.Redis.MaxRetries,
	})
	defer rdb.Close()

	storeClient := store.NewClientWithRedis(cfg.Store, rdb)
	registry := tenant.NewRegistry(cfg.Store, storeClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	if tenantID == "" {
		tenantID = cfg.DefaultTenantID
	}

	readiness := func(rctx context.Context) error {
		return rdb.Ping(rctx).Err()
	}

	switch role {
	case "ingest":
		srv := obs.StartHTTPServer(cfg, readiness)
		defer func() { _ = srv.Shutdown(context.Background()) }()
		runIngest(ctx, cfg, registry, storeClient, logger)
	case "analyze":
		srv := obs.StartHTTPServer(cfg, readiness)
		defer func() { _ = srv.Shutdown(context.Background()) }()
		req := buildRequest(cfg, tenantID, start, end, windowSeconds, step, logQuery, []string(metricQueries), services, apdexThresholdMs, sloTarget, correlationWindowSecs, forecastHorizonSecs)
		runAnalyze(ctx, cfg, registry, logger, req, outputPath)
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q: must be analyze|ingest\n", role)
		os.Exit(2)
	}
}

func buildRequest(cfg *config.Config, tenantID string, start, end, windowSeconds int64, step, logQuery string, metricQueries []string, services string, apdexThresholdMs, sloTarget, correlationWindowSecs, forecastHorizonSecs float64) rcamodel.AnalyzeRequest {
	if end == 0 {
		end = time.Now().Unix()
	}
	if start == 0 {
		start = end - windowSeconds
	}
	if len(metricQueries) == 0 {
		metricQueries = cfg.Analyzer.DefaultMetricQueries
	}

	var svcList []string
	if services != "" {
		svcList = strings.Split(services, ",")
	}

	return rcamodel.AnalyzeRequest{
		TenantID:               tenantID,
		Start:                  float64(start),
		End:                    float64(end),
		Step:                   step,
		Services:               svcList,
		LogQuery:               logQuery,
		MetricQueries:          metricQueries,
		Sensitivity:            cfg.Analyzer.SensitivityFactor,
		ApdexThresholdMs:       apdexThresholdMs,
		SloTarget:              sloTarget,
		CorrelationWindowSecs:  correlationWindowSecs,
		ForecastHorizonSeconds: forecastHorizonSecs,
	}
}

// runAnalyze wires one tenant's data-source provider, runs a single
// Analyze pass, and writes the resulting report as JSON.
func runAnalyze(ctx context.Context, cfg *config.Config, registry *tenant.Registry, logger *zap.Logger, req rcamodel.AnalyzeRequest, outputPath string) {
	provider, err := fetcher.NewProvider(cfg.DataSources, req.TenantID)
	if err != nil {
		logger.Fatal("failed to build data source provider", obs.Err(err))
	}

	a := analyzer.New(cfg, registry, logger)
	report, err := a.Analyze(ctx, provider, req)
	if err != nil {
		logger.Fatal("analysis failed", obs.Err(err))
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal("failed to encode report", obs.Err(err))
	}

	if outputPath == "" {
		fmt.Println(string(encoded))
		return
	}
	if err := os.WriteFile(outputPath, append(encoded, '\n'), 0o644); err != nil {
		logger.Fatal("failed to write report", obs.Err(err))
	}
	logger.Info("wrote analysis report", obs.String("path", outputPath), obs.String("tenant_id", req.TenantID))
}

// runIngest starts the deployment-event NATS subscriber and the tenant
// maintenance scheduler, then blocks until ctx is cancelled. This is the
// long-running counterpart to the one-shot "analyze" role: a CD pipeline
// publishes deployment events here instead of calling back into the
// request/response Analyze path (spec §4.9, out-of-scope HTTP ingestion
// route replaced with an async bus).
func runIngest(ctx context.Context, cfg *config.Config, registry *tenant.Registry, storeClient *store.Client, logger *zap.Logger) {
	sub := events.NewSubscriber(cfg.Events, logger)
	err := sub.Start(func(tenantID string, event rcamodel.DeploymentEvent) error {
		return registry.RegisterEvent(ctx, tenantID, event)
	})
	if err != nil {
		logger.Fatal("failed to start deployment event subscriber", obs.Err(err))
	}
	defer sub.Stop()

	scheduler := tenant.NewMaintenanceScheduler(registry, cfg.Maintenance.EvictionCronSpec, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start maintenance scheduler", obs.Err(err))
	}
	defer scheduler.Stop()

	obs.StartStoreHealthSampler(ctx, 2*time.Second, storeClient.BreakerState, logger)

	logger.Info("ingest role running", obs.String("nats_url", cfg.Events.NATSURL), obs.String("subject", cfg.Events.Subject))
	<-ctx.Done()
}

func handleSignals(cancel context.CancelFunc, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
	cancel()

	select {
	case sig2 := <-sigCh:
		logger.Warn("second signal received, forcing exit", obs.String("signal", sig2.String()))
		os.Exit(1)
	case <-time.After(5 * time.Second):
	}
}

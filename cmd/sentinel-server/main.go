package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/gnss-sentinel/anomaly"
	"github.com/signalsfoundry/gnss-sentinel/core"
	"github.com/signalsfoundry/gnss-sentinel/internal/config"
	"github.com/signalsfoundry/gnss-sentinel/internal/logging"
	"github.com/signalsfoundry/gnss-sentinel/internal/observability"
	"github.com/signalsfoundry/gnss-sentinel/internal/service"
	"github.com/signalsfoundry/gnss-sentinel/internal/web"
	"github.com/signalsfoundry/gnss-sentinel/kb"
)

func main() {
	addr := flag.String("addr", "", "HTTP address the evaluation API listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}

	collector, err := observability.NewCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	detector, err := anomaly.NewDetector(cfg.Detector.ToDetector(), log, anomaly.WithMetricsRecorder(collector))
	if err != nil {
		log.Error(ctx, "failed to configure detector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	store := kb.NewResultStore()
	evaluator := &service.Evaluator{
		Pipeline: &core.Pipeline{
			Solver:  cfg.Solver.ToSolver(),
			Workers: cfg.Pipeline.Workers,
			Log:     log,
			Metrics: collector,
		},
		Detector: detector,
		Store:    store,
		Log:      log,
	}

	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	apiSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: web.Handler(evaluator, store, collector, log),
	}

	log.Info(ctx, "starting evaluation API", logging.String("addr", cfg.Server.Addr))
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "API server exited", logging.String("error", err.Error()))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/yairfalse/warden/internal/engine"
	"github.com/yairfalse/warden/internal/telemetry"
)

var (
	serveFlags    overrides
	serveInterval time.Duration
	metricsAddr   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Audit on an interval and export metrics",
	Long: `Run audits continuously and expose metrics for Prometheus.

Endpoints:
- /metrics  Prometheus metrics
- /healthz  liveness
- /readyz   ready once the first audit completed

Shuts down gracefully on SIGTERM/SIGINT.`,
	Example: `  warden serve                       # Audit hourly
  warden serve --interval 15m
  warden serve --metrics-addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringSliceVar(&serveFlags.regions, "region", nil, "Region to audit (repeatable, default all enabled)")
	f.StringVar(&serveFlags.profile, "profile", "", "AWS shared config profile")
	f.StringSliceVar(&serveFlags.checks, "check", nil, "Check id glob to run (repeatable)")
	f.IntVar(&serveFlags.workers, "workers", 0, "Maximum concurrent region calls")
	f.DurationVar(&serveFlags.timeout, "timeout", 0, "Timeout for each region call")
	f.DurationVar(&serveInterval, "interval", 0, "Audit interval")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	o := serveFlags
	o.debug = debug
	cfg, err := loadConfig(configPath, o)
	if err != nil {
		return err
	}
	if serveInterval > 0 {
		cfg.Serve.Interval = serveInterval
	}
	if metricsAddr != "" {
		cfg.Serve.MetricsAddr = metricsAddr
	}
	if err := telemetry.SetupLogging(cfg.Log.Level, cfg.Log.Console); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	ctx := cmd.Context()

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider, err := telemetry.NewProvider(ctx, cfg.OTEL, promExporter)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownProvider(provider)

	// Reports are kept in history and metrics; stdout stays quiet.
	cfg.Output.Format = "none"
	emit, err := buildEmitter(cfg, provider, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = emit.Close() }()

	eng, err := buildEngine(ctx, cfg, provider, emit)
	if err != nil {
		return err
	}

	log.Info().
		Dur("interval", cfg.Serve.Interval).
		Str("metrics_addr", cfg.Serve.MetricsAddr).
		Msg("warden serving")

	var ready atomic.Bool
	var g run.Group

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	srv := &http.Server{
		Addr:              cfg.Serve.MetricsAddr,
		Handler:           newMux(&ready),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Add(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	loopCtx, cancel := context.WithCancel(ctx)
	g.Add(func() error {
		return auditLoop(loopCtx, eng, cfg.Serve.Interval, &ready)
	}, func(error) {
		cancel()
	})

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

// auditLoop audits immediately and then on every tick until ctx ends. A
// failed audit is logged and retried on the next tick.
func auditLoop(ctx context.Context, eng *engine.Engine, interval time.Duration, ready *atomic.Bool) error {
	runOnce := func() {
		if _, err := eng.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("audit failed")
			return
		}
		ready.Store(true)
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

func newMux(ready *atomic.Bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz(ready))
	return mux
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReadyz(ready *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("no audit completed"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

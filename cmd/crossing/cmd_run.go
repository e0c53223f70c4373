package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/config"
	"github.com/anggasct/crossing/pkg/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type runOptions struct {
	configPath string
	traceFile  string

	vehicles      int
	seed          int64
	rate          float64
	burst         int
	policy        string
	patience      time.Duration
	logLevel      string
	logFormat     string
	metricsListen string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive random traffic through the controller and report",
		Example: `  crossing run --vehicles 1000 --policy ordered
  crossing run --config rush-hour.yaml --metrics-listen :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&opts.traceFile, "trace-file", "", "write one span per vehicle to this file")
	f.IntVarP(&opts.vehicles, "vehicles", "n", 0, "number of vehicles")
	f.Int64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	f.Float64Var(&opts.rate, "rate", 0, "arrivals per second (0 releases all at once)")
	f.IntVar(&opts.burst, "burst", 0, "arrivals allowed back to back")
	f.StringVarP(&opts.policy, "policy", "p", "", "admission policy: greedy or ordered")
	f.DurationVar(&opts.patience, "patience", 0, "how long a vehicle waits before giving up (0 waits forever)")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "", "text or json")
	f.StringVar(&opts.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")

	return cmd
}

// loadConfig reads the file and applies flags the user set explicitly
func (o *runOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("vehicles") {
		cfg.Vehicles = o.vehicles
	}
	if f.Changed("seed") {
		cfg.Seed = o.seed
	}
	if f.Changed("rate") {
		cfg.ArrivalRate = o.rate
	}
	if f.Changed("burst") {
		cfg.ArrivalBurst = o.burst
	}
	if f.Changed("policy") {
		cfg.Policy = o.policy
	}
	if f.Changed("patience") {
		cfg.Patience = o.patience
	}
	if f.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if f.Changed("metrics-listen") {
		cfg.Metrics.Listen = o.metricsListen
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, opts *runOptions) (err error) {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	promObserver, err := crossing.NewPrometheusObserver(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	if cfg.Metrics.Listen != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Listen, reg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	validator := crossing.NewValidationObserver()
	observers := []crossing.Observer{
		validator,
		promObserver,
		crossing.NewLoggingObserver(logger, crossing.LogDebug, "controller"),
	}

	if opts.traceFile != "" {
		tracing, shutdown, err := newTracingObserver(opts.traceFile)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, shutdown())
		}()
		observers = append(observers, tracing)
	}

	p, err := crossing.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	ctrl, err := crossing.New(
		crossing.WithLogger(logger),
		crossing.WithPolicy(p),
		crossing.WithObserver(observers...),
	)
	if err != nil {
		return err
	}

	driver, err := simulation.New(ctrl, cfg, logger)
	if err != nil {
		return err
	}

	report, runErr := driver.Run(ctx)
	if report != nil {
		if _, err := report.WriteTo(cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := ctrl.Close(); err != nil {
		return err
	}
	if err := report.Check(); err != nil {
		return err
	}
	return auditError(validator)
}

// auditError reports the first violation the validator recorded
func auditError(validator *crossing.ValidationObserver) error {
	violations := validator.GetViolations()
	if len(violations) == 0 {
		return nil
	}
	return fmt.Errorf("controller audit failed: %w: %s (%d total)", simulation.ErrViolation, violations[0], len(violations))
}

// serveMetrics exposes reg on addr until the returned function is called
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}, nil
}

// newTracingObserver exports vehicle spans as JSON lines to path
func newTracingObserver(path string) (*crossing.TracingObserver, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("trace file: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "crossing"))),
		sdktrace.WithBatcher(exporter),
	)

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(tp.Shutdown(ctx), f.Close())
	}
	return crossing.NewTracingObserver(tp), shutdown, nil
}

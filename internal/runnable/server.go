package runnable

import (
	"browshot/internal/env"
	"browshot/internal/myhttp"
	"browshot/internal/routes"
	"browshot/internal/schedule"
	"browshot/internal/storage"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

const serviceName = "browshot-scheduler"

type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int
	pyroscopeEndpoint      string

	logger        *slog.Logger
	scheduler     *schedule.Scheduler
	storageClient storage.Storage
}

func NewServer(logger *slog.Logger, scheduler *schedule.Scheduler, storageClient storage.Storage) *Server {
	return &Server{
		address:                env.OrDefault("ADDRESS", "0.0.0.0:8082"),
		terminationGracePeriod: env.OrDefault("TERMINATION_GRACE_PERIOD", 10*time.Second),
		lameduck:               env.OrDefault("LAMEDUCK", 1*time.Second),
		keepAlive:              env.OrDefault("HTTP_KEEPALIVE", true),
		maxConnections:         env.OrDefault("MAX_CONNECTIONS", 65532),
		pyroscopeEndpoint:      env.OrDefault("PYROSCOPE_ENDPOINT", ""),
		logger:                 logger,
		scheduler:              scheduler,
		storageClient:          storageClient,
	}
}

var Debug = false

// SetupTelemetry installs the global trace and meter providers. Instruments
// created earlier through the otel globals start reporting once it returns.
func SetupTelemetry(ctx context.Context) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	r, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create resource: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to create trace exporter: %w", err)
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(traceProvider))

	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, xerrors.Errorf("failed to create exporter: %w", err)
	}
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithResource(r), sdkmetric.WithReader(exporter)))

	return traceProvider.Shutdown, nil
}

func (s *Server) Start(ctx context.Context) error {
	runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)

	var profiler *pyroscope.Profiler
	if s.pyroscopeEndpoint != "" {
		var err error
		profiler, err = pyroscope.Start(pyroscope.Config{
			ApplicationName: serviceName,
			ServerAddress:   s.pyroscopeEndpoint,
			UploadRate:      60 * time.Second,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
				pyroscope.ProfileMutexCount,
				pyroscope.ProfileMutexDuration,
				pyroscope.ProfileBlockCount,
				pyroscope.ProfileBlockDuration,
			},
		})
		if err != nil {
			return xerrors.Errorf("failed to create profiler: %w", err)
		}
	}

	shutdownTelemetry, err := SetupTelemetry(ctx)
	if err != nil {
		return err
	}

	httpRequestsDurationMicroSeconds, err := otel.Meter(serviceName).Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return xerrors.Errorf("failed to create histogram: %w", err)
	}

	mux := myhttp.NewServerMux(s.logger, httpRequestsDurationMicroSeconds)

	mux.HandleFuncWithMiddleware("GET /api/schedules", routes.ListSchedules(s.scheduler))
	mux.HandleFuncWithMiddleware("GET /api/schedules/{name}", routes.GetSchedule(s.scheduler))
	mux.HandleFuncWithMiddleware("POST /api/schedules/{name}/run", routes.RunSchedule(s.scheduler))
	mux.HandleFuncWithMiddleware("GET /api/schedules/{name}/artifacts", routes.ListArtifacts(s.scheduler, s.storageClient))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler: mux,
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	go func() {
		if err := server.Serve(netutil.LimitListener(listener, s.maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to serve HTTP", "error", err)
		}
	}()

	s.scheduler.Start()
	s.logger.Info("scheduler started", "address", s.address, "schedules", len(s.scheduler.List()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit
	time.Sleep(s.lameduck)

	ctx, cancel := context.WithTimeout(ctx, s.terminationGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}

	if err := s.scheduler.Stop(ctx); err != nil {
		return xerrors.Errorf("failed to stop scheduler: %w", err)
	}

	if err := shutdownTelemetry(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown trace provider: %w", err)
	}

	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			return xerrors.Errorf("failed to shutdown profiler: %w", err)
		}
	}

	return nil
}

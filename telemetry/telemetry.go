package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultPort = 2112

// Config configures the telemetry endpoint.
type Config struct {
	Port int `yaml:"port"` // Port of the prometheus endpoint, 2112 if not set.
}

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Measurements collects ledger operation measurements for prometheus.
type Measurements struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMeasurements registers ledger measurements in the given registerer.
func NewMeasurements(reg prometheus.Registerer) *Measurements {
	f := promauto.With(reg)
	return &Measurements{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_ledger_operations_total",
			Help: "The total number of ledger operations by outcome",
		}, []string{"operation", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "multisig_ledger_operation_duration_microseconds",
			Help:    "Ledger operation latency in microseconds",
			Buckets: prometheus.ExponentialBuckets(50, 4, 10),
		}, []string{"operation"}),
	}
}

// Record records a single operation with its outcome and duration.
func (m *Measurements) Record(operation, outcome string, d time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(float64(d.Microseconds()))
}

// Run starts the server with prometheus telemetry endpoint serving the default registry
// and returns Measurements registered in it. The server cancels ctx if it fails to listen.
// Default port of 2112 is used if port value is set to 0.
func Run(ctx context.Context, cancel context.CancelFunc, port int) (*Measurements, error) {
	if port > 65535 || port < 0 {
		return nil, fmt.Errorf("port range allowed is from 1 to 65535, received %d", port)
	}
	if port == 0 {
		port = defaultPort
	}
	m := NewMeasurements(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cancel()
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	return m, nil
}

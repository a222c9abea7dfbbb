package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles Prometheus metrics for the evaluation pipeline and the
// HTTP surface. It satisfies core.EpochMetricsRecorder and
// anomaly.FlagMetricsRecorder so both stages can report without depending
// on this package.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	EpochsEvaluated  *prometheus.CounterVec
	SolverIterations prometheus.Histogram
	AnomalyFlags     *prometheus.CounterVec

	BatchEpochs   prometheus.Gauge
	BatchDuration prometheus.Histogram
}

// NewCollector registers the sentinel's Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	httpRequests, err := registerCounterVec(reg, httpRequests, "sentinel_http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"})
	httpDurations, err = registerHistogramVec(reg, httpDurations, "sentinel_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	epochs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_epochs_evaluated_total",
		Help: "Total number of epochs run through the solver, labeled by outcome (ok or error kind).",
	}, []string{"outcome"})
	epochs, err = registerCounterVec(reg, epochs, "sentinel_epochs_evaluated_total")
	if err != nil {
		return nil, err
	}

	iterations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_solver_iterations",
		Help:    "Gauss-Newton iterations consumed per solved epoch.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	}), "sentinel_solver_iterations")
	if err != nil {
		return nil, err
	}

	flags := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_anomaly_flags_total",
		Help: "Total number of anomaly flags raised, labeled by reason.",
	}, []string{"reason"})
	flags, err = registerCounterVec(reg, flags, "sentinel_anomaly_flags_total")
	if err != nil {
		return nil, err
	}

	batchEpochs, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_batch_epochs",
		Help: "Number of epochs in the most recently evaluated batch.",
	}), "sentinel_batch_epochs")
	if err != nil {
		return nil, err
	}

	batchDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_batch_duration_seconds",
		Help:    "Wall-clock time spent evaluating one batch through the pipeline.",
		Buckets: prometheus.DefBuckets,
	}), "sentinel_batch_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		HTTPRequests:     httpRequests,
		HTTPDurations:    httpDurations,
		EpochsEvaluated:  epochs,
		SolverIterations: iterations,
		AnomalyFlags:     flags,
		BatchEpochs:      batchEpochs,
		BatchDuration:    batchDuration,
	}, nil
}

// ObserveEpoch records one epoch's solver outcome. Satisfies the pipeline's
// EpochMetricsRecorder interface.
func (c *Collector) ObserveEpoch(outcome string, iterations int) {
	if c == nil {
		return
	}
	if c.EpochsEvaluated != nil {
		c.EpochsEvaluated.WithLabelValues(outcome).Inc()
	}
	if c.SolverIterations != nil && iterations > 0 {
		c.SolverIterations.Observe(float64(iterations))
	}
}

// ObserveBatch records one full pipeline run. Satisfies the pipeline's
// EpochMetricsRecorder interface.
func (c *Collector) ObserveBatch(epochs int, duration time.Duration) {
	if c == nil {
		return
	}
	if c.BatchEpochs != nil {
		c.BatchEpochs.Set(float64(epochs))
	}
	if c.BatchDuration != nil {
		c.BatchDuration.Observe(duration.Seconds())
	}
}

// ObserveFlags records anomaly flag counts per reason. Satisfies the
// detector's FlagMetricsRecorder interface.
func (c *Collector) ObserveFlags(reason string, count int) {
	if c == nil || c.AnomalyFlags == nil || count <= 0 {
		return
	}
	c.AnomalyFlags.WithLabelValues(reason).Add(float64(count))
}

// Middleware wraps an HTTP handler and records request counts and
// durations under the given route label.
func (c *Collector) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if c == nil {
			return
		}
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

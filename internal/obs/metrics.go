package obs

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics groups the request collectors of the cart API.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers and returns HTTP collectors.
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the cart API.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
	register(reg, m.ReqTotal, func(c prometheus.Collector) { m.ReqTotal = c.(*prometheus.CounterVec) })
	register(reg, m.ReqDur, func(c prometheus.Collector) { m.ReqDur = c.(*prometheus.HistogramVec) })
	register(reg, m.InFlight, func(c prometheus.Collector) { m.InFlight = c.(prometheus.Gauge) })
	return m
}

// CartMetrics counts cart operations and notification deliveries.
// A nil *CartMetrics records nothing.
type CartMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Events     *prometheus.CounterVec
}

// NewCartMetrics registers and returns cart collectors.
func NewCartMetrics(namespace string, reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &CartMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Cart operations by outcome.",
		}, []string{"operation", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_operation_duration_ms",
			Help:      "Cart operation latency including store round trips, in milliseconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"operation"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_events_published_total",
			Help:      "Cart notifications by topic and outcome.",
		}, []string{"topic", "result"}),
	}
	register(reg, m.Operations, func(c prometheus.Collector) { m.Operations = c.(*prometheus.CounterVec) })
	register(reg, m.Duration, func(c prometheus.Collector) { m.Duration = c.(*prometheus.HistogramVec) })
	register(reg, m.Events, func(c prometheus.Collector) { m.Events = c.(*prometheus.CounterVec) })
	return m
}

// ObserveOperation records one operation started at start.
func (m *CartMetrics) ObserveOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, Result(err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(DurationMillis(time.Since(start)))
}

// ObserveEvent records one notification attempt.
func (m *CartMetrics) ObserveEvent(topic string, err error) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(topic, Result(err)).Inc()
}

// Result maps an error to the "ok" / "error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// register adds c to reg; when an equal collector exists, reuse receives it instead.
func register(reg prometheus.Registerer, c prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			reuse(are.ExistingCollector)
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}

package obs

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the dispatch service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	directions    *prometheus.CounterVec
	optimizations *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg, reusing collectors that are
// already registered. A nil reg selects the default registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_http_requests_total",
		Help: "HTTP requests served, by method and status code",
	}, []string{"method", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	directions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_directions_requests_total",
		Help: "Directions provider requests, by mode and outcome",
	}, []string{"mode", "outcome"})
	optimizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_route_optimizations_total",
		Help: "Route optimizations, by ordering method",
	}, []string{"method"})

	var err error
	if httpRequests, err = register(reg, httpRequests); err != nil {
		return nil, err
	}
	if httpDuration, err = register(reg, httpDuration); err != nil {
		return nil, err
	}
	if directions, err = register(reg, directions); err != nil {
		return nil, err
	}
	if optimizations, err = register(reg, optimizations); err != nil {
		return nil, err
	}

	return &Metrics{
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
		directions:    directions,
		optimizations: optimizations,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) ObserveHTTP(method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(dur.Seconds())
}

// DirectionsRequest counts one provider call. outcome is "ok", "cached"
// or "unavailable".
func (m *Metrics) DirectionsRequest(mode, outcome string) {
	if m == nil {
		return
	}
	m.directions.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) RouteOptimized(method string) {
	if m == nil {
		return
	}
	m.optimizations.WithLabelValues(method).Inc()
}

package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mzhao/aapay/internal/events"
)

// metrics holds the service's Prometheus collectors.
type metrics struct {
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	eventsPublished prometheus.Counter
}

// newMetrics registers the collectors, including a gauge tracking the live
// listener count on the hub.
func newMetrics(reg prometheus.Registerer, hub *events.Hub) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aapay_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aapay_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aapay_events_published_total",
			Help: "Events fanned out to listeners.",
		}),
	}

	reg.MustRegister(m.requests, m.duration, m.eventsPublished)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "aapay_event_listeners",
		Help: "Currently connected event stream listeners.",
	}, func() float64 {
		return float64(hub.ListenerCount())
	}))
	return m
}

// instrument records request count and latency. The route label is the
// matched mux pattern, not the raw path, to keep cardinality bounded.
func (m *metrics) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := prometheus.NewTimer(nil)

		mux.ServeHTTP(rec, r)

		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(route).Observe(timer.ObserveDuration().Seconds())
	})
}

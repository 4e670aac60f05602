// Package observability exposes Prometheus metrics for the dashboard.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nyiyui.ca/hato/chizu"
)

// Collector bundles the dashboard metrics. A nil *Collector records nothing.
//
// It satisfies selection.Recorder, layer.Recorder, view.Recorder,
// dataset.Recorder and stream.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	Broadcasts     *prometheus.CounterVec
	Gestures       *prometheus.CounterVec
	Bindings       prometheus.Gauge
	DatasetLoads   *prometheus.CounterVec
	DatasetLoadDur prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
	StreamEvents   *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice against one registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}
	var err error

	if c.Broadcasts, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chizu_broadcasts_total",
		Help: "Selection and layer broadcasts, labeled by channel.",
	}, []string{"channel"}), "chizu_broadcasts_total"); err != nil {
		return nil, err
	}
	if c.Gestures, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chizu_gestures_total",
		Help: "Click gestures applied to the selection, labeled by item kind and rule.",
	}, []string{"kind", "rule"}), "chizu_gestures_total"); err != nil {
		return nil, err
	}
	if c.Bindings, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chizu_view_bindings",
		Help: "Active view bindings.",
	}), "chizu_view_bindings"); err != nil {
		return nil, err
	}
	if c.DatasetLoads, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chizu_dataset_loads_total",
		Help: "Dataset loads, labeled by result.",
	}, []string{"result"}), "chizu_dataset_loads_total"); err != nil {
		return nil, err
	}
	if c.DatasetLoadDur, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chizu_dataset_load_duration_seconds",
		Help:    "Dataset load latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "chizu_dataset_load_duration_seconds"); err != nil {
		return nil, err
	}
	if c.CacheLookups, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chizu_dataset_cache_lookups_total",
		Help: "Dataset document cache lookups, labeled by hit or miss.",
	}, []string{"result"}), "chizu_dataset_cache_lookups_total"); err != nil {
		return nil, err
	}
	if c.StreamEvents, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chizu_stream_events_total",
		Help: "Server-sent events published, labeled by stream.",
	}, []string{"stream"}), "chizu_stream_events_total"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chizu_http_requests_total",
		Help: "HTTP requests, labeled by route and status code.",
	}, []string{"route", "code"}), "chizu_http_requests_total"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) ObserveBroadcast(channel string) {
	if c == nil {
		return
	}
	c.Broadcasts.WithLabelValues(channel).Inc()
}

func (c *Collector) ObserveGesture(kind chizu.Kind, rule chizu.Rule) {
	if c == nil {
		return
	}
	c.Gestures.WithLabelValues(kind.String(), rule.String()).Inc()
}

func (c *Collector) BindingOpened() {
	if c == nil {
		return
	}
	c.Bindings.Inc()
}

func (c *Collector) BindingClosed() {
	if c == nil {
		return
	}
	c.Bindings.Dec()
}

func (c *Collector) ObserveLoad(err error, took time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.DatasetLoads.WithLabelValues(result).Inc()
	c.DatasetLoadDur.Observe(took.Seconds())
}

func (c *Collector) ObserveCache(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveStreamEvent(stream string) {
	if c == nil {
		return
	}
	c.StreamEvents.WithLabelValues(stream).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush passes through so server-sent events still stream.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument counts requests to h under the given route label.
func (c *Collector) Instrument(route string, h http.Handler) http.Handler {
	if c == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h.ServeHTTP(rec, r)
		c.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
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

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
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

package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/dataset"
	"nyiyui.ca/hato/chizu/layer"
	"nyiyui.ca/hato/chizu/selection"
	"nyiyui.ca/hato/chizu/view"
)

// Compile-time checks that the collector plugs into every recorder hook.
var (
	_ selection.Recorder = (*Collector)(nil)
	_ layer.Recorder     = (*Collector)(nil)
	_ view.Recorder      = (*Collector)(nil)
	_ dataset.Recorder   = (*Collector)(nil)
)

func newCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}

func TestSelectionMetrics(t *testing.T) {
	c := newCollector(t)
	s := selection.NewStore(selection.WithRecorder(c))
	s.Apply(chizu.Gesture{Target: chizu.ItemRef{Kind: chizu.KindRoute, ID: "R"}, Mods: chizu.Modifiers{Shift: true}})
	s.ClearAll()

	if got := testutil.ToFloat64(c.Broadcasts.WithLabelValues(selection.ChannelRoutes)); got != 2 {
		t.Fatalf("route broadcasts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Broadcasts.WithLabelValues(selection.ChannelEntities)); got != 1 {
		t.Fatalf("entity broadcasts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Gestures.WithLabelValues("route", "add")); got != 1 {
		t.Fatalf("gestures = %v, want 1", got)
	}
}

func TestLayerAndBindingMetrics(t *testing.T) {
	c := newCollector(t)
	reg := layer.NewRegistry(layer.Default(), c)
	reg.SetVisible("nope", false)
	reg.SetActive(layer.Flights)
	if got := testutil.ToFloat64(c.Broadcasts.WithLabelValues(layer.Channel)); got != 1 {
		t.Fatalf("layer broadcasts = %v, want 1", got)
	}

	b, err := view.Bind("test", view.Sources{Selection: selection.NewStore(), Layers: reg, Recorder: c}, view.AllChannels, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(c.Bindings); got != 1 {
		t.Fatalf("bindings = %v, want 1", got)
	}
	b.Close()
	b.Close()
	if got := testutil.ToFloat64(c.Bindings); got != 0 {
		t.Fatalf("bindings after close = %v, want 0", got)
	}
}

func TestDatasetMetrics(t *testing.T) {
	c := newCollector(t)
	c.ObserveLoad(nil, time.Second)
	c.ObserveLoad(errors.New("x"), time.Millisecond)
	c.ObserveCache(true)
	if got := testutil.ToFloat64(c.DatasetLoads.WithLabelValues("error")); got != 1 {
		t.Fatalf("failed loads = %v", got)
	}
	if got := testutil.ToFloat64(c.CacheLookups.WithLabelValues("hit")); got != 1 {
		t.Fatalf("cache hits = %v", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveBroadcast("x")
	c.ObserveGesture(chizu.KindEntity, chizu.RuleReplace)
	c.BindingOpened()
	c.ObserveLoad(nil, 0)
	c.ObserveStreamEvent("x")
	h := http.NotFoundHandler()
	if c.Instrument("x", h) == nil {
		t.Fatal("Instrument returned nil")
	}
}

func TestRegisterTwiceReuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	a.ObserveBroadcast("layers")
	if got := testutil.ToFloat64(b.Broadcasts.WithLabelValues("layers")); got != 1 {
		t.Fatalf("second collector does not share counters: %v", got)
	}
}

func TestHandlerAndInstrument(t *testing.T) {
	c := newCollector(t)
	h := c.Instrument("teapot", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("teapot", "418")); got != 1 {
		t.Fatalf("http requests = %v", got)
	}

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "chizu_http_requests_total") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}

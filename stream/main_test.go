package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nyiyui.ca/hato/chizu/layer"
	"nyiyui.ca/hato/chizu/selection"
	"nyiyui.ca/hato/chizu/view"
)

type countingRecorder struct{ events chan string }

func (r *countingRecorder) ObserveStreamEvent(stream string) {
	select {
	case r.events <- stream:
	default:
	}
}

func newServer(t *testing.T) (view.Sources, *Server, *httptest.Server) {
	t.Helper()
	src := view.Sources{
		Selection: selection.NewStore(),
		Layers:    layer.NewRegistry(layer.Default(), nil),
	}
	s, err := NewServer(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return src, s, ts
}

// readData sends every "data:" line of the stream to the returned channel.
func readData(t *testing.T, ctx context.Context, url string) <-chan string {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %s", resp.Status)
	}
	out := make(chan string, 16)
	go func() {
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				out <- data
			}
		}
		close(out)
	}()
	return out
}

// await republishes until the client sees want, as events sent before the
// client registers are not replayed.
func await(t *testing.T, data <-chan string, want string, publish func()) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	publish()
	for {
		select {
		case got, ok := <-data:
			if !ok {
				t.Fatal("stream closed")
			}
			if got == want {
				return
			}
		case <-tick.C:
			publish()
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestEntitiesStream(t *testing.T) {
	src, _, ts := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	data := readData(t, ctx, ts.URL+"?stream="+Entities)
	await(t, data, `["DEU","FRA"]`, func() {
		src.Selection.ReplaceEntitySelection(selection.NewSet("FRA", "DEU"))
	})
}

func TestLayersStream(t *testing.T) {
	src, _, ts := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	data := readData(t, ctx, ts.URL+"?stream="+Layers)
	await(t, data, `[{"id":"countries","name":"Countries","kind":"polygon","visible":true,"active":true},{"id":"flights","name":"Flight Routes","kind":"line","visible":false,"active":false}]`, func() {
		src.Layers.ToggleVisible(layer.Flights)
		src.Layers.SetVisible(layer.Flights, false)
	})
}

func TestUnknownStream(t *testing.T) {
	_, _, ts := newServer(t)
	resp, err := http.Get(ts.URL + "?stream=airports")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("unknown stream accepted")
	}
}

func TestRecorderAndClose(t *testing.T) {
	src := view.Sources{
		Selection: selection.NewStore(),
		Layers:    layer.NewRegistry(layer.Default(), nil),
	}
	rec := &countingRecorder{events: make(chan string, 16)}
	s, err := NewServer(src, rec)
	if err != nil {
		t.Fatal(err)
	}
	src.Selection.ReplaceRouteSelection(selection.NewSet("R"))
	if len(rec.events) == 0 {
		t.Fatal("no events recorded")
	}
	s.Close()
	for _, b := range s.bindings {
		if b.Status() != view.TornDown {
			t.Fatalf("binding %s still %s", b.Comment(), b.Status())
		}
	}
}

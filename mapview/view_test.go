package mapview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	ui "github.com/gizak/termui/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/dataset"
	"nyiyui.ca/hato/chizu/layer"
	"nyiyui.ca/hato/chizu/selection"
	"nyiyui.ca/hato/chizu/view"
)

func box(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func europe() *dataset.Dataset {
	return &dataset.Dataset{
		Entities: []dataset.Entity{
			{ID: "FRA", Name: "France", Geometry: box(0, 42, 8, 50)},
			{ID: "DEU", Name: "Germany", Geometry: orb.MultiPolygon{box(8, 47, 15, 55)}},
			{ID: "ITA", Name: "Italy", Geometry: box(8, 36, 18, 46)},
		},
		Routes: []dataset.Route{
			{Carrier: "AF", Lat1: "45", Lon1: "1", Lat2: "45", Lon2: "7", Base: "BOD", Ref: "GVA"},
			{Carrier: "XX", Lat1: "?", Lon1: "0", Lat2: "0", Lon2: "0"},
		},
	}
}

var afRoute = chizu.ItemRef{Kind: chizu.KindRoute, ID: "AF-45-1-45-7"}

func newSources() view.Sources {
	return view.Sources{
		Selection: selection.NewStore(),
		Layers:    layer.NewRegistry(layer.Default(), nil),
	}
}

func newView(t *testing.T, src view.Sources) *View {
	t.Helper()
	v, err := New(src, image.Pt(1000, 1000))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(v.Close)
	if err := v.Load(context.Background(), dataset.Static(europe())); err != nil {
		t.Fatal(err)
	}
	return v
}

func entity(id string) chizu.ItemRef { return chizu.ItemRef{Kind: chizu.KindEntity, ID: id} }

func TestNoRenderTarget(t *testing.T) {
	for _, size := range []image.Point{{}, {10, 0}, {-1, 5}} {
		if _, err := New(newSources(), size); !errors.Is(err, view.ErrNoRenderTarget) {
			t.Errorf("New(%v) err = %v", size, err)
		}
	}
}

func TestClickFold(t *testing.T) {
	v := newView(t, newSources())
	clicks := []struct {
		at   orb.Point
		mods chizu.Modifiers
	}{
		{orb.Point{4, 48}, chizu.Modifiers{}},
		{orb.Point{11.5, 51}, chizu.Modifiers{Shift: true}},
		{orb.Point{4, 48}, chizu.Modifiers{Ctrl: true}},
	}
	for _, c := range clicks {
		if _, ok, err := v.Click(v.ScreenPoint(c.at), c.mods); !ok || err != nil {
			t.Fatalf("click at %v: hit=%t err=%v", c.at, ok, err)
		}
	}
	got := map[string]bool{}
	for _, id := range []string{"FRA", "DEU", "ITA"} {
		got[id] = v.Highlighted(entity(id))
	}
	if diff := cmp.Diff(map[string]bool{"FRA": false, "DEU": true, "ITA": false}, got); diff != "" {
		t.Fatalf("highlighted (-want +got):\n%s", diff)
	}
}

func TestRouteClickWinsOverEntity(t *testing.T) {
	src := newSources()
	v := newView(t, src)
	ref, ok, err := v.Click(v.ScreenPoint(orb.Point{4, 45}), chizu.Modifiers{})
	if err != nil || !ok {
		t.Fatalf("hit=%t err=%v", ok, err)
	}
	if ref != afRoute {
		t.Fatalf("hit %s, want %s", ref, afRoute)
	}
	if src.Selection.Entities().Len() != 0 {
		t.Fatalf("route click changed entities: %s", src.Selection.Entities())
	}
	if !v.Highlighted(afRoute) {
		t.Fatal("route not highlighted")
	}
}

func TestHiddenFlights(t *testing.T) {
	src := newSources()
	v := newView(t, src)
	src.Selection.ReplaceRouteSelection(selection.NewSet(afRoute.ID))
	src.Layers.SetVisible(layer.Flights, false)

	for _, s := range v.Shapes() {
		wantVisible := s.Ref.Kind == chizu.KindEntity
		if s.Visible != wantVisible {
			t.Errorf("%s visible = %t", s.Ref, s.Visible)
		}
	}
	if v.Highlighted(afRoute) {
		t.Fatal("hidden route still highlighted")
	}
	// with the route hidden the click falls through to France
	ref, ok, _ := v.Click(v.ScreenPoint(orb.Point{4, 45}), chizu.Modifiers{})
	if !ok || ref != entity("FRA") {
		t.Fatalf("hit %s %t, want FRA", ref, ok)
	}
}

func TestShapes(t *testing.T) {
	v := newView(t, newSources())
	shapes := v.Shapes()
	if len(shapes) != 5 {
		t.Fatalf("shapes = %d", len(shapes))
	}
	last := shapes[4]
	if last.Drawable || last.Ref.Kind != chizu.KindRoute {
		t.Fatalf("unparseable route = %#v", last)
	}
}

func TestClickEmpty(t *testing.T) {
	src := newSources()
	v := newView(t, src)
	_, ok, err := v.Click(v.ScreenPoint(orb.Point{-150, -40}), chizu.Modifiers{})
	if ok || err != nil {
		t.Fatalf("hit=%t err=%v", ok, err)
	}
}

func TestLoadFailure(t *testing.T) {
	src := newSources()
	v, err := New(src, image.Pt(100, 100))
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	boom := errors.New("boom")
	if err := v.Load(context.Background(), dataset.LoaderFunc(func(context.Context) (*dataset.Dataset, error) {
		return nil, boom
	})); !errors.Is(err, boom) {
		t.Fatalf("Load err = %v", err)
	}
	if !errors.Is(v.Err(), boom) || len(v.Shapes()) != 0 {
		t.Fatalf("Err = %v shapes = %d", v.Err(), len(v.Shapes()))
	}
	// still wired to the stores
	src.Selection.ReplaceEntitySelection(selection.NewSet("FRA"))
	if !v.State().Entities.Has("FRA") {
		t.Fatal("selection broadcast lost after failed load")
	}
	// a later load recovers
	if err := v.Load(context.Background(), dataset.Static(europe())); err != nil {
		t.Fatal(err)
	}
	if v.Err() != nil || !v.Highlighted(entity("FRA")) {
		t.Fatalf("after retry: err=%v FRA highlighted=%t", v.Err(), v.Highlighted(entity("FRA")))
	}
}

func TestCloseStopsUpdates(t *testing.T) {
	src := newSources()
	v := newView(t, src)
	v.Close()
	src.Selection.ReplaceEntitySelection(selection.NewSet("ITA"))
	if v.State().Entities.Has("ITA") {
		t.Fatal("closed view still updated")
	}
	if v.Status() != view.TornDown {
		t.Fatalf("status = %s", v.Status())
	}
}

func TestGreatCircleSplitsAtAntimeridian(t *testing.T) {
	path := greatCircle(orb.Point{170, 0}, orb.Point{-170, 0})
	if len(path) != 2 {
		t.Fatalf("parts = %d", len(path))
	}
	for _, ls := range path {
		for i := 1; i < len(ls); i++ {
			if math.Abs(ls[i].Lon()-ls[i-1].Lon()) > 180 {
				t.Fatalf("segment jumps across the map: %v %v", ls[i-1], ls[i])
			}
		}
	}
}

func TestDraw(t *testing.T) {
	src := newSources()
	v := newView(t, src)
	src.Selection.ReplaceRouteSelection(selection.NewSet(afRoute.ID))
	c := ui.NewCanvas()
	c.SetRect(0, 0, 42, 22)
	v.Draw(c)
	if want := image.Pt(80, 80); v.Size() != want {
		t.Fatalf("size after draw = %v, want %v", v.Size(), want)
	}
	if got := DotAt(c.Inner, c.Inner.Min); got != image.Pt(1, 2) {
		t.Fatalf("DotAt = %v", got)
	}
}

func TestSnapshot(t *testing.T) {
	v := newView(t, newSources())
	var buf bytes.Buffer
	if err := v.Snapshot(&buf, 320, 240); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("bounds = %v", b)
	}
}

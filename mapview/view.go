// Package mapview is the map view: countries as projected shapes and routes as
// great-circle paths, drawn to a terminal canvas or a PNG.
package mapview

import (
	"context"
	"image"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/dataset"
	"nyiyui.ca/hato/chizu/view"
)

// routeTolerance is how far from a route path, in target pixels, a click still
// hits the route.
const routeTolerance = 3

type entityShape struct {
	entity dataset.Entity
	screen orb.Geometry
}

type routeShape struct {
	route dataset.Route
	// path is in lon/lat; nil if the coordinates do not parse.
	path   orb.MultiLineString
	screen orb.MultiLineString
}

// Shape is the derived render state of one item.
type Shape struct {
	Ref         chizu.ItemRef
	Label       string
	Highlighted bool
	// Visible is false when the owning layer is hidden; such shapes are not
	// drawn and cannot be clicked.
	Visible bool
	// Drawable is false for routes whose coordinates do not parse.
	Drawable bool
}

// View is the map view binding.
type View struct {
	binding  *view.Binding
	onChange func()

	lock     sync.Mutex
	proj     projection
	data     *dataset.Dataset
	err      error
	state    view.State
	entities []entityShape
	routes   []routeShape
}

type Option func(*View)

// WithOnChange sets a hook run after every broadcast, e.g. to request a redraw.
// It runs on the broadcasting goroutine and must not block.
func WithOnChange(fn func()) Option {
	return func(v *View) {
		v.onChange = fn
	}
}

// New activates a map view drawing to a target of size pixels. A target with
// no area fails with view.ErrNoRenderTarget.
func New(src view.Sources, size image.Point, opts ...Option) (*View, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, view.ErrNoRenderTarget
	}
	v := &View{proj: newProjection(size)}
	for _, opt := range opts {
		opt(v)
	}
	b, err := view.Bind("mapview", src, view.AllChannels, v.receive)
	if err != nil {
		return nil, err
	}
	v.binding = b
	return v, nil
}

func (v *View) receive(st view.State) {
	v.lock.Lock()
	v.state = st
	v.lock.Unlock()
	if v.onChange != nil {
		v.onChange()
	}
}

// Load awaits loader once. On failure the error is kept as the view's error
// and the view stays active with nothing to draw.
func (v *View) Load(ctx context.Context, loader dataset.Loader) error {
	d, err := loader.Load(ctx)
	v.lock.Lock()
	if err != nil {
		zap.S().Warnw("mapview: dataset unavailable", "err", err)
		v.err = err
		v.data = nil
		v.entities, v.routes = nil, nil
	} else {
		v.err = nil
		v.setData(d)
	}
	v.lock.Unlock()
	if v.onChange != nil {
		v.onChange()
	}
	return err
}

// setData builds shapes for d. Caller holds lock.
func (v *View) setData(d *dataset.Dataset) {
	v.data = d
	v.entities = make([]entityShape, len(d.Entities))
	for i, e := range d.Entities {
		v.entities[i] = entityShape{entity: e}
	}
	v.routes = make([]routeShape, len(d.Routes))
	for i, r := range d.Routes {
		v.routes[i] = routeShape{route: r}
		if from, to, ok := r.Endpoints(); ok {
			v.routes[i].path = greatCircle(from, to)
		}
	}
	v.reproject()
}

// reproject recomputes screen geometry. Caller holds lock.
func (v *View) reproject() {
	for i := range v.entities {
		if g := v.entities[i].entity.Geometry; g != nil {
			v.entities[i].screen = v.proj.geometry(g)
		}
	}
	for i := range v.routes {
		if v.routes[i].path == nil {
			v.routes[i].screen = nil
			continue
		}
		v.routes[i].screen = v.proj.geometry(v.routes[i].path).(orb.MultiLineString)
	}
}

// Resize refits the projection to a new target size.
func (v *View) Resize(size image.Point) error {
	if size.X <= 0 || size.Y <= 0 {
		return view.ErrNoRenderTarget
	}
	v.lock.Lock()
	defer v.lock.Unlock()
	if size == v.proj.size {
		return nil
	}
	v.proj = newProjection(size)
	v.reproject()
	return nil
}

func (v *View) Size() image.Point {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.proj.size
}

// ScreenPoint projects a lon/lat point onto the current target.
func (v *View) ScreenPoint(ll orb.Point) image.Point {
	v.lock.Lock()
	defer v.lock.Unlock()
	return toImage(v.proj.screen(ll))
}

// Err is the last dataset load error, if any.
func (v *View) Err() error {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.err
}

func (v *View) Status() view.Status { return v.binding.Status() }

func (v *View) State() view.State {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.state
}

// Shapes returns every loaded item, entities first, with derived state.
func (v *View) Shapes() []Shape {
	v.lock.Lock()
	defer v.lock.Unlock()
	shapes := make([]Shape, 0, len(v.entities)+len(v.routes))
	entitiesVisible := v.state.Visible(chizu.KindEntity)
	for _, e := range v.entities {
		ref := chizu.ItemRef{Kind: chizu.KindEntity, ID: e.entity.ID}
		shapes = append(shapes, Shape{
			Ref:         ref,
			Label:       e.entity.Name,
			Highlighted: v.state.Highlighted(ref),
			Visible:     entitiesVisible,
			Drawable:    e.screen != nil,
		})
	}
	routesVisible := v.state.Visible(chizu.KindRoute)
	for _, r := range v.routes {
		ref := chizu.ItemRef{Kind: chizu.KindRoute, ID: r.route.ID()}
		shapes = append(shapes, Shape{
			Ref:         ref,
			Label:       r.route.Base + "→" + r.route.Ref,
			Highlighted: v.state.Highlighted(ref),
			Visible:     routesVisible,
			Drawable:    r.screen != nil,
		})
	}
	return shapes
}

// Highlighted reports whether ref is highlighted on the map. Items whose layer
// is hidden are never highlighted, as they are not drawn.
func (v *View) Highlighted(ref chizu.ItemRef) bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.state.Visible(ref.Kind) && v.state.Highlighted(ref)
}

// HitTest finds the item drawn at p. Routes are tested first and win over the
// country underneath them.
func (v *View) HitTest(p image.Point) (chizu.ItemRef, bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	pt := orb.Point{float64(p.X), float64(p.Y)}
	if v.state.Visible(chizu.KindRoute) {
		best, bestDist := -1, float64(routeTolerance)
		for i, r := range v.routes {
			if r.screen == nil {
				continue
			}
			if d := planar.DistanceFrom(r.screen, pt); d <= bestDist {
				best, bestDist = i, d
			}
		}
		if best != -1 {
			return chizu.ItemRef{Kind: chizu.KindRoute, ID: v.routes[best].route.ID()}, true
		}
	}
	if v.state.Visible(chizu.KindEntity) {
		for _, e := range v.entities {
			if contains(e.screen, pt) {
				return chizu.ItemRef{Kind: chizu.KindEntity, ID: e.entity.ID}, true
			}
		}
	}
	return chizu.ItemRef{}, false
}

func contains(g orb.Geometry, pt orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	case orb.Collection:
		for _, sub := range g {
			if contains(sub, pt) {
				return true
			}
		}
	}
	return false
}

// Click dispatches a gesture for the item at p. It reports the item hit;
// clicks on empty map do nothing.
func (v *View) Click(p image.Point, mods chizu.Modifiers) (chizu.ItemRef, bool, error) {
	ref, ok := v.HitTest(p)
	if !ok {
		return ref, false, nil
	}
	return ref, true, v.binding.Dispatch(chizu.Gesture{Target: ref, Mods: mods})
}

// ClearAll clears both selections, for the escape key.
func (v *View) ClearAll() error {
	return v.binding.ClearAll()
}

// Close tears the view down. It is safe to call more than once.
func (v *View) Close() {
	v.binding.Close()
}

// Package layer holds the display layers shared by all views.
package layer

import (
	"fmt"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/notify"
)

// Kind is the geometry kind a layer draws.
type Kind string

const (
	KindPoint   Kind = "point"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
)

// Layer is a named, independently toggleable rendering group.
// Visible and Active are independent of each other.
type Layer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Visible bool   `json:"visible"`
	Active  bool   `json:"active"`
}

// IDs of the seeded layers.
const (
	Countries = "countries"
	Flights   = "flights"
)

// Default returns the static layer list every session starts with.
func Default() []Layer {
	return []Layer{
		{ID: Countries, Name: "Countries", Kind: KindPolygon, Visible: true, Active: true},
		{ID: Flights, Name: "Flight Routes", Kind: KindLine, Visible: true, Active: false},
	}
}

// For returns the id of the layer that owns items of kind k.
func For(k chizu.Kind) string {
	if k == chizu.KindRoute {
		return Flights
	}
	return Countries
}

// Visible reports whether the layer id is in layers and visible.
// A missing layer counts as hidden.
func Visible(layers []Layer, id string) bool {
	i := slices.IndexFunc(layers, func(l Layer) bool { return l.ID == id })
	return i != -1 && layers[i].Visible
}

// Recorder receives broadcast counts (see package observability).
type Recorder interface {
	ObserveBroadcast(channel string)
}

// Channel is the broadcast channel name, also used as a metric label.
const Channel = "layers"

// Registry owns the layer list. The list is fixed at construction; only the
// Visible and Active flags change afterwards.
//
// Every broadcast carries a fresh copy of the list, so subscribers may keep it.
type Registry struct {
	layers *notify.Subject[[]Layer]
}

// NewRegistry seeds a Registry with layers. It panics on duplicate or empty
// ids, as the seed is static configuration.
func NewRegistry(seed []Layer, r Recorder) *Registry {
	seen := map[string]bool{}
	active := 0
	for _, l := range seed {
		if l.ID == "" {
			panic("layer: empty id in seed")
		}
		if seen[l.ID] {
			panic(fmt.Sprintf("layer: duplicate id %q in seed", l.ID))
		}
		seen[l.ID] = true
		if l.Active {
			active++
		}
	}
	if active > 1 {
		panic("layer: more than one active layer in seed")
	}
	reg := &Registry{layers: notify.NewSubject(Channel, slices.Clone(seed))}
	if r != nil {
		reg.layers.OnPublish(r.ObserveBroadcast)
	}
	return reg
}

// List returns a copy of the current layers in order.
func (r *Registry) List() []Layer {
	return slices.Clone(r.layers.Latest())
}

// Subscribe calls fn with the current list and again after every change.
func (r *Registry) Subscribe(comment string, fn func([]Layer)) *notify.Subscription {
	return r.layers.Subscribe(comment, func(layers []Layer) {
		fn(slices.Clone(layers))
	})
}

// Layer returns the layer with the given id.
func (r *Registry) Layer(id string) (Layer, bool) {
	layers := r.layers.Latest()
	i := slices.IndexFunc(layers, func(l Layer) bool { return l.ID == id })
	if i == -1 {
		return Layer{}, false
	}
	return layers[i], true
}

// Active returns the active layer, if any.
func (r *Registry) Active() (Layer, bool) {
	layers := r.layers.Latest()
	i := slices.IndexFunc(layers, func(l Layer) bool { return l.Active })
	if i == -1 {
		return Layer{}, false
	}
	return layers[i], true
}

// SetVisible sets the visibility of layer id and republishes the list.
// Unknown ids are ignored and nothing is published.
func (r *Registry) SetVisible(id string, visible bool) {
	r.modify(id, func(l *Layer) { l.Visible = visible })
}

// ToggleVisible flips the visibility of layer id.
func (r *Registry) ToggleVisible(id string) {
	r.modify(id, func(l *Layer) { l.Visible = !l.Visible })
}

// SetActive makes layer id the only active layer. Unknown ids are ignored.
func (r *Registry) SetActive(id string) {
	r.layers.Update(func(old []Layer) ([]Layer, bool) {
		if slices.IndexFunc(old, func(l Layer) bool { return l.ID == id }) == -1 {
			return old, false
		}
		next := slices.Clone(old)
		for i := range next {
			next[i].Active = next[i].ID == id
		}
		return next, true
	})
}

func (r *Registry) modify(id string, fn func(*Layer)) {
	r.layers.Update(func(old []Layer) ([]Layer, bool) {
		i := slices.IndexFunc(old, func(l Layer) bool { return l.ID == id })
		if i == -1 {
			return old, false
		}
		next := slices.Clone(old)
		fn(&next[i])
		return next, true
	})
}

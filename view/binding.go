// Package view binds a rendered view to the selection store and the layer
// registry.
package view

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/layer"
	"nyiyui.ca/hato/chizu/notify"
	"nyiyui.ca/hato/chizu/selection"
)

var (
	// ErrNoRenderTarget is returned when a view is activated without a usable
	// render target. The view must be reconstructed.
	ErrNoRenderTarget = errors.New("view: no render target")
	ErrTornDown       = errors.New("view: binding torn down")
)

type Status int

const (
	Uninitialized Status = iota
	Active
	TornDown
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case TornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Recorder counts live bindings (see package observability).
type Recorder interface {
	BindingOpened()
	BindingClosed()
}

// Sources are the shared stores a binding follows.
type Sources struct {
	Selection *selection.Store
	Layers    *layer.Registry
	// Recorder is optional.
	Recorder Recorder
}

// Channels picks which broadcasts a binding follows.
type Channels struct {
	Entities bool
	Routes   bool
	Layers   bool
}

var AllChannels = Channels{Entities: true, Routes: true, Layers: true}

// State is what a view derives its rendering from. It is replaced wholesale on
// every broadcast; Sets and the layer slice are never mutated in place.
type State struct {
	Entities selection.Set `json:"entities"`
	Routes   selection.Set `json:"routes"`
	Layers   []layer.Layer `json:"layers"`
}

// Highlighted reports whether ref is in the selection of its kind.
func (s State) Highlighted(ref chizu.ItemRef) bool {
	if ref.Kind == chizu.KindRoute {
		return s.Routes.Has(ref.ID)
	}
	return s.Entities.Has(ref.ID)
}

// Visible reports whether the layer owning items of kind k is visible.
func (s State) Visible(k chizu.Kind) bool {
	return layer.Visible(s.Layers, layer.For(k))
}

// Binding is one view's subscription to the shared stores.
//
// onChange runs once when the binding becomes active and again after every
// followed broadcast, always with the full current State. Calls are
// serialized. onChange must not call Dispatch synchronously.
type Binding struct {
	id       uuid.UUID
	comment  string
	src      Sources
	onChange func(State)

	deliverLock sync.Mutex

	lock   sync.Mutex
	status Status
	state  State
	subs   []*notify.Subscription
}

// Bind subscribes to the channels in ch and activates the binding.
func Bind(comment string, src Sources, ch Channels, onChange func(State)) (*Binding, error) {
	if src.Selection == nil || src.Layers == nil {
		return nil, errors.New("view: bind needs a selection store and a layer registry")
	}
	if onChange == nil {
		onChange = func(State) {}
	}
	b := &Binding{
		id:       uuid.New(),
		comment:  comment,
		src:      src,
		onChange: onChange,
	}
	name := fmt.Sprintf("%s/%s", comment, b.id)
	if ch.Entities {
		b.subs = append(b.subs, src.Selection.SubscribeEntitySelection(name, func(s selection.Set) {
			b.receive(func(st *State) { st.Entities = s })
		}))
	}
	if ch.Routes {
		b.subs = append(b.subs, src.Selection.SubscribeRouteSelection(name, func(s selection.Set) {
			b.receive(func(st *State) { st.Routes = s })
		}))
	}
	if ch.Layers {
		b.subs = append(b.subs, src.Layers.Subscribe(name, func(l []layer.Layer) {
			b.receive(func(st *State) { st.Layers = l })
		}))
	}

	b.deliverLock.Lock()
	defer b.deliverLock.Unlock()
	b.lock.Lock()
	b.status = Active
	st := b.state
	b.lock.Unlock()
	if src.Recorder != nil {
		src.Recorder.BindingOpened()
	}
	zap.S().Debugw("view: bound", "binding", name, "channels", ch)
	b.onChange(st)
	return b, nil
}

func (b *Binding) receive(update func(*State)) {
	b.deliverLock.Lock()
	defer b.deliverLock.Unlock()
	b.lock.Lock()
	update(&b.state)
	st := b.state
	status := b.status
	b.lock.Unlock()
	if status != Active {
		return
	}
	b.onChange(st)
}

func (b *Binding) ID() uuid.UUID { return b.id }

func (b *Binding) Comment() string { return b.comment }

func (b *Binding) Status() Status {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.status
}

// State returns the latest derived state.
func (b *Binding) State() State {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.state
}

// Dispatch applies g to the selection store: exactly one replace of the
// gesture's kind.
func (b *Binding) Dispatch(g chizu.Gesture) error {
	if b.Status() != Active {
		return ErrTornDown
	}
	b.src.Selection.Apply(g)
	return nil
}

// ClearAll clears both selections, for the escape key.
func (b *Binding) ClearAll() error {
	if b.Status() != Active {
		return ErrTornDown
	}
	b.src.Selection.ClearAll()
	return nil
}

// Close unsubscribes every channel. It is safe to call more than once.
func (b *Binding) Close() {
	b.lock.Lock()
	if b.status == TornDown {
		b.lock.Unlock()
		return
	}
	b.status = TornDown
	subs := b.subs
	b.subs = nil
	b.lock.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if b.src.Recorder != nil {
		b.src.Recorder.BindingClosed()
	}
	zap.S().Debugw("view: torn down", "binding", b.comment, "id", b.id)
}

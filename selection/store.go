// Package selection holds the shared entity and route selections.
package selection

import (
	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/notify"
)

// Next applies the click rule picked by mods to old:
// plain replaces the selection with {id}, shift adds id, ctrl toggles id.
// It is the single definition every view uses.
func Next(old Set, id string, mods chizu.Modifiers) Set {
	switch mods.Rule() {
	case chizu.RuleAdd:
		return old.Union(id)
	case chizu.RuleToggle:
		return old.Toggle(id)
	default:
		return NewSet(id)
	}
}

// Recorder receives counts of store activity (see package observability).
type Recorder interface {
	ObserveBroadcast(channel string)
	ObserveGesture(kind chizu.Kind, rule chizu.Rule)
}

// Channel names, also used as metric labels.
const (
	ChannelEntities = "entities"
	ChannelRoutes   = "routes"
)

// Store owns the two selection sets of a session.
type Store struct {
	entities *notify.Subject[Set]
	routes   *notify.Subject[Set]
	recorder Recorder
}

// Option customises Store construction.
type Option func(*Store)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// NewStore returns a Store with both selections empty.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entities: notify.NewSubject(ChannelEntities, Set{}),
		routes:   notify.NewSubject(ChannelRoutes, Set{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.recorder != nil {
		s.entities.OnPublish(s.recorder.ObserveBroadcast)
		s.routes.OnPublish(s.recorder.ObserveBroadcast)
	}
	return s
}

// ReplaceEntitySelection publishes ids as the entity selection.
func (s *Store) ReplaceEntitySelection(ids Set) {
	s.entities.Publish(ids)
}

// ReplaceRouteSelection publishes ids as the route selection.
func (s *Store) ReplaceRouteSelection(ids Set) {
	s.routes.Publish(ids)
}

// ClearAll empties and publishes both selections.
func (s *Store) ClearAll() {
	s.entities.Publish(Set{})
	s.routes.Publish(Set{})
}

// SubscribeEntitySelection calls fn with the current entity selection and
// again after every change.
func (s *Store) SubscribeEntitySelection(comment string, fn func(Set)) *notify.Subscription {
	return s.entities.Subscribe(comment, fn)
}

// SubscribeRouteSelection is SubscribeEntitySelection for routes.
func (s *Store) SubscribeRouteSelection(comment string, fn func(Set)) *notify.Subscription {
	return s.routes.Subscribe(comment, fn)
}

func (s *Store) Entities() Set {
	return s.entities.Latest()
}

func (s *Store) Routes() Set {
	return s.routes.Latest()
}

// Selection returns the current selection of kind k.
func (s *Store) Selection(k chizu.Kind) Set {
	return s.subject(k).Latest()
}

// Replace publishes ids as the selection of kind k.
func (s *Store) Replace(k chizu.Kind, ids Set) {
	s.subject(k).Publish(ids)
}

// Apply turns a gesture into one replace of the gesture's kind. The rule is
// evaluated against the store's own latest set, in the same critical section
// as the publish, so concurrent gestures never lose each other's changes.
func (s *Store) Apply(g chizu.Gesture) {
	zap.S().Debugw("selection: gesture", "gesture", g.String())
	if s.recorder != nil {
		s.recorder.ObserveGesture(g.Target.Kind, g.Mods.Rule())
	}
	s.subject(g.Target.Kind).Update(func(old Set) (Set, bool) {
		return Next(old, g.Target.ID, g.Mods), true
	})
}

func (s *Store) subject(k chizu.Kind) *notify.Subject[Set] {
	if k == chizu.KindRoute {
		return s.routes
	}
	return s.entities
}

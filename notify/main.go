// Package notify implements a replay-latest observer list.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// slowObserver is how long a single callback may take before it gets logged.
const slowObserver = 200 * time.Millisecond

type subscriber[E any] struct {
	id      uint64
	fn      func(E)
	comment string
}

// Subject holds the latest value of E and calls every subscriber, in
// subscription order, each time a new value is published.
//
// Publishes are serialised: a value is delivered to all subscribers before the
// next publish (or subscribe) starts. Callbacks must therefore not publish to or
// subscribe to the same Subject.
type Subject[E any] struct {
	comment string

	// pubLock serialises Publish, Update and Subscribe.
	pubLock sync.Mutex

	// subscribersLock guards latest, subscribers and nextID.
	subscribersLock sync.Mutex
	latest          E
	subscribers     []subscriber[E]
	nextID          uint64

	onPublish func(comment string)
}

// NewSubject returns a Subject whose latest value starts as initial.
func NewSubject[E any](comment string, initial E) *Subject[E] {
	return &Subject[E]{
		comment: comment,
		latest:  initial,
	}
}

// OnPublish registers a hook called once per publish (before delivery).
// It is meant for metrics; set it before the Subject is shared.
func (s *Subject[E]) OnPublish(hook func(comment string)) {
	s.onPublish = hook
}

// Comment is the label given at construction.
func (s *Subject[E]) Comment() string {
	return s.comment
}

// Latest returns the most recently published value.
func (s *Subject[E]) Latest() E {
	s.subscribersLock.Lock()
	defer s.subscribersLock.Unlock()
	return s.latest
}

// Len returns the number of live subscribers.
func (s *Subject[E]) Len() int {
	s.subscribersLock.Lock()
	defer s.subscribersLock.Unlock()
	return len(s.subscribers)
}

// Subscribe registers fn and immediately calls it with the latest value.
// fn then receives every later publish until the Subscription is cancelled.
func (s *Subject[E]) Subscribe(comment string, fn func(E)) *Subscription {
	s.pubLock.Lock()
	defer s.pubLock.Unlock()

	s.subscribersLock.Lock()
	s.nextID++
	sub := subscriber[E]{id: s.nextID, fn: fn, comment: comment}
	s.subscribers = append(s.subscribers, sub)
	latest := s.latest
	s.subscribersLock.Unlock()

	s.deliver(sub, latest)
	return &Subscription{cancel: func() { s.unsubscribe(sub.id) }}
}

// unsubscribe does not take pubLock, so it never waits for an in-flight
// publish. That publish may still reach the removed subscriber.
func (s *Subject[E]) unsubscribe(id uint64) {
	s.subscribersLock.Lock()
	defer s.subscribersLock.Unlock()
	i := slices.IndexFunc(s.subscribers, func(sub subscriber[E]) bool { return sub.id == id })
	if i == -1 {
		return
	}
	s.subscribers = slices.Delete(s.subscribers, i, i+1)
}

// Publish replaces the latest value with e and delivers it.
func (s *Subject[E]) Publish(e E) {
	s.Update(func(E) (E, bool) { return e, true })
}

// Update computes the next value from the latest one. If fn reports false
// nothing is stored or delivered.
func (s *Subject[E]) Update(fn func(old E) (next E, publish bool)) {
	s.pubLock.Lock()
	defer s.pubLock.Unlock()

	s.subscribersLock.Lock()
	next, ok := fn(s.latest)
	if !ok {
		s.subscribersLock.Unlock()
		return
	}
	s.latest = next
	subs := slices.Clone(s.subscribers)
	s.subscribersLock.Unlock()

	if s.onPublish != nil {
		s.onPublish(s.comment)
	}
	for _, sub := range subs {
		s.deliver(sub, next)
	}
}

func (s *Subject[E]) deliver(sub subscriber[E], e E) {
	start := time.Now()
	sub.fn(e)
	if took := time.Since(start); took > slowObserver {
		zap.S().Warnw("notify: slow observer",
			"subject", s.comment,
			"observer", sub.comment,
			"took", took)
	}
}

// Subscription is returned by Subject.Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops later deliveries. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

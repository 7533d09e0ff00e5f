package prefs

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType is the kind of change an event announces.
type EventType string

const (
	EventAdded   EventType = "added"
	EventChanged EventType = "changed"
	EventRemoved EventType = "removed"
	EventCleared EventType = "cleared"
)

// Event describes one committed mutation. Old/new values are pointers
// so "no value" stays distinguishable from "null value".
type Event struct {
	Type      EventType
	Key       string
	OldValue  *Value
	NewValue  *Value
	Timestamp time.Time
}

// Listener receives events. Listeners run synchronously on the mutating
// goroutine; a listener that calls back into Set/Delete on the same
// injector risks unbounded recursion if it triggers an event type it
// also listens to.
type Listener func(Event)

type subscription struct {
	id string
	fn Listener
}

// emitter is the observer registry behind Injector.On/Off. Listener
// sets are created lazily per event type on first subscription.
type emitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]subscription
	logger    *zap.Logger
}

func newEmitter(logger *zap.Logger) *emitter {
	return &emitter{
		listeners: make(map[EventType][]subscription),
		logger:    logger,
	}
}

// on registers fn for events of type t and returns a subscription ID
// for off.
func (e *emitter) on(t EventType, fn Listener) string {
	id := uuid.NewString()
	e.mu.Lock()
	e.listeners[t] = append(e.listeners[t], subscription{id: id, fn: fn})
	e.mu.Unlock()
	return id
}

// off removes the subscription with the given ID, reporting whether it
// was found.
func (e *emitter) off(t EventType, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.listeners[t]
	for i, s := range subs {
		if s.id == id {
			e.listeners[t] = append(subs[:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// emit delivers ev to every listener of its type in registration order.
// A panicking listener is recovered and logged; delivery to the
// remaining listeners continues and nothing propagates to the caller.
func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	subs := make([]subscription, len(e.listeners[ev.Type]))
	copy(subs, e.listeners[ev.Type])
	e.mu.RUnlock()

	for _, s := range subs {
		e.invoke(s, ev)
	}
}

func (e *emitter) invoke(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				zap.String("event", string(ev.Type)),
				zap.String("key", ev.Key),
				zap.Any("panic", r))
		}
	}()
	s.fn(ev)
}

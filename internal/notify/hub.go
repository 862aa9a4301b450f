// Package notify fans progress changes out to the views that display them.
//
// Events only carry identifiers: listeners re-fetch their own slice of progress on receipt
// and never trust an embedded value.
package notify

import "sync"

// Kind of progress change
type Kind string

// progress change kinds
const (
	LessonProgressChanged Kind = "lesson_progress_changed"
	ModuleProgressChanged Kind = "module_progress_changed"
	CourseProgressChanged Kind = "course_progress_changed"
)

// Event progress of the identified lesson, module or course changed for UserID
type Event struct {
	Kind   Kind   `json:"kind"`
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// Filter selects the events a subscription receives
type Filter func(Event) bool

// Publisher broadcasts progress events
type Publisher interface {
	Publish(e Event)
}

// ForUser accepts events of userID, restricted to kinds when any are given
func ForUser(userID string, kinds ...Kind) Filter {
	return func(e Event) bool {
		if e.UserID != userID {
			return false
		}
		if len(kinds) == 0 {
			return true
		}
		for _, k := range kinds {
			if e.Kind == k {
				return true
			}
		}
		return false
	}
}

// Hub in-process subscription registry
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

var _ Publisher = &Hub{}

// NewHub create a hub, each subscription buffers up to buffer pending events
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives matching events on C until Close is called
type Subscription struct {
	C <-chan Event

	ch     chan Event
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Subscribe register a new subscription, a nil filter receives everything
func (h *Hub) Subscribe(filter Filter) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, hub: h}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish deliver e to every matching subscription without blocking,
// a subscription whose buffer is full misses the event
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// Len number of live subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregister the subscription and close C, safe to call more than once
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

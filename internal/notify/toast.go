// Package notify holds the transient in-app notification store.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Variant selects how a toast is rendered
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Toast is a transient notification
type Toast struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	// maxToasts bounds the visible set; the oldest entry is evicted first.
	maxToasts = 5

	// DefaultDismissAfter is how long a toast stays up unless dismissed.
	DefaultDismissAfter = 5 * time.Second
)

// Store holds the current toast set and notifies subscribers on every
// mutation. It is an explicit, constructible object so tests can run
// isolated instances; there is no package-level shared state.
type Store struct {
	mu          sync.Mutex
	toasts      []Toast
	subscribers map[int]func([]Toast)
	nextSub     int
	timers      map[string]*time.Timer
	dismissTTL  time.Duration
	closed      bool
}

// NewStore creates a toast store with the given auto-dismiss delay.
// A non-positive delay falls back to DefaultDismissAfter.
func NewStore(dismissAfter time.Duration) *Store {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return &Store{
		subscribers: make(map[int]func([]Toast)),
		timers:      make(map[string]*time.Timer),
		dismissTTL:  dismissAfter,
	}
}

// Notify adds a toast and schedules its auto-dismissal. Returns the toast id.
func (s *Store) Notify(title, description string, variant Variant) string {
	if variant == "" {
		variant = VariantDefault
	}
	t := Toast{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Variant:     variant,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return t.ID
	}
	s.toasts = append(s.toasts, t)
	if len(s.toasts) > maxToasts {
		evicted := s.toasts[:len(s.toasts)-maxToasts]
		for _, old := range evicted {
			s.stopTimerLocked(old.ID)
		}
		s.toasts = append([]Toast(nil), s.toasts[len(s.toasts)-maxToasts:]...)
	}
	s.timers[t.ID] = time.AfterFunc(s.dismissTTL, func() { s.Dismiss(t.ID) })
	s.notifyLocked()
	s.mu.Unlock()

	return t.ID
}

// Dismiss removes a toast immediately. Unknown ids are ignored.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.stopTimerLocked(id)
	s.toasts = append(s.toasts[:idx:idx], s.toasts[idx+1:]...)
	s.notifyLocked()
}

// Toasts returns a copy of the current toast set, oldest first.
func (s *Store) Toasts() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}

// Subscribe registers a callback invoked synchronously on every mutation
// with the full toast set. It returns an unsubscribe function.
func (s *Store) Subscribe(fn func([]Toast)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Close stops all pending auto-dismiss timers. The store ignores Notify
// calls afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Store) stopTimerLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Store) notifyLocked() {
	snapshot := make([]Toast, len(s.toasts))
	copy(snapshot, s.toasts)
	for _, fn := range s.subscribers {
		fn(snapshot)
	}
}

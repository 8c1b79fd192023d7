// Package notify holds the time-bounded toast stream: an ordered list of
// ephemeral user-facing messages, each removing itself after a fixed display
// interval.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sendwren/wren/internal/model"
)

// Stream is a FIFO of notifications. Each pushed notification is scheduled
// for removal after the TTL; removal is idempotent so a manual dismissal and
// the expiry timer cannot double-remove. Duplicates are allowed: two equal
// messages usually correspond to two distinct events.
type Stream struct {
	mu     sync.Mutex
	ttl    time.Duration
	items  []model.Notification
	timers map[string]*time.Timer
	closed bool
	now    func() time.Time
}

// NewStream creates a notification stream with the given display interval.
// A non-positive ttl falls back to the model default.
func NewStream(ttl time.Duration) *Stream {
	if ttl <= 0 {
		ttl = model.NotificationTTL
	}
	return &Stream{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// Push appends a notification and schedules its expiry. Returns the id.
func (s *Stream) Push(severity model.Severity, message string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ""
	}

	n := model.Notification{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   message,
		CreatedAt: s.now(),
	}
	s.items = append(s.items, n)
	s.timers[n.ID] = time.AfterFunc(s.ttl, func() { s.Dismiss(n.ID) })
	return n.ID
}

// Info pushes an informational notification.
func (s *Stream) Info(message string) string { return s.Push(model.SeverityInfo, message) }

// Success pushes a success notification.
func (s *Stream) Success(message string) string { return s.Push(model.SeveritySuccess, message) }

// Error pushes an error notification.
func (s *Stream) Error(message string) string { return s.Push(model.SeverityError, message) }

// Dismiss removes the notification with the given id. Dismissing an id that
// is already gone is a no-op.
func (s *Stream) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok {
		return
	}
	t.Stop()
	delete(s.timers, id)

	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
}

// Snapshot returns the live notifications in creation order.
func (s *Stream) Snapshot() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of live notifications.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close cancels all expiry timers and drops pending notifications. Pushes
// after Close are ignored.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.items = nil
}

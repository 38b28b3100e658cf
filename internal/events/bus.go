package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one observable occurrence: a navigation transition, a lookup miss,
// a sign-in, or an import result.
type Event struct {
	Kind    string    `json:"kind"`
	Subject string    `json:"subject,omitempty"`
	Session string    `json:"session,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Bus provides simple in-process pub/sub for observability. Publish never
// blocks; a slow subscriber loses events rather than stalling a request.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	dropped atomic.Uint64
	closed  bool
}

func NewBus() *Bus { return &Bus{} }

// Subscribe returns a buffered channel that receives every later event. The
// channel is closed by Close.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish fans ev out to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Event kinds published outside the navigation holder. Navigation transitions
// use the holder's own kind names.
const (
	KindImportDone     = "import_done"
	KindImportSkipped  = "import_skipped"
	KindImportFailed   = "import_failed"
	KindSignIn         = "sign_in"
	KindSignInFailed   = "sign_in_failed"
	KindSignOut        = "sign_out"
	KindSessionExpired = "session_expired"
)

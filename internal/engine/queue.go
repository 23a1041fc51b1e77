package engine

import (
	"sync"

	"github.com/mera-platform/mera/internal/model"
)

// UIEvent is an interaction from the UI collaborator, addressed to one
// component on the current page.
type UIEvent struct {
	ComponentID model.ImmutableID
	Action      string
	Args        model.Object

	// Reply, if set, receives the result of Interact. The send never blocks,
	// so callers should use a buffered channel.
	Reply chan<- error
}

func (ev UIEvent) reply(err error) {
	if ev.Reply == nil {
		return
	}
	select {
	case ev.Reply <- err:
	default:
	}
}

// inbox is a thread-safe FIFO of UI events.
//
// Dispatch may be called from any goroutine; the engine drains the whole
// inbox at the start of each tick.
type inbox struct {
	mu     sync.Mutex
	events []UIEvent
	closed bool
}

func newInbox() *inbox {
	return &inbox{
		events: make([]UIEvent, 0, 16),
	}
}

// Enqueue adds an event to the back of the inbox. Returns false if closed.
func (q *inbox) Enqueue(ev UIEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, ev)
	return true
}

// DrainAll removes and returns every queued event in FIFO order.
func (q *inbox) DrainAll() []UIEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = make([]UIEvent, 0, 16)
	return out
}

// Len returns the number of queued events.
func (q *inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further events. Queued events are replied to with
// ErrClosed and dropped.
func (q *inbox) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.events
	q.events = nil
	q.mu.Unlock()

	for _, ev := range pending {
		ev.reply(ErrClosed)
	}
}

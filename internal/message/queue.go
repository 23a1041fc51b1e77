package message

import (
	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/model"
)

// Queue is a FIFO of messages owned by one queue manager.
//
// Not safe for concurrent use: components enqueue and the engine drains, both
// on the engine goroutine.
type Queue struct {
	seq  *clock.Sequence
	msgs []model.Message
}

func newQueue(seq *clock.Sequence) Queue {
	if seq == nil {
		seq = clock.NewSequence()
	}
	return Queue{seq: seq}
}

func (q *Queue) push(m model.Message) {
	m.Seq = q.seq.Next()
	q.msgs = append(q.msgs, m)
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	return len(q.msgs)
}

// Drain removes and returns every pending message in FIFO order.
func (q *Queue) Drain() []model.Message {
	if len(q.msgs) == 0 {
		return nil
	}
	out := q.msgs
	q.msgs = nil
	return out
}

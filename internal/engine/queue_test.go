package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/model"
)

func TestInbox_FIFO(t *testing.T) {
	q := newInbox()
	for _, id := range []model.ImmutableID{3, 1, 2} {
		require.True(t, q.Enqueue(UIEvent{ComponentID: id}))
	}

	got := q.DrainAll()
	require.Len(t, got, 3)
	assert.Equal(t, model.ImmutableID(3), got[0].ComponentID)
	assert.Equal(t, model.ImmutableID(1), got[1].ComponentID)
	assert.Equal(t, model.ImmutableID(2), got[2].ComponentID)

	assert.Nil(t, q.DrainAll(), "drained inbox is empty")
}

func TestInbox_CloseRepliesToPending(t *testing.T) {
	q := newInbox()
	reply := make(chan error, 1)
	require.True(t, q.Enqueue(UIEvent{ComponentID: 1, Reply: reply}))

	q.Close()
	q.Close()

	assert.ErrorIs(t, <-reply, ErrClosed)
	assert.False(t, q.Enqueue(UIEvent{ComponentID: 2}))
	assert.Zero(t, q.Len())
}

func TestInbox_ConcurrentEnqueue(t *testing.T) {
	q := newInbox()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Enqueue(UIEvent{ComponentID: model.ImmutableID(i)})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, q.DrainAll(), producers*each)
}

func TestUIEvent_ReplyNeverBlocks(t *testing.T) {
	unbuffered := make(chan error)
	UIEvent{Reply: unbuffered}.reply(nil)

	UIEvent{}.reply(ErrClosed)
}

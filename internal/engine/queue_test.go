package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querysync/internal/value"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, k := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(Event{Key: value.QueryKey(k)}))
	}

	for _, k := range []string{"A", "B", "C"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, value.QueryKey(k), e.Key)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(Event{Key: "1"})
	q.Enqueue(Event{Key: "2"})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_CloseDropsAndRejects(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(Event{Key: "pending"})

	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Enqueue(Event{Key: "late"}), "enqueue after close should return false")
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(Event{Gen: uint64(i)})
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*eventsPerProducer, received)
}

package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePreservesOrder(t *testing.T) {
	q := NewCompletionQueue()

	for _, id := range []string{"u1", "u2", "u3"} {
		require.NoError(t, q.Publish(CompletionEvent{DiscordID: id}))
	}
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []string{"u1", "u2", "u3"} {
		event, err := q.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, event.DiscordID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueReceiveBlocksUntilPublish(t *testing.T) {
	q := NewCompletionQueue()

	done := make(chan CompletionEvent, 1)
	go func() {
		event, err := q.Receive(context.Background())
		if err == nil {
			done <- event
		}
	}()

	// Give the receiver a moment to block.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Publish(CompletionEvent{DiscordID: "u1"}))

	select {
	case event := <-done:
		assert.Equal(t, "u1", event.DiscordID)
	case <-time.After(time.Second):
		t.Fatal("receiver did not wake up")
	}
}

func TestQueueReceiveHonorsContext(t *testing.T) {
	q := NewCompletionQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseDrainsRemaining(t *testing.T) {
	q := NewCompletionQueue()
	require.NoError(t, q.Publish(CompletionEvent{DiscordID: "u1"}))
	q.Close()

	event, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", event.DiscordID)

	_, err = q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewCompletionQueue()

	const producers = 8
	const perProducer = 50
	for i := 0; i < producers; i++ {
		go func() {
			for j := 0; j < perProducer; j++ {
				q.Publish(CompletionEvent{DiscordID: "u"})
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < producers*perProducer; i++ {
		_, err := q.Receive(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, q.Len())
}

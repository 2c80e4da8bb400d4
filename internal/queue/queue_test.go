package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfidattend/internal/queue"
)

func TestInMemory_PublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(4)
	msg, err := queue.NewMessage(queue.TypeScan, map[string]string{"rfid": "A1"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, queue.TypeScan, got.Type)
		var body map[string]string
		require.NoError(t, json.Unmarshal(got.Body, &body))
		assert.Equal(t, "A1", body["rfid"])
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemory_PublishHonoursContext(t *testing.T) {
	q := queue.NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), queue.Message{Type: "x"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, queue.Message{Type: "y"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemory_ConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := queue.NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer channel not closed")
	}
}

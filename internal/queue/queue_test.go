package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueRunCompletes(t *testing.T) {
	done := make(chan string, 2)
	m := New(func(ctx context.Context, item *Item) error {
		done <- item.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	defer cancel()

	id := m.Enqueue("a.nzb", "/tmp/out")

	select {
	case got := <-done:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job to run")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if it, ok := m.Get(id); ok && it.Status == StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached completed status")
}

func TestRunFuncErrorMarksFailed(t *testing.T) {
	m := New(func(ctx context.Context, item *Item) error {
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	defer cancel()

	id := m.Enqueue("bad.nzb", "/tmp/out")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if it, ok := m.Get(id); ok && it.Status == StatusFailed {
			assert.Equal(t, "boom", it.Error)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached failed status")
}

func TestGetUnknownID(t *testing.T) {
	m := New(func(ctx context.Context, item *Item) error { return nil })
	_, ok := m.Get("nope")
	require.False(t, ok)
}

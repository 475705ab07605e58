package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskmaster/tracker/internal/adapters/changefeed"
	"github.com/taskmaster/tracker/internal/adapters/docstore"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// fakeClock hands out a controllable "now"
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDocStore(t *testing.T) ports.DocumentStore {
	t.Helper()
	feed := changefeed.NewLocal()
	t.Cleanup(func() { feed.Close() })
	return docstore.NewMemoryStore(feed, logger.NewNop())
}

func setupTaskStore(t *testing.T, loc *time.Location) (*TaskStore, ports.DocumentStore, *fakeClock) {
	t.Helper()
	store := newTestDocStore(t)
	clock := newFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	tasks := NewTaskStore(store, loc, logger.NewNop())
	tasks.now = clock.Now
	return tasks, store, clock
}

func setupWorkLogStore(t *testing.T) (*WorkLogStore, ports.DocumentStore) {
	t.Helper()
	store := newTestDocStore(t)
	return NewWorkLogStore(store, logger.NewNop()), store
}

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

// recorder collects values delivered to a subscription callback
type recorder[T any] struct {
	ch chan T
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{ch: make(chan T, 32)}
}

func (r *recorder[T]) record(v T) {
	r.ch <- v
}

func (r *recorder[T]) next(t *testing.T) T {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		require.FailNow(t, "timed out waiting for delivery")
		return zero
	}
}

func (r *recorder[T]) none(t *testing.T) {
	t.Helper()
	select {
	case v := <-r.ch:
		require.FailNowf(t, "unexpected delivery", "%v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

var bg = context.Background()

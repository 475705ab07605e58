package docstore

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/adapters/changefeed"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

type storeFactory func(t *testing.T) ports.DocumentStore

func newMemory(t *testing.T) ports.DocumentStore {
	feed := changefeed.NewLocal()
	t.Cleanup(func() { feed.Close() })
	return NewMemoryStore(feed, logger.NewNop())
}

func newSQLite(t *testing.T) ports.DocumentStore {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "docs.db")}
	require.NoError(t, database.Migrate(cfg))

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	feed := changefeed.NewLocal()
	t.Cleanup(func() { feed.Close() })

	store, err := NewSQLStore(db, feed, logger.NewNop())
	require.NoError(t, err)
	return store
}

func forEachStore(t *testing.T, test func(t *testing.T, store ports.DocumentStore)) {
	factories := map[string]storeFactory{
		"memory": newMemory,
		"sqlite": newSQLite,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			test(t, factory(t))
		})
	}
}

func ts(day, hour int) string {
	return ports.EncodeTimestamp(time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC))
}

func TestStore_AddAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		ctx := context.Background()

		id, err := store.Add(ctx, "tasks", map[string]any{
			"title":     "Write report",
			"completed": false,
			"ownerId":   "u1",
			"dueDate":   nil,
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := store.Get(ctx, "tasks", id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID)
		assert.Equal(t, "Write report", doc.String("title"))
		assert.False(t, doc.Bool("completed"))
		assert.NotContains(t, doc.Fields, "dueDate")
	})
}

func TestStore_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		_, err := store.Get(context.Background(), "tasks", "nope")
		assert.True(t, entities.IsNotFound(err))
	})
}

func TestStore_UpdateMergesAndRemoves(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		ctx := context.Background()
		id, err := store.Add(ctx, "tasks", map[string]any{"title": "a", "dueDate": ts(1, 9), "completed": false})
		require.NoError(t, err)

		require.NoError(t, store.Update(ctx, "tasks", id, map[string]any{"completed": true, "dueDate": nil}))

		doc, err := store.Get(ctx, "tasks", id)
		require.NoError(t, err)
		assert.True(t, doc.Bool("completed"))
		assert.Equal(t, "a", doc.String("title"))
		assert.NotContains(t, doc.Fields, "dueDate")

		err = store.Update(ctx, "tasks", "missing", map[string]any{"completed": true})
		assert.True(t, entities.IsNotFound(err))
	})
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		ctx := context.Background()
		id, err := store.Add(ctx, "work_logs", map[string]any{"ownerId": "u1"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "work_logs", id))
		require.NoError(t, store.Delete(ctx, "work_logs", id))

		_, err = store.Get(ctx, "work_logs", id)
		assert.True(t, entities.IsNotFound(err))
	})
}

func TestStore_FindFiltersAndOrders(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		ctx := context.Background()
		add := func(owner, title, taskDate, createdAt string) {
			_, err := store.Add(ctx, "tasks", map[string]any{
				"ownerId": owner, "title": title, "taskDate": taskDate, "createdAt": createdAt,
			})
			require.NoError(t, err)
		}
		add("u1", "early", ts(15, 8), ts(1, 1))
		add("u1", "late-old", ts(15, 20), ts(1, 1))
		add("u1", "late-new", ts(15, 20), ts(2, 1))
		add("u1", "other day", ts(16, 0), ts(1, 1))
		add("u2", "not mine", ts(15, 12), ts(1, 1))

		q := ports.Query{Collection: "tasks"}.
			Where("ownerId", ports.OpEqual, "u1").
			Where("taskDate", ports.OpGreaterOrEqual, ts(15, 0)).
			Where("taskDate", ports.OpLessOrEqual, ports.EncodeTimestamp(time.Date(2024, 3, 15, 23, 59, 59, 999_000_000, time.UTC))).
			Order("taskDate", ports.Desc).
			Order("createdAt", ports.Desc)

		docs, err := store.Find(ctx, q)
		require.NoError(t, err)

		titles := make([]string, 0, len(docs))
		for _, d := range docs {
			titles = append(titles, d.String("title"))
		}
		assert.Equal(t, []string{"late-new", "late-old", "early"}, titles)
	})
}

func TestStore_FindEmptyIsNotNil(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		docs, err := store.Find(context.Background(), ports.Query{Collection: "tasks"})
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})
}

func TestStore_RejectsUnsafeNames(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		ctx := context.Background()

		_, err := store.Find(ctx, ports.Query{Collection: "tasks"}.Where("owner'; DROP TABLE documents; --", ports.OpEqual, "x"))
		assert.True(t, entities.IsValidation(err))

		_, err = store.Add(ctx, "tasks", map[string]any{"bad-name": "x"})
		assert.True(t, entities.IsValidation(err))

		_, err = store.Add(ctx, "tasks", map[string]any{"count": 3})
		assert.True(t, entities.IsValidation(err))
	})
}

func TestStore_WatchDeliversSnapshotsUntilCancelled(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		ctx := context.Background()
		snapshots := make(chan []ports.Document, 16)

		q := ports.Query{Collection: "tasks"}.Where("ownerId", ports.OpEqual, "u1").Order("title", ports.Asc)
		cancel, err := store.Watch(ctx, q, func(docs []ports.Document) { snapshots <- docs })
		require.NoError(t, err)

		first := next(t, snapshots)
		assert.Empty(t, first)

		_, err = store.Add(ctx, "tasks", map[string]any{"ownerId": "u1", "title": "b"})
		require.NoError(t, err)
		assert.Len(t, next(t, snapshots), 1)

		_, err = store.Add(ctx, "tasks", map[string]any{"ownerId": "u1", "title": "a"})
		require.NoError(t, err)
		docs := next(t, snapshots)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0].String("title"))

		cancel()
		cancel()

		_, err = store.Add(ctx, "tasks", map[string]any{"ownerId": "u1", "title": "c"})
		require.NoError(t, err)
		select {
		case got := <-snapshots:
			t.Fatalf("unexpected delivery after cancel: %v", got)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestStore_WatchSkipsUnrelatedWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ports.DocumentStore) {
		ctx := context.Background()
		snapshots := make(chan []ports.Document, 16)

		q := ports.Query{Collection: "tasks"}.Where("ownerId", ports.OpEqual, "u1")
		cancel, err := store.Watch(ctx, q, func(docs []ports.Document) { snapshots <- docs })
		require.NoError(t, err)
		defer cancel()
		next(t, snapshots)

		_, err = store.Add(ctx, "tasks", map[string]any{"ownerId": "u2", "title": "someone else"})
		require.NoError(t, err)

		select {
		case got := <-snapshots:
			t.Fatalf("unexpected delivery for another owner's write: %v", got)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestStore_WatchStopsWithContext(t *testing.T) {
	store := newMemory(t)
	ctx, cancelCtx := context.WithCancel(context.Background())
	snapshots := make(chan []ports.Document, 16)

	cancel, err := store.Watch(ctx, ports.Query{Collection: "tasks"}, func(docs []ports.Document) { snapshots <- docs })
	require.NoError(t, err)
	defer cancel()
	next(t, snapshots)

	cancelCtx()
	time.Sleep(20 * time.Millisecond)

	_, err = store.Add(context.Background(), "tasks", map[string]any{"title": "x"})
	require.NoError(t, err)
	select {
	case <-snapshots:
		t.Fatal("unexpected delivery after context cancellation")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStore_WatchCancelWaitsForDelivery(t *testing.T) {
	store := newMemory(t)
	entered := make(chan struct{}, 4)
	gate := make(chan struct{})
	var calls atomic.Int32

	cancel, err := store.Watch(context.Background(), ports.Query{Collection: "tasks"}, func([]ports.Document) {
		calls.Add(1)
		entered <- struct{}{}
		<-gate
	})
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the initial snapshot")
	}

	// queue a refresh behind the blocked delivery
	_, err = store.Add(context.Background(), "tasks", map[string]any{"title": "x"})
	require.NoError(t, err)

	cancelled := make(chan struct{})
	go func() {
		cancel()
		close(cancelled)
	}()
	select {
	case <-cancelled:
		t.Fatal("cancel returned while a snapshot was being delivered")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not return after the delivery finished")
	}

	_, err = store.Add(context.Background(), "tasks", map[string]any{"title": "y"})
	require.NoError(t, err)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestInstrumented_CountsOperationsAndWatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := NewInstrumented(newMemory(t), reg, logger.NewNop())
	ctx := context.Background()

	_, err := store.Add(ctx, "tasks", map[string]any{"title": "x"})
	require.NoError(t, err)
	_, err = store.Get(ctx, "tasks", "missing")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(store.ops.WithLabelValues("add", "tasks", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(store.ops.WithLabelValues("get", "tasks", "not_found")))

	cancel, err := store.Watch(ctx, ports.Query{Collection: "tasks"}, func([]ports.Document) {})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(store.watches.WithLabelValues("tasks")))

	cancel()
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(store.watches.WithLabelValues("tasks")) == 0
	}, time.Second, 10*time.Millisecond)
}

func next(t *testing.T, ch <-chan []ports.Document) []ports.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

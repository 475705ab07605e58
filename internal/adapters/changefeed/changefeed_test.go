package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

func receives(t *testing.T, ch <-chan struct{}) bool {
	t.Helper()
	select {
	case _, ok := <-ch:
		return ok
	case <-time.After(2 * time.Second):
		return false
	}
}

func silent(t *testing.T, ch <-chan struct{}) bool {
	t.Helper()
	select {
	case <-ch:
		return false
	case <-time.After(50 * time.Millisecond):
		return true
	}
}

func TestLocal_PublishReachesCollectionSubscribersOnly(t *testing.T) {
	feed := NewLocal()
	defer feed.Close()
	ctx := context.Background()

	tasks, releaseTasks, err := feed.Subscribe(ctx, "tasks")
	require.NoError(t, err)
	defer releaseTasks()
	logs, releaseLogs, err := feed.Subscribe(ctx, "work_logs")
	require.NoError(t, err)
	defer releaseLogs()

	require.NoError(t, feed.Publish(ctx, "tasks"))

	assert.True(t, receives(t, tasks))
	assert.True(t, silent(t, logs))
}

func TestLocal_BurstsCoalesce(t *testing.T) {
	feed := NewLocal()
	defer feed.Close()
	ctx := context.Background()

	ch, release, err := feed.Subscribe(ctx, "tasks")
	require.NoError(t, err)
	defer release()

	for i := 0; i < 10; i++ {
		require.NoError(t, feed.Publish(ctx, "tasks"))
	}

	assert.True(t, receives(t, ch))
	assert.True(t, silent(t, ch))
}

func TestLocal_ReleaseIsIdempotentAndClosesChannel(t *testing.T) {
	feed := NewLocal()
	ch, release, err := feed.Subscribe(context.Background(), "tasks")
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Subscribers("tasks"))

	release()
	release()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, feed.Subscribers("tasks"))
	assert.NoError(t, feed.Publish(context.Background(), "tasks"))
}

func TestLocal_SubscribeAfterClose(t *testing.T) {
	feed := NewLocal()
	ch, release, err := feed.Subscribe(context.Background(), "tasks")
	require.NoError(t, err)

	require.NoError(t, feed.Close())
	_, ok := <-ch
	assert.False(t, ok)
	release()

	_, _, err = feed.Subscribe(context.Background(), "tasks")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPGNotify_DispatchesNotificationsByPayload(t *testing.T) {
	notifications := make(chan *pq.Notification)
	feed := newPGNotify(nil, notifications, "docstore_changes", logger.NewNop())
	defer feed.Close()
	ctx := context.Background()

	tasks, release, err := feed.Subscribe(ctx, "tasks")
	require.NoError(t, err)
	defer release()
	logs, releaseLogs, err := feed.Subscribe(ctx, "work_logs")
	require.NoError(t, err)
	defer releaseLogs()

	notifications <- &pq.Notification{Channel: "docstore_changes", Extra: "tasks"}
	assert.True(t, receives(t, tasks))
	assert.True(t, silent(t, logs))

	// a reconnect refreshes everyone
	notifications <- nil
	assert.True(t, receives(t, tasks))
	assert.True(t, receives(t, logs))
}

func TestRedis_PublishRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	ctx := context.Background()

	feed, err := NewRedis(ctx, client, "tracker:changes:", logger.NewNop())
	require.NoError(t, err)
	defer feed.Close()

	ch, release, err := feed.Subscribe(ctx, "work_logs")
	require.NoError(t, err)
	defer release()

	require.NoError(t, feed.Publish(ctx, "work_logs"))
	assert.True(t, receives(t, ch))

	require.NoError(t, feed.Publish(ctx, "tasks"))
	assert.True(t, silent(t, ch))
}

package docstore

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

type findFunc func(ctx context.Context, q ports.Query) ([]ports.Document, error)

// watch re-runs the query after every change signal for its collection and hands
// the full result set to fn. Identical consecutive results are delivered once.
// The returned cancel waits for a snapshot being delivered, so fn never runs
// after it returns.
func watch(ctx context.Context, feed ports.ChangeFeed, q ports.Query, find findFunc, fn ports.SnapshotFunc, log *logger.Logger) (ports.CancelFunc, error) {
	if fn == nil {
		return nil, entities.NewValidationError("Watch", errors.New("snapshot callback is required"))
	}

	// subscribe before the first read so no write slips in between
	changes, release, err := feed.Subscribe(ctx, q.Collection)
	if err != nil {
		return nil, entities.NewTransportError("Watch", err)
	}

	initial, err := find(ctx, q)
	if err != nil {
		release()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	var (
		mu      sync.Mutex
		stopped bool
	)

	go func() {
		defer release()

		var (
			last      []ports.Document
			delivered bool
		)
		deliver := func(docs []ports.Document) {
			mu.Lock()
			defer mu.Unlock()
			if stopped || watchCtx.Err() != nil {
				return
			}
			if delivered && reflect.DeepEqual(last, docs) {
				return
			}
			last, delivered = docs, true
			fn(docs)
		}

		deliver(initial)
		for {
			select {
			case <-watchCtx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				docs, err := find(watchCtx, q)
				if err != nil {
					if watchCtx.Err() != nil {
						return
					}
					log.Warnw("Watch refresh failed", "collection", q.Collection, "error", err)
					continue
				}
				deliver(docs)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			mu.Lock()
			stopped = true
			mu.Unlock()
		})
	}, nil
}

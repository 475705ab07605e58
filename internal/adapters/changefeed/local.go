// Package changefeed implements ports.ChangeFeed in process, over PostgreSQL
// LISTEN/NOTIFY and over Redis pub/sub.
package changefeed

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when subscribing to a closed feed
var ErrClosed = errors.New("change feed closed")

// Local is an in-process change feed. It also serves as the fan-out hub of the
// networked feeds.
type Local struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan struct{}
	nextID int
	closed bool
}

// NewLocal creates an empty in-process feed
func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]chan struct{})}
}

// Publish signals every subscriber of the collection
func (l *Local) Publish(_ context.Context, collection string) error {
	l.notify(collection)
	return nil
}

// Subscribe registers for change signals on a collection. Each subscriber holds
// at most one pending signal, so bursts of writes coalesce.
func (l *Local) Subscribe(_ context.Context, collection string) (<-chan struct{}, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, nil, ErrClosed
	}

	id := l.nextID
	l.nextID++
	ch := make(chan struct{}, 1)
	if l.subs[collection] == nil {
		l.subs[collection] = make(map[int]chan struct{})
	}
	l.subs[collection][id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[collection][id]; ok {
				delete(l.subs[collection], id)
				close(c)
			}
		})
	}
	return ch, release, nil
}

// Close releases every subscriber
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	for collection, subs := range l.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(l.subs, collection)
	}
	return nil
}

// Subscribers returns the number of live subscriptions on a collection
func (l *Local) Subscribers(collection string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[collection])
}

func (l *Local) notify(collection string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs[collection] {
		signal(ch)
	}
}

// notifyAll signals every subscriber of every collection, used after a
// networked feed reconnects and may have missed messages.
func (l *Local) notifyAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, subs := range l.subs {
		for _, ch := range subs {
			signal(ch)
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

const listenerPingInterval = 90 * time.Second

// PGNotify distributes change signals through PostgreSQL NOTIFY, so every
// server instance sharing the database sees writes made by the others.
type PGNotify struct {
	db       *sqlx.DB
	listener *pq.Listener
	channel  string
	hub      *Local
	logger   *logger.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewPGNotify opens a dedicated LISTEN connection on dsn
func NewPGNotify(db *sqlx.DB, dsn, channel string, log *logger.Logger) (*PGNotify, error) {
	log = log.WithComponent("changefeed.postgres")
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warnw("Listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	p := newPGNotify(db, listener.Notify, channel, log)
	p.listener = listener
	return p, nil
}

func newPGNotify(db *sqlx.DB, notifications <-chan *pq.Notification, channel string, log *logger.Logger) *PGNotify {
	p := &PGNotify{
		db:      db,
		channel: channel,
		hub:     NewLocal(),
		logger:  log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.pump(notifications)
	return p
}

func (p *PGNotify) pump(notifications <-chan *pq.Notification) {
	defer close(p.done)

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				return
			}
			// nil after a reconnect; anything may have been missed
			if n == nil {
				p.logger.Info("Listener reconnected, refreshing all watches")
				p.hub.notifyAll()
				continue
			}
			p.hub.notify(n.Extra)
		case <-ticker.C:
			if p.listener != nil {
				go func() {
					if err := p.listener.Ping(); err != nil {
						p.logger.Warnw("Listener ping failed", "error", err)
					}
				}()
			}
		case <-p.stop:
			return
		}
	}
}

// Publish sends a NOTIFY with the collection as payload
func (p *PGNotify) Publish(ctx context.Context, collection string) error {
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", p.channel, collection); err != nil {
		return fmt.Errorf("failed to notify %s: %w", collection, err)
	}
	return nil
}

// Subscribe registers for change signals on a collection
func (p *PGNotify) Subscribe(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	return p.hub.Subscribe(ctx, collection)
}

// Close stops listening and releases all subscribers
func (p *PGNotify) Close() error {
	close(p.stop)
	<-p.done
	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}
	p.hub.Close()
	return err
}

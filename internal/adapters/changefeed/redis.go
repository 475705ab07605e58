package changefeed

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

// Redis distributes change signals over Redis pub/sub, one channel per collection
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	prefix string
	hub    *Local
	logger *logger.Logger
	done   chan struct{}
}

// NewRedis subscribes to every channel under prefix
func NewRedis(ctx context.Context, client *redis.Client, prefix string, log *logger.Logger) (*Redis, error) {
	pubsub := client.PSubscribe(ctx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s*: %w", prefix, err)
	}

	r := &Redis{
		client: client,
		pubsub: pubsub,
		prefix: prefix,
		hub:    NewLocal(),
		logger: log.WithComponent("changefeed.redis"),
		done:   make(chan struct{}),
	}
	go r.pump()
	return r, nil
}

func (r *Redis) pump() {
	defer close(r.done)
	for msg := range r.pubsub.Channel() {
		r.hub.notify(strings.TrimPrefix(msg.Channel, r.prefix))
	}
}

// Publish sends a change signal for the collection
func (r *Redis) Publish(ctx context.Context, collection string) error {
	if err := r.client.Publish(ctx, r.prefix+collection, "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish change for %s: %w", collection, err)
	}
	return nil
}

// Subscribe registers for change signals on a collection
func (r *Redis) Subscribe(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	return r.hub.Subscribe(ctx, collection)
}

// Close unsubscribes and releases all subscribers. The client stays open.
func (r *Redis) Close() error {
	err := r.pubsub.Close()
	<-r.done
	r.hub.Close()
	return err
}

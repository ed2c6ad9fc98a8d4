package postgres

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus is the change-notification fan-out between writers. Every committed
// write publishes its collection's channel; watchers re-run their query per
// message. Payloads carry the written document id for debugging only —
// subscribers always re-query rather than patch.
type Bus interface {
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (Messages, error)
}

// Messages is one live pub/sub stream. Close is safe to call more than once.
type Messages interface {
	C() <-chan string
	Close() error
}

// RedisBus wraps *redis.Client to satisfy Bus.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel, payload string) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string) (Messages, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	// Receive forces the SUBSCRIBE round trip so a broken connection fails
	// here instead of silently delivering nothing.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan string, 1)
	done := make(chan struct{})
	go forwardMessages(pubsub.Channel(), out, done)

	return &redisMessages{pubsub: pubsub, out: out, done: done}, nil
}

// forwardMessages pumps pub/sub payloads onto out until the source channel
// closes or done is signalled. The done path matters when the consumer has
// already stopped reading: a send blocked on out must still unwind on Close
// instead of holding the goroutine forever.
func forwardMessages(in <-chan *redis.Message, out chan<- string, done <-chan struct{}) {
	defer close(out)
	for msg := range in {
		select {
		case out <- msg.Payload:
		case <-done:
			return
		}
	}
}

type redisMessages struct {
	pubsub *redis.PubSub
	out    chan string
	done   chan struct{}
	once   sync.Once
}

func (m *redisMessages) C() <-chan string {
	return m.out
}

func (m *redisMessages) Close() error {
	m.once.Do(func() { close(m.done) })
	return m.pubsub.Close()
}

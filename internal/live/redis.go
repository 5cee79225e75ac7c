package live

import (
	"context"
	"fmt"

	"github.com/arthurstore/storefront/internal/metrics"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisSource delivers status events from a redis pub/sub channel.
type RedisSource struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
}

// NewRedisSource creates a source reading from the given redis address and
// pub/sub channel. An empty channel name falls back to the event name the
// processor publishes under.
func NewRedisSource(addr, channel string) *RedisSource {
	if channel == "" {
		channel = EventName
	}
	return &RedisSource{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// Subscribe opens the pub/sub subscription and starts the delivery loop.
func (s *RedisSource) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	s.pubsub = s.client.Subscribe(ctx, s.channel)

	// Confirm the subscription before handing out the channel.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan StatusEvent)
	go func() {
		defer close(out)
		for msg := range s.pubsub.Channel() {
			ev, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				metrics.LiveEventsTotal.WithLabelValues("malformed").Inc()
				log.WithField("payload", msg.Payload).Warn("Dropping malformed status event: ", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close tears down the subscription and the underlying connection.
func (s *RedisSource) Close() error {
	if s.pubsub != nil {
		if err := s.pubsub.Close(); err != nil {
			return err
		}
	}
	return s.client.Close()
}

package feed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

// maxInFlight bounds the number of messages handled at the same time.
const maxInFlight = 16

// Subscriber receives change messages from a redis pub/sub channel.
type Subscriber struct {
	redis   *redis.Client
	channel string
	logger  *types.Logger
}

func NewSubscriber(client *redis.Client, channel string, logger *types.Logger) *Subscriber {
	return &Subscriber{
		redis:   client,
		channel: channel,
		logger:  logger,
	}
}

// Listen delivers every message payload to handle until ctx is done.
// At most maxInFlight payloads are handled at once; the subscription waits when all are busy.
func (s *Subscriber) Listen(ctx context.Context, handle func(ctx context.Context, payload []byte)) error {
	pubsub := s.redis.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so a bad connection fails fast.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Infof("Listening for changes on redis channel %s", s.channel)

	return s.consume(ctx, pubsub.Channel(), handle, maxInFlight)
}

func (s *Subscriber) consume(ctx context.Context, ch <-chan *redis.Message, handle func(ctx context.Context, payload []byte), limit int) error {
	var g errgroup.Group
	g.SetLimit(limit)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis channel %s closed", s.channel)
			}
			payload := []byte(msg.Payload)
			g.Go(func() error {
				handle(ctx, payload)
				return nil
			})
		}
	}
}

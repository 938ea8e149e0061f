package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/redis/deliveries"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/redis/feed"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

type Client struct {
	Deliveries *deliveries.Storage
	Feed       *feed.Subscriber

	clients []*redis.Client
}

type Options struct {
	Host     string
	Port     int
	Password string
	// Channel is the pub/sub channel carrying change messages.
	Channel string
}

func New(opts Options, logger *types.Logger) (*Client, error) {
	deliveryStorage := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       0,
	})
	if err := deliveryStorage.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping delivery storage: %w", err)
	}

	// Pub/sub ignores the DB index; a separate client keeps the subscription connection apart.
	feedClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       1,
	})
	if err := feedClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping feed client: %w", err)
	}

	return &Client{
		Deliveries: deliveries.NewStorage(deliveryStorage),
		Feed:       feed.NewSubscriber(feedClient, opts.Channel, logger),
		clients:    []*redis.Client{deliveryStorage, feedClient},
	}, nil
}

func (c *Client) Close() error {
	var firstErr error
	for _, client := range c.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

type Options struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads change messages from a Kafka topic as part of a consumer group.
type Consumer struct {
	opts   Options
	logger *types.Logger
}

func NewConsumer(opts Options, logger *types.Logger) (*Consumer, error) {
	if len(opts.Brokers) == 0 || opts.Topic == "" || opts.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer needs brokers, topic and group id")
	}
	return &Consumer{
		opts:   opts,
		logger: logger,
	}, nil
}

func (c *Consumer) newReader() *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.opts.Brokers,
		Topic:    c.opts.Topic,
		GroupID:  c.opts.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		// Offsets are committed explicitly after each message is handled.
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
	})
}

// Listen hands every message to handle and commits its offset once handle returns,
// until ctx is done. Messages are handled in partition order.
func (c *Consumer) Listen(ctx context.Context, handle func(ctx context.Context, payload []byte)) error {
	reader := c.newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			c.logger.Warnf("Failed to close kafka reader: %v", err)
		}
	}()
	c.logger.Infof("Listening for changes on kafka topic %s (group=%s)", c.opts.Topic, c.opts.GroupID)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", c.opts.Topic, err)
		}

		c.logger.Debugf("Change message (partition=%d, offset=%d)", msg.Partition, msg.Offset)
		handle(ctx, msg.Value)

		commitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = reader.CommitMessages(commitCtx, msg)
		cancel()
		if err != nil {
			c.logger.Errorf("Failed to commit kafka offset (partition=%d, offset=%d): %v", msg.Partition, msg.Offset, err)
		}
	}
}

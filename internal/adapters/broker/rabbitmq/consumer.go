package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

type Options struct {
	URL   string
	Queue string
	// Prefetch bounds unacknowledged deliveries held by this consumer.
	Prefetch int
}

// Consumer reads change messages from a durable RabbitMQ queue.
type Consumer struct {
	opts   Options
	logger *types.Logger
}

func NewConsumer(opts Options, logger *types.Logger) (*Consumer, error) {
	if opts.URL == "" || opts.Queue == "" {
		return nil, fmt.Errorf("rabbitmq consumer needs url and queue")
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = 16
	}
	return &Consumer{
		opts:   opts,
		logger: logger,
	}, nil
}

// Listen acknowledges each delivery after handle returns. It returns when ctx is done
// or the connection drops; the caller reconnects by calling Listen again.
func (c *Consumer) Listen(ctx context.Context, handle func(ctx context.Context, payload []byte)) error {
	conn, err := amqp.Dial(c.opts.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	q, err := channel.QueueDeclare(
		c.opts.Queue, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err = channel.Qos(c.opts.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := channel.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume messages: %w", err)
	}
	c.logger.Infof("Listening for changes on rabbitmq queue %s", q.Name)

	closed := channel.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return fmt.Errorf("rabbitmq channel closed")
			}
			return fmt.Errorf("rabbitmq channel closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq deliveries closed")
			}
			handle(ctx, d.Body)
			if errAck := d.Ack(false); errAck != nil {
				c.logger.Errorf("Failed to ack delivery %d: %v", d.DeliveryTag, errAck)
			}
		}
	}
}

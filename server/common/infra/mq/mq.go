package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"langmod/server/common/log"
)

// Client wraps one AMQP connection and channel. The channel runs with
// prefetch=1 so each consumer processes at most one in-flight message,
// serializing everything a single service does per queue.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Client{conn: conn, channel: ch}, nil
}

// Declare creates the named queues as durable, idempotently.
func (c *Client) Declare(queues ...string) error {
	for _, q := range queues {
		if _, err := c.channel.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	return nil
}

// Publish sends body to the named queue with persistent delivery.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	return c.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Consume reads the queue until ctx is done. handle returning nil acks
// the message; a non-nil error nacks it back onto the queue, so the
// transport redelivers it (at-least-once, duplicate side effects
// possible downstream).
func (c *Client) Consume(ctx context.Context, queue, consumerTag string, handle func(context.Context, []byte) error) error {
	deliveries, err := c.channel.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for queue %s closed", queue)
			}
			if err := handle(ctx, d.Body); err != nil {
				log.Errorf("handle message on queue %s: %v", queue, err)
				if nackErr := d.Nack(false, true); nackErr != nil {
					log.Errorf("nack message on queue %s: %v", queue, nackErr)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				log.Errorf("ack message on queue %s: %v", queue, err)
			}
		}
	}
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

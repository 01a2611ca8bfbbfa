package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"task_api/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON messages to a single durable queue on the default exchange.
type Publisher struct {
	conn      *amqp.Connection
	queueName string
	metrics   *observability.Metrics
}

// NewPublisher declares queueName and returns a publisher bound to it.
func NewPublisher(conn *amqp.Connection, queueName string, metrics *observability.Metrics) (*Publisher, error) {
	ch, err := CreateChannel(conn)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, queueName); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, queueName: queueName, metrics: metrics}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	ch, err := CreateChannel(p.conn)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.PublishWithContext(
		ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queueName, err)
	}

	p.metrics.MessagePublished(p.queueName)
	return nil
}

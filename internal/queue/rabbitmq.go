package queue

import (
	"context"
	"fmt"
	"time"

	"task_api/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries        = 5
	heartbeatInterval = 10 * time.Second
	connectionName    = "task_api"
)

// Replaced in tests.
var (
	dial         = amqp.DialConfig
	retryBackoff = time.Second
)

// SetupRabbitMQ dials the broker, backing off linearly between attempts.
// It gives up early when ctx is cancelled.
func SetupRabbitMQ(ctx context.Context, rabbitMQCfg *config.RabbitMQConfig) (*amqp.Connection, error) {
	amqpCfg := amqp.Config{
		Heartbeat:  heartbeatInterval,
		Locale:     "en_US",
		Properties: amqp.NewConnectionProperties(),
	}
	amqpCfg.Properties.SetClientConnectionName(connectionName)

	var err error
	for i := 0; i < maxRetries; i++ {
		var conn *amqp.Connection
		conn, err = dial(rabbitMQCfg.URL, amqpCfg)
		if err == nil {
			logrus.WithField("queue", rabbitMQCfg.Queue).Info("RabbitMQ connection established successfully")
			return conn, nil
		}

		logrus.WithError(err).Warnf("Failed to connect to RabbitMQ (attempt %d/%d)", i+1, maxRetries)
		if i == maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to RabbitMQ: %w", ctx.Err())
		case <-time.After(time.Duration(i+1) * retryBackoff):
		}
	}

	return nil, fmt.Errorf("connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func CreateChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return ch, nil
}

func DeclareQueue(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}

	return q, nil
}

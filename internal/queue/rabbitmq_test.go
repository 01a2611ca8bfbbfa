package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"task_api/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDial(t *testing.T, fn func(url string, cfg amqp.Config) (*amqp.Connection, error)) {
	t.Helper()
	origDial, origBackoff := dial, retryBackoff
	dial, retryBackoff = fn, time.Millisecond
	t.Cleanup(func() { dial, retryBackoff = origDial, origBackoff })
}

func TestSetupRabbitMQ_RetriesUntilConnected(t *testing.T) {
	attempts := 0
	want := &amqp.Connection{}
	stubDial(t, func(url string, cfg amqp.Config) (*amqp.Connection, error) {
		attempts++
		assert.Equal(t, "amqp://guest:guest@mq:5672/", url)
		assert.Equal(t, connectionName, cfg.Properties["connection_name"])
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return want, nil
	})

	conn, err := SetupRabbitMQ(context.Background(), &config.RabbitMQConfig{URL: "amqp://guest:guest@mq:5672/"})

	require.NoError(t, err)
	assert.Same(t, want, conn)
	assert.Equal(t, 3, attempts)
}

func TestSetupRabbitMQ_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	stubDial(t, func(string, amqp.Config) (*amqp.Connection, error) {
		attempts++
		return nil, errors.New("connection refused")
	})

	conn, err := SetupRabbitMQ(context.Background(), &config.RabbitMQConfig{URL: "amqp://localhost:1/"})

	assert.Nil(t, conn)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, maxRetries, attempts)
}

func TestSetupRabbitMQ_StopsOnCancelledContext(t *testing.T) {
	attempts := 0
	stubDial(t, func(string, amqp.Config) (*amqp.Connection, error) {
		attempts++
		return nil, errors.New("connection refused")
	})
	retryBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := SetupRabbitMQ(ctx, &config.RabbitMQConfig{URL: "amqp://localhost:1/"})

	assert.Nil(t, conn)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"task_api/internal/observability"
	"task_api/internal/queue"
	"task_api/internal/task"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	// MaxRetries is how many times a failed event is republished before it is dropped.
	MaxRetries  = 3
	retryHeader = "x-retry-count"

	recordTimeout  = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// EventRecorder persists consumed task events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *task.TaskEvent) error
}

// Republisher is the part of *amqp.Channel used to send a message back to the queue.
type Republisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Worker consumes task events from one queue and records them.
type Worker struct {
	id        int
	queueName string
	recorder  EventRecorder
	metrics   *observability.Metrics
}

func NewWorker(id int, queueName string, recorder EventRecorder, metrics *observability.Metrics) *Worker {
	return &Worker{
		id:        id,
		queueName: queueName,
		recorder:  recorder,
		metrics:   metrics,
	}
}

// Run consumes until ctx is cancelled or the broker closes the delivery channel.
func (w *Worker) Run(ctx context.Context, conn *amqp.Connection) error {
	ch, err := queue.CreateChannel(conn)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("worker %d set QoS: %w", w.id, err)
	}

	msgs, err := ch.Consume(
		w.queueName,
		fmt.Sprintf("task-events-worker-%d", w.id),
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("worker %d consume: %w", w.id, err)
	}

	logrus.WithField("worker_id", w.id).Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("worker_id", w.id).Info("Worker stopped")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.Handle(ctx, ch, msg)
		}
	}
}

// Handle records one delivery and settles it. Failed records are republished
// with an incremented retry header until MaxRetries is reached. A delivery that
// cannot be republished goes back to the queue untouched.
//
// Cancelling ctx stops Run from taking new deliveries but does not abort the
// one in hand: its record and republish run on a detached context bounded by
// their own timeouts.
func (w *Worker) Handle(ctx context.Context, ch Republisher, msg amqp.Delivery) {
	w.metrics.MessageConsumed(w.queueName)
	ctx = context.WithoutCancel(ctx)

	var event task.TaskEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || !event.Type.Valid() || event.TaskID <= 0 {
		logrus.WithField("worker_id", w.id).Error("Invalid task event payload")
		w.metrics.EventFailed("invalid_payload")
		msg.Nack(false, false)
		return
	}

	retryCount := RetryCount(msg.Headers)
	log := logrus.WithFields(logrus.Fields{
		"worker_id": w.id,
		"event":     event.Type,
		"task_id":   event.TaskID,
		"user_id":   event.UserID,
		"retry":     retryCount,
	})

	recordCtx, cancel := context.WithTimeout(ctx, recordTimeout)
	err := w.recorder.RecordEvent(recordCtx, &event)
	cancel()
	if err == nil {
		log.Info("Task event recorded")
		msg.Ack(false)
		return
	}

	log.WithError(err).Error("Failed to record task event")

	if retryCount >= MaxRetries {
		w.metrics.EventFailed("max_retries")
		log.Warn("Dropping task event after max retries")
		msg.Nack(false, false)
		return
	}

	if err := republishWithRetry(ctx, ch, &msg, retryCount+1); err != nil {
		log.WithError(err).Error("Failed to republish task event")
		w.metrics.EventFailed("republish_error")
		msg.Nack(false, true)
		return
	}

	w.metrics.MessagePublished(w.queueName)
	log.Infof("Task event requeued (retry %d/%d)", retryCount+1, MaxRetries)
	msg.Ack(false)
}

// RetryCount reads the retry header. AMQP tables may carry it as any integer width.
func RetryCount(headers amqp.Table) int32 {
	switch v := headers[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	case int16:
		return int32(v)
	default:
		return 0
	}
}

func republishWithRetry(ctx context.Context, ch Republisher, msg *amqp.Delivery, retryCount int32) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = retryCount

	return ch.PublishWithContext(
		ctx,
		"",             // exchange
		msg.RoutingKey, // routing key (queue name)
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherblog/internal/logging"
	"gopherblog/internal/model"
)

type AuthEventStore interface {
	Create(ctx context.Context, event *model.AuthEvent) error
}

// AuthEventWorker drains the audit queue into the auth_events table.
type AuthEventWorker struct {
	conn      *amqp.Connection
	store     AuthEventStore
	queueName string
	logger    logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuthEventWorker(conn *amqp.Connection, store AuthEventStore, queueName string, logger logging.Logger) *AuthEventWorker {
	return &AuthEventWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		logger:    logger.With("worker", "auth_events"),
	}
}

func (w *AuthEventWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.consume(workerCtx, deliveries)
	}()

	w.logger.Info(ctx, "auth event worker started", "queue", w.queueName)
	return nil
}

func (w *AuthEventWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, d)
		}
	}
}

func (w *AuthEventWorker) handle(ctx context.Context, d amqp.Delivery) {
	var event model.AuthEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.logger.Error(ctx, "decode auth event failed", "error", err)
		_ = d.Nack(false, false)
		return
	}
	// The broker owns delivery identity; the table assigns its own ids.
	event.ID = 0

	if err := w.store.Create(ctx, &event); err != nil {
		// One retry through the broker, then drop.
		w.logger.Error(ctx, "persist auth event failed", "kind", event.Kind, "redelivered", d.Redelivered, "error", err)
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (w *AuthEventWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherblog/internal/model"
)

type publishChannel interface {
	queueDeclarer
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AuthEventPublisher pushes audit events onto a durable queue. A channel is
// opened per publish; amqp channels are not safe for concurrent use.
type AuthEventPublisher struct {
	openChannel func() (publishChannel, error)
	queueName   string
	now         func() time.Time
}

func NewAuthEventPublisher(conn *amqp.Connection, queueName string) *AuthEventPublisher {
	return newAuthEventPublisher(func() (publishChannel, error) {
		return conn.Channel()
	}, queueName)
}

func newAuthEventPublisher(open func() (publishChannel, error), queueName string) *AuthEventPublisher {
	return &AuthEventPublisher{
		openChannel: open,
		queueName:   queueName,
		now:         time.Now,
	}
}

func (p *AuthEventPublisher) Publish(ctx context.Context, event model.AuthEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = p.now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal auth event failed: %w", err)
	}

	ch, err := p.openChannel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, p.queueName); err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Kind,
			Timestamp:    event.CreatedAt,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish auth event failed: %w", err)
	}
	return nil
}

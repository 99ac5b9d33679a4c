package notification

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher delivers insurer notifications to the claim engine.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// DirectPublisher hands messages straight to the handler, for deployments without a broker.
type DirectPublisher struct {
	handler *Handler
}

func NewDirectPublisher(handler *Handler) *DirectPublisher {
	return &DirectPublisher{handler: handler}
}

func (p *DirectPublisher) Publish(ctx context.Context, msg Message) error {
	return p.handler.Apply(ctx, msg)
}

// AMQPPublisher publishes persistent messages and waits for the broker to confirm each one.
type AMQPPublisher struct {
	ch       *amqp.Channel
	queue    string
	log      *zap.Logger
	confirms chan amqp.Confirmation
	mu       sync.Mutex
}

func NewAMQPPublisher(conn *amqp.Connection, queue string, log *zap.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := declareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &AMQPPublisher{
		ch:       ch,
		queue:    queue,
		log:      log.Named("insurance.notification.publisher"),
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := Encode(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.ID,
		Type:         string(msg.Kind),
		Timestamp:    msg.SentAt,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, publishing); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}

	select {
	case confirmed := <-p.confirms:
		if !confirmed.Ack {
			return fmt.Errorf("publish to %s: message not confirmed", p.queue)
		}
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", p.queue, ctx.Err())
	}
	p.log.Debug("notification published", zap.String("kind", string(msg.Kind)), zap.String("claim_id", msg.ClaimID.String()))
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

func declareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
}

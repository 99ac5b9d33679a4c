package notification

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/claimflow/internal/config"
	"go.uber.org/zap"
)

const consumerTag = "claimflow-notifications"

// Consumer reads insurer notifications from the broker. A delivery is acked once applied,
// dropped when malformed, and requeued once on any other failure.
type Consumer struct {
	conn    *amqp.Connection
	cfg     config.BrokerConfig
	handler *Handler
	log     *zap.Logger

	ch *amqp.Channel
	wg sync.WaitGroup
}

func NewConsumer(conn *amqp.Connection, cfg config.BrokerConfig, handler *Handler, log *zap.Logger) *Consumer {
	return &Consumer{
		conn:    conn,
		cfg:     cfg,
		handler: handler,
		log:     log.Named("insurance.notification.consumer"),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	if _, err := declareQueue(ch, c.cfg.Queue); err != nil {
		_ = ch.Close()
		return err
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return err
	}
	deliveries, err := ch.Consume(c.cfg.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return err
	}
	c.ch = ch

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for d := range deliveries {
			c.deliver(ctx, d)
		}
		c.log.Info("notification deliveries closed")
	}()
	c.log.Info("consuming insurer notifications", zap.String("queue", c.cfg.Queue), zap.Int("prefetch", prefetch))
	return nil
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	err := c.handler.Handle(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Warn("ack failed", zap.Error(ackErr))
		}
	case errors.Is(err, ErrMalformed):
		c.log.Warn("discarding malformed notification", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		_ = d.Nack(false, !d.Redelivered)
	}
}

// Stop cancels the subscription and waits for in-flight deliveries.
func (c *Consumer) Stop() error {
	if c.ch == nil {
		return nil
	}
	err := c.ch.Cancel(consumerTag, false)
	c.wg.Wait()
	return errors.Join(err, c.ch.Close())
}

package notification

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/claimflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("insurance.notification",
	fx.Provide(NewHandler),
	fx.Provide(provideConnection),
	fx.Provide(providePublisher),
	fx.Invoke(startConsumer),
)

// provideConnection dials the broker, or returns nil when it is disabled.
func provideConnection(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*amqp.Connection, error) {
	if !cfg.Broker.Enabled {
		return nil, nil
	}
	conn, err := amqp.Dial(cfg.Broker.URL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return conn.Close()
		},
	})
	log.Info("connected to message broker", zap.String("queue", cfg.Broker.Queue))
	return conn, nil
}

func providePublisher(lc fx.Lifecycle, cfg config.Config, conn *amqp.Connection, handler *Handler, log *zap.Logger) (Publisher, error) {
	if conn == nil {
		return NewDirectPublisher(handler), nil
	}
	pub, err := NewAMQPPublisher(conn, cfg.Broker.Queue, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}

func startConsumer(lc fx.Lifecycle, cfg config.Config, conn *amqp.Connection, handler *Handler, log *zap.Logger) {
	if conn == nil {
		return
	}
	consumer := NewConsumer(conn, cfg.Broker, handler, log)
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			return consumer.Start(ctx)
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return consumer.Stop()
		},
	})
}

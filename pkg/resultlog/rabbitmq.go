package resultlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ruslano69/bulkload/pkg/bulk"
)

// amqpChannel - часть amqp.Channel, которая нужна publisher'у
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher кладет результаты в durable очередь через default exchange
type RabbitPublisher struct {
	conn    io.Closer
	channel amqpChannel
	config  Config
}

var _ bulk.Publisher = (*RabbitPublisher)(nil)

// DialRabbitPublisher подключается к брокеру и объявляет очередь
func DialRabbitPublisher(ctx context.Context, config Config) (*RabbitPublisher, error) {
	config = rabbitDefaults(config)

	conn, err := amqp.DialConfig(config.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(config.Queue, true, false, false, false, nil); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to declare queue %s: %w", config.Queue, err), ch.Close(), conn.Close())
	}

	p := NewRabbitPublisherWithChannel(ch, config)
	p.conn = conn
	return p, nil
}

// NewRabbitPublisherWithChannel использует готовый канал
func NewRabbitPublisherWithChannel(ch amqpChannel, config Config) *RabbitPublisher {
	return &RabbitPublisher{channel: ch, config: rabbitDefaults(config)}
}

func rabbitDefaults(config Config) Config {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.Queue == "" {
		config.Queue = "bulkload." + config.Name
	}
	return config
}

// Queue возвращает имя очереди результатов
func (p *RabbitPublisher) Queue() string {
	return p.config.Queue
}

// Publish отправляет результат persistent сообщением
func (p *RabbitPublisher) Publish(ctx context.Context, res bulk.Result) error {
	payload, err := marshalResult(p.config.Name, res)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx, "", p.config.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    res.FinishedAt,
		Type:         string(res.Operation),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish result to RabbitMQ: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение
func (p *RabbitPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

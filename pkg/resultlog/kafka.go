package resultlog

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ruslano69/bulkload/pkg/bulk"
)

// messageWriter - часть kafka.Writer, которая нужна publisher'у
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher отправляет результаты в Kafka topic.
// Ключ сообщения - имя потока, поэтому результаты одного потока
// попадают в одну партицию и читаются по порядку.
type KafkaPublisher struct {
	writer messageWriter
	config Config
}

var _ bulk.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher создает синхронный writer с подтверждением от всех реплик
func NewKafkaPublisher(config Config) *KafkaPublisher {
	config = kafkaDefaults(config)
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}
	return NewKafkaPublisherWithWriter(writer, config)
}

// NewKafkaPublisherWithWriter использует готовый writer
func NewKafkaPublisherWithWriter(writer messageWriter, config Config) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, config: kafkaDefaults(config)}
}

func kafkaDefaults(config Config) Config {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.Topic == "" {
		config.Topic = "bulkload.results"
	}
	return config
}

// Topic возвращает topic результатов
func (p *KafkaPublisher) Topic() string {
	return p.config.Topic
}

// Publish отправляет результат одним сообщением
func (p *KafkaPublisher) Publish(ctx context.Context, res bulk.Result) error {
	payload, err := marshalResult(p.config.Name, res)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(p.config.Name),
		Value: payload,
		Time:  res.FinishedAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "operation", Value: []byte(res.Operation)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write result to kafka: %w", err)
	}
	return nil
}

// Close закрывает writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

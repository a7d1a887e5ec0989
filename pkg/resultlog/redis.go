package resultlog

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/bulkload/pkg/bulk"
)

// RedisPublisher публикует результаты bulk операций в Redis
type RedisPublisher struct {
	client redis.UniversalClient
	config Config
}

var _ bulk.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher создает publisher по конфигурации.
//
// Redis-ключи:
//
//	SET  bulkload:<name>:state  <JSON>  EX <ttl>  - последнее состояние для опроса
//	PUB  bulkload:<name>                          - событие для подписчиков
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisPublisherWithClient(client, config)
}

// NewRedisPublisherWithClient использует готовый клиент
func NewRedisPublisherWithClient(client redis.UniversalClient, config Config) *RedisPublisher {
	if config.Name == "" {
		config.Name = "default"
	}
	return &RedisPublisher{client: client, config: config}
}

// StateKey возвращает ключ последнего состояния
func (p *RedisPublisher) StateKey() string {
	return fmt.Sprintf("bulkload:%s:state", p.config.Name)
}

// Channel возвращает канал событий
func (p *RedisPublisher) Channel() string {
	return fmt.Sprintf("bulkload:%s", p.config.Name)
}

// Publish записывает состояние (SET с TTL) и отправляет событие (PUBLISH).
// Вызывается и при успехе, и при ошибке операции.
func (p *RedisPublisher) Publish(ctx context.Context, res bulk.Result) error {
	payload, err := marshalResult(p.config.Name, res)
	if err != nil {
		return err
	}

	ttl := time.Duration(p.config.TTL) * time.Second

	if err := p.client.Set(ctx, p.StateKey(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	if err := p.client.Publish(ctx, p.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

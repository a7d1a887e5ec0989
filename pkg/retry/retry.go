package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// ErrAttemptsExhausted - все попытки исчерпаны
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// RetryableFunc - операция, которую можно повторить
type RetryableFunc func(ctx context.Context) error

// Retryer выполняет операцию по политике Config.
// DLQ ведет вызывающий код: Retryer только сообщает число попыток.
type Retryer struct {
	config Config
}

// NewRetryer создает Retryer
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	return &Retryer{config: config}, nil
}

// Config возвращает действующую политику
func (r *Retryer) Config() Config {
	return r.config
}

// Do выполняет fn до успеха, неповторяемой ошибки или исчерпания попыток.
// Возвращает количество сделанных попыток.
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) (int, error) {
	if !r.config.Enabled {
		return 1, fn(ctx)
	}

	attempts := 0
	for {
		attempts++

		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}

		if !r.IsRetryable(err) {
			return attempts, fmt.Errorf("non-retryable error: %w", err)
		}

		if r.config.MaxAttempts > 0 && attempts >= r.config.MaxAttempts {
			return attempts, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, err)
		}

		if ctx.Err() != nil {
			return attempts, fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		delay := r.calculateDelay(attempts)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// calculateDelay вычисляет задержку перед попыткой attempt+1
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.BackoffStrategy {
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		multiplier := math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	default:
		delay = r.config.InitialDelay
	}

	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

// IsRetryable решает, нужен ли повтор. Отмена контекста не повторяется никогда.
func (r *Retryer) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if r.config.Retryable != nil && !r.config.Retryable(err) {
		return false
	}

	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	msg := err.Error()
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

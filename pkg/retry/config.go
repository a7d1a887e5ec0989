package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy определяет стратегию задержки между попытками
type BackoffStrategy string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear - задержка растет линейно
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential - задержка растет экспоненциально
	BackoffExponential BackoffStrategy = "exponential"
)

// Режимы классификации ошибок
const (
	// ClassifyAll - повторяется любая ошибка, кроме отмены контекста
	ClassifyAll = "all"
	// ClassifyDriver - повтор решает классификатор драйвера СУБД (коды ошибок)
	ClassifyDriver = "driver"
)

// Config - политика повторов bulk команды
type Config struct {
	Enabled bool `yaml:"enabled"`

	// MaxAttempts - количество попыток, включая первую. 0 = без ограничения
	MaxAttempts int `yaml:"max_attempts"`

	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`

	BackoffStrategy   BackoffStrategy `yaml:"backoff"`
	BackoffMultiplier float64         `yaml:"multiplier"`

	// Jitter - доля случайного разброса задержки (0.0 - 1.0)
	Jitter float64 `yaml:"jitter"`

	// Classify - ClassifyAll (по умолчанию) или ClassifyDriver
	Classify string `yaml:"classify"`

	// RetryableErrors - подстроки текста ошибки, при которых нужен повтор.
	// Пустой список = повтор для всех ошибок
	RetryableErrors []string `yaml:"retryable_errors"`

	// Retryable - классификатор ошибок драйвера. Ошибка повторяется, только
	// если ее пропускают и Retryable, и RetryableErrors
	Retryable func(error) bool `yaml:"-"`

	// OnRetry вызывается перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`

	DLQ DLQConfig `yaml:"dlq"`
}

// DLQConfig - файл для записей о файлах, которые не удалось загрузить
type DLQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	FilePath string `yaml:"file"`

	// MaxSize - максимум записей, старые вытесняются
	MaxSize int `yaml:"max_size"`

	RetentionPeriod time.Duration `yaml:"retention"`
}

// Validate проверяет конфигурацию и выставляет множитель по умолчанию
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}

	if c.MaxDelay == 0 {
		c.MaxDelay = c.InitialDelay
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	switch c.BackoffStrategy {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	case "":
		c.BackoffStrategy = BackoffConstant
	default:
		return fmt.Errorf("invalid backoff strategy: %s", c.BackoffStrategy)
	}

	switch c.Classify {
	case ClassifyAll, ClassifyDriver:
	case "":
		c.Classify = ClassifyAll
	default:
		return fmt.Errorf("invalid classify mode: %s", c.Classify)
	}

	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0
	}

	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}

	if c.DLQ.Enabled && c.DLQ.FilePath == "" {
		return fmt.Errorf("dlq.file is required when dlq is enabled")
	}

	return nil
}

// DefaultConfig возвращает политику bulk загрузки:
// 5 попыток с постоянной задержкой 3 секунды, без разброса
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		MaxAttempts:       5,
		InitialDelay:      3 * time.Second,
		MaxDelay:          3 * time.Second,
		BackoffStrategy:   BackoffConstant,
		BackoffMultiplier: 2.0,
		Jitter:            0,
		Classify:          ClassifyAll,
		DLQ: DLQConfig{
			Enabled:         false,
			FilePath:        "./bulkload_dlq.json",
			MaxSize:         10000,
			RetentionPeriod: 7 * 24 * time.Hour,
		},
	}
}

// Constant создает политику с постоянной задержкой
func Constant(maxAttempts int, delay time.Duration) Config {
	config := DefaultConfig()
	config.MaxAttempts = maxAttempts
	config.InitialDelay = delay
	config.MaxDelay = delay
	return config
}

// Disabled - одна попытка без повторов
func Disabled() Config {
	config := DefaultConfig()
	config.Enabled = false
	return config
}

// Package config - YAML конфигурация bulkload: подключение к БД,
// staging, повторы, карантин и публикация результатов.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/archive"
	"github.com/ruslano69/bulkload/pkg/resultlog"
	"github.com/ruslano69/bulkload/pkg/retry"
)

// Config - корневая конфигурация
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Staging   StagingConfig    `yaml:"staging"`
	Retry     retry.Config     `yaml:"retry"`
	Archive   archive.Config   `yaml:"archive,omitempty"`
	ResultLog resultlog.Config `yaml:"result_log,omitempty"`
	Log       LogConfig        `yaml:"log"`
}

// DatabaseConfig - подключение к БД
type DatabaseConfig struct {
	Type     string `yaml:"type"`               // mysql, postgres, sqlite
	Host     string `yaml:"host,omitempty"`     // Для сетевых СУБД
	Port     int    `yaml:"port,omitempty"`     // Порт СУБД
	Database string `yaml:"database"`           // Имя базы или путь к файлу SQLite
	User     string `yaml:"user,omitempty"`     // Пользователь
	Password string `yaml:"password,omitempty"` // Пароль
	Schema   string `yaml:"schema,omitempty"`   // Схема PostgreSQL (по умолчанию public)
	SSLMode  string `yaml:"sslmode,omitempty"`  // SSL режим PostgreSQL

	// DSN - готовая строка подключения, если задана, поля выше не используются
	DSN string `yaml:"dsn,omitempty"`

	// Timeout - таймаут одной bulk команды
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	MaxConns int           `yaml:"max_conns,omitempty"`
}

// StagingConfig - staging каталоги и политика загрузки
type StagingConfig struct {
	BaseDir       string `yaml:"base_dir,omitempty"` // По умолчанию каталог исполняемого файла
	Name          string `yaml:"name,omitempty"`     // По умолчанию имя исполняемого файла
	Compress      bool   `yaml:"compress"`           // zstd сжатие staged файлов
	CompressLevel int    `yaml:"compress_level"`     // Уровень: 1-22 (по умолчанию 3)
	Policy        string `yaml:"policy"`             // replace, ignore
}

// LogConfig - уровень и формат логов
type LogConfig struct {
	Level   string `yaml:"level"`   // debug, info, warn, error
	Console bool   `yaml:"console"` // Человекочитаемый вывод вместо JSON
}

// Default возвращает конфигурацию по умолчанию. LoadConfig читает YAML поверх нее.
func Default() *Config {
	return &Config{
		Staging: StagingConfig{
			CompressLevel: 3,
			Policy:        string(adapters.StrategyReplace),
		},
		Retry: retry.DefaultConfig(),
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// LoadConfig загружает конфигурацию из YAML файла
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig сохраняет конфигурацию в YAML файл
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if _, err := adapters.ParseStrategy(c.Staging.Policy); err != nil {
		return fmt.Errorf("staging: %w", err)
	}
	if c.Staging.CompressLevel < 1 || c.Staging.CompressLevel > 22 {
		return fmt.Errorf("staging: compress_level must be between 1 and 22, got %d", c.Staging.CompressLevel)
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	if err := c.ResultLog.Validate(); err != nil {
		return fmt.Errorf("result_log: %w", err)
	}

	return nil
}

// Validate проверяет параметры подключения
func (d *DatabaseConfig) Validate() error {
	switch d.Type {
	case "mysql", "postgres":
		if d.DSN == "" && d.Host == "" {
			return fmt.Errorf("host or dsn is required for %s", d.Type)
		}
	case "sqlite":
		if d.DSN == "" && d.Database == "" {
			return fmt.Errorf("database file or dsn is required for sqlite")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unsupported database type: %q (expected mysql, postgres or sqlite)", d.Type)
	}

	if d.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	return nil
}

// SetDefaults заполняет незаданные значения
func (c *Config) SetDefaults() {
	if c.Database.Type == "postgresql" {
		c.Database.Type = "postgres"
	}

	switch c.Database.Type {
	case "mysql":
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
	case "postgres":
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.Schema == "" {
			c.Database.Schema = "public"
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	}

	if c.Staging.Policy == "" {
		c.Staging.Policy = string(adapters.StrategyReplace)
	}
	if c.Staging.CompressLevel == 0 {
		c.Staging.CompressLevel = 3
	}

	if c.ResultLog.Enabled && c.ResultLog.Type == "" {
		c.ResultLog.Type = resultlog.TypeRedis
	}
	if c.ResultLog.Enabled && c.ResultLog.Type == resultlog.TypeRedis && c.ResultLog.TTL == 0 {
		c.ResultLog.TTL = 3600
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// BuildDSN строит строку подключения по полям конфигурации
func (d *DatabaseConfig) BuildDSN() string {
	if d.DSN != "" {
		return d.DSN
	}

	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))

	switch d.Type {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = d.Database
		return cfg.FormatDSN()

	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			Host:   addr,
			Path:   "/" + d.Database,
		}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		q := url.Values{}
		q.Set("sslmode", d.SSLMode)
		if d.Schema != "" {
			q.Set("search_path", d.Schema)
		}
		u.RawQuery = q.Encode()
		return u.String()

	case "sqlite":
		return "file:" + d.Database + "?_pragma=busy_timeout(5000)"

	default:
		return ""
	}
}

// AdapterConfig возвращает конфигурацию адаптера
func (d *DatabaseConfig) AdapterConfig() adapters.Config {
	return adapters.Config{
		Type:     d.Type,
		DSN:      d.BuildDSN(),
		Schema:   d.Schema,
		Timeout:  d.Timeout,
		MaxConns: d.MaxConns,
	}
}

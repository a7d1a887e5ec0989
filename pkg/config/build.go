package config

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/archive"
	"github.com/ruslano69/bulkload/pkg/bulk"
	"github.com/ruslano69/bulkload/pkg/resultlog"
	"github.com/ruslano69/bulkload/pkg/staging"
)

// LoaderOptions собирает bulk.Options: staging, повторы, карантин и
// публикацию результатов. Возвращаемый close освобождает подключение
// приемника результатов (Redis, Kafka или RabbitMQ).
func (c *Config) LoaderOptions(ctx context.Context, logger *zerolog.Logger) (bulk.Options, func() error, error) {
	noop := func() error { return nil }

	policy, err := adapters.ParseStrategy(c.Staging.Policy)
	if err != nil {
		return bulk.Options{}, noop, err
	}

	staging.CompressionLevel = c.Staging.CompressLevel

	opts := bulk.DefaultOptions()
	opts.BaseDir = c.Staging.BaseDir
	opts.Name = c.Staging.Name
	opts.Compress = c.Staging.Compress
	opts.Policy = policy
	opts.Retry = c.Retry
	opts.Logger = logger

	archiver, err := archive.New(ctx, c.Archive)
	if err != nil {
		return bulk.Options{}, noop, fmt.Errorf("failed to create archiver: %w", err)
	}
	if archiver != nil {
		opts.Archiver = archiver
	}

	closer := noop
	if c.ResultLog.Enabled {
		publisher, err := resultlog.New(ctx, c.ResultLog)
		if err != nil {
			return bulk.Options{}, noop, fmt.Errorf("failed to create result log: %w", err)
		}
		opts.Publisher = publisher
		closer = publisher.Close
	}

	return opts, closer, nil
}

// Connect создает адаптер по конфигурации и подключается к БД
func (c *Config) Connect(ctx context.Context) (adapters.Adapter, error) {
	db, err := adapters.New(ctx, c.Database.AdapterConfig())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return db, nil
}

// CreateSampleConfig создает пример конфигурации для типа БД
func CreateSampleConfig(dbType string) *Config {
	config := Default()
	config.Database.Type = dbType

	switch dbType {
	case "postgres", "postgresql":
		config.Database.Type = "postgres"
		config.Database.Host = "localhost"
		config.Database.Port = 5432
		config.Database.Database = "mydb"
		config.Database.User = "postgres"
		config.Database.Password = "password"
		config.Database.Schema = "public"
		config.Database.SSLMode = "disable"

	case "sqlite":
		config.Database.Database = "database.db"

	case "mysql":
		config.Database.Host = "localhost"
		config.Database.Port = 3306
		config.Database.Database = "mydb"
		config.Database.User = "root"
		config.Database.Password = "password"
	}

	config.Staging.Name = "bulkload"
	config.Retry.DLQ.Enabled = true
	config.Archive.Type = archive.TypeLocal
	config.Archive.Dir = "./quarantine"

	return config
}

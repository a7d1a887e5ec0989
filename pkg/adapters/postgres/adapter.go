package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruslano69/bulkload/pkg/adapters"
)

// AdapterType идентификатор PostgreSQL адаптера
const AdapterType = "postgres"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter - bulk адаптер PostgreSQL на COPY протоколе
type Adapter struct {
	pool   *pgxpool.Pool
	schema string
	config adapters.Config
}

// Connect создает пул подключений
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	} else {
		config.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		config.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.pool = pool
	a.config = cfg
	a.schema = cfg.Schema
	if a.schema == "" {
		a.schema = "public"
	}
	return nil
}

// Close закрывает пул
func (a *Adapter) Close(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	if a.pool == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.pool.Ping(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию PostgreSQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// DescribeColumns читает information_schema.columns в порядке ordinal_position
// и отмечает колонки первичного ключа
func (a *Adapter) DescribeColumns(ctx context.Context, table string) ([]adapters.ColumnInfo, error) {
	schema, name := a.splitTable(table)

	rows, err := a.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}

	var columns []adapters.ColumnInfo
	for rows.Next() {
		var col adapters.ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist or has no columns", table)
	}

	pk, err := primaryKey(ctx, a.pool, QuoteTable(schema+"."+name))
	if err != nil {
		return nil, err
	}
	for i := range columns {
		for _, key := range pk {
			if columns[i].Name == key {
				columns[i].IsPrimaryKey = true
			}
		}
	}
	return columns, nil
}

// splitTable разделяет schema.table, без схемы подставляется схема адаптера
func (a *Adapter) splitTable(table string) (string, string) {
	if i := strings.Index(table, "."); i > 0 {
		return table[:i], table[i+1:]
	}
	return a.schema, table
}

// querier - общее у пула и транзакции
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// primaryKey возвращает колонки первичного ключа в порядке индекса
func primaryKey(ctx context.Context, q querier, quotedTable string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary
		ORDER BY array_position(i.indkey::int2[], a.attnum)`, quotedTable)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary key of %s: %w", quotedTable, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", quotedTable, err)
	}
	return keys, nil
}

// QuoteIdent экранирует идентификатор
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteTable экранирует имя таблицы, допускается форма schema.table
func QuoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.Timeout > 0 {
		return context.WithTimeout(ctx, a.config.Timeout)
	}
	return ctx, func() {}
}

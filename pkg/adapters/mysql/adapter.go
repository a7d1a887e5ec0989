package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/bulkload/pkg/adapters"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

// Adapter реализует adapters.Adapter для MySQL через LOAD DATA LOCAL INFILE
// и SELECT ... INTO OUTFILE
type Adapter struct {
	db     *sql.DB
	config adapters.Config
}

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Connect открывает пул подключений к MySQL.
// Файлы для LOAD DATA LOCAL регистрируются по одному, allowAllFiles не нужен.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return fmt.Errorf("invalid mysql dsn: %w", err)
	}

	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return fmt.Errorf("failed to create connector: %w", err)
	}
	db := sql.OpenDB(connector)

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.config = cfg
	return nil
}

// Close закрывает пул
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping проверяет соединение с базой данных
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип адаптера
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию MySQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// DescribeColumns выполняет SHOW COLUMNS FROM <table>
func (a *Adapter) DescribeColumns(ctx context.Context, table string) ([]adapters.ColumnInfo, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "SHOW COLUMNS FROM "+QuoteTable(table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []adapters.ColumnInfo
	for rows.Next() {
		var (
			field, typ, null, key, extra string
			def                          sql.NullString
		)
		if err := rows.Scan(&field, &typ, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		columns = append(columns, adapters.ColumnInfo{
			Name:         field,
			Type:         typ,
			Nullable:     null == "YES",
			IsPrimaryKey: key == "PRI",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}
	return columns, nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.Timeout > 0 {
		return context.WithTimeout(ctx, a.config.Timeout)
	}
	return ctx, func() {}
}

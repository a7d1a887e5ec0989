package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/ruslano69/bulkload/pkg/adapters"
)

// AdapterType идентификатор SQLite адаптера
const AdapterType = "sqlite"

const driverSqlite = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter - SQLite адаптер с эмуляцией bulk команд:
// загрузка читает CSV и вставляет строки в одной транзакции,
// выгрузка пишет результат SELECT в CSV файл
type Adapter struct {
	db     *sql.DB
	config adapters.Config
}

// Connect открывает базу. In-memory база ограничивается одним подключением,
// иначе каждое подключение пула видело бы свою пустую базу.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	db, err := sql.Open(driverSqlite, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if isMemory(cfg.DSN) {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.config = cfg

	a.applyPragmas(ctx)
	return nil
}

func isMemory(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// applyPragmas включает настройки для массовой вставки.
// Ошибки не фатальны: часть PRAGMA не применима к существующим базам.
func (a *Adapter) applyPragmas(ctx context.Context) {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := a.db.ExecContext(ctx, pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("sqlite pragma failed")
		}
	}
}

// Close закрывает базу
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию SQLite
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "SQLite " + version, nil
}

// DB возвращает *sql.DB для прямого доступа
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// DescribeColumns выполняет PRAGMA table_info
func (a *Adapter) DescribeColumns(ctx context.Context, table string) ([]adapters.ColumnInfo, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "PRAGMA table_info("+QuoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []adapters.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		columns = append(columns, adapters.ColumnInfo{
			Name:         name,
			Type:         strings.ToLower(typ),
			Nullable:     notNull == 0,
			IsPrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return columns, nil
}

// QuoteIdent экранирует идентификатор двойными кавычками
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.Timeout > 0 {
		return context.WithTimeout(ctx, a.config.Timeout)
	}
	return ctx, func() {}
}

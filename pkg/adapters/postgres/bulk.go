package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/staging"
)

// BulkLoad загружает staged файл через COPY во временную таблицу
// и переносит строки в целевую с учетом политики конфликтов.
// Все выполняется в одной транзакции на одном подключении из пула.
func (a *Adapter) BulkLoad(ctx context.Context, req adapters.LoadRequest) (int64, error) {
	if err := req.Normalize(); err != nil {
		return 0, err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	src, err := staging.OpenFile(req.File)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tmp := tempTableName(req.Table)
	if _, err := tx.Exec(ctx, BuildTempTableSQL(tmp, req.Table)); err != nil {
		return 0, fmt.Errorf("failed to create temp table for %s: %w", req.Table, err)
	}

	if _, err := tx.Conn().PgConn().CopyFrom(ctx, src, BuildCopyFromSQL(tmp, req)); err != nil {
		return 0, fmt.Errorf("copy into %s failed: %w", req.Table, err)
	}

	var pk []string
	if req.Strategy == adapters.StrategyReplace {
		pk, err = primaryKey(ctx, tx, QuoteTable(req.Table))
		if err != nil {
			return 0, err
		}
	}

	tag, err := tx.Exec(ctx, BuildMergeSQL(tmp, req, pk))
	if err != nil {
		return 0, fmt.Errorf("merge into %s failed: %w", req.Table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BulkUnload выгружает таблицу через COPY ... TO STDOUT в локальный файл
func (a *Adapter) BulkUnload(ctx context.Context, req adapters.UnloadRequest) (err error) {
	if err := req.Normalize(); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	f, err := os.Create(req.File)
	if err != nil {
		return fmt.Errorf("failed to create unload file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close unload file: %w", cerr)
		}
	}()

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Conn().PgConn().CopyTo(ctx, f, BuildCopyToSQL(req)); err != nil {
		return fmt.Errorf("copy from %s failed: %w", req.Table, err)
	}
	return nil
}

func tempTableName(table string) string {
	return "bulkload_" + strings.ReplaceAll(table, ".", "_")
}

// BuildTempTableSQL создает временную таблицу по образцу целевой
func BuildTempTableSQL(tmp, table string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		QuoteIdent(tmp), QuoteTable(table))
}

// BuildCopyFromSQL строит COPY ... FROM STDIN для CSV с маркером пропуска
func BuildCopyFromSQL(tmp string, req adapters.LoadRequest) string {
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, NULL %s)",
		QuoteIdent(tmp), quoteColumns(req.Columns), quoteLiteral(req.NullMarker))
}

// BuildMergeSQL переносит строки из временной таблицы.
// REPLACE с известным ключом: из дубликатов внутри файла берется последняя
// строка, существующие строки обновляются. IGNORE: ON CONFLICT DO NOTHING.
func BuildMergeSQL(tmp string, req adapters.LoadRequest, pk []string) string {
	cols := quoteColumns(req.Columns)
	insert := fmt.Sprintf("INSERT INTO %s (%s) ", QuoteTable(req.Table), cols)

	if req.Strategy == adapters.StrategyIgnore {
		return insert + fmt.Sprintf("SELECT %s FROM %s ON CONFLICT DO NOTHING", cols, QuoteIdent(tmp))
	}

	if len(pk) == 0 || !containsAll(req.Columns, pk) {
		return insert + fmt.Sprintf("SELECT %s FROM %s", cols, QuoteIdent(tmp))
	}

	keys := quoteColumns(pk)
	var updates []string
	for _, col := range req.Columns {
		if !contains(pk, col) {
			q := QuoteIdent(col)
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
		}
	}

	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	return insert + fmt.Sprintf("SELECT DISTINCT ON (%s) %s FROM %s ORDER BY %s, ctid DESC ON CONFLICT (%s) %s",
		keys, cols, QuoteIdent(tmp), keys, keys, action)
}

// BuildCopyToSQL строит выгрузку с заменой NULL на пустую строку
func BuildCopyToSQL(req adapters.UnloadRequest) string {
	cols := make([]string, len(req.Columns))
	for i, col := range req.Columns {
		q := QuoteIdent(col)
		cols[i] = fmt.Sprintf("COALESCE(%s::text,'') AS %s", q, q)
	}
	return fmt.Sprintf("COPY (SELECT %s FROM %s) TO STDOUT WITH (FORMAT csv)",
		strings.Join(cols, ", "), QuoteTable(req.Table))
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAll(list, subset []string) bool {
	for _, s := range subset {
		if !contains(list, s) {
			return false
		}
	}
	return true
}

// Коды SQLSTATE, после которых команду стоит повторить
var retryableStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
}

// IsRetryable отделяет временные ошибки от постоянных (режим classify: driver)
func (a *Adapter) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableStates[pgErr.Code]
	}
	return true
}

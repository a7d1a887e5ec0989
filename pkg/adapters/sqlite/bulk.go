package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/staging"
)

// BulkLoad читает staged CSV и вставляет строки через
// INSERT OR REPLACE|IGNORE в одной транзакции
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

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, BuildInsertSQL(req))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", req.Table, err)
	}
	defer stmt.Close()

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = len(req.Columns)
	reader.ReuseRecord = true

	args := make([]any, len(req.Columns))
	var affected int64
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", req.File, err)
		}

		for i, v := range rec {
			if v == req.NullMarker {
				args[i] = nil
			} else {
				args[i] = v
			}
		}

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s failed at line %d: %w", req.Table, line, err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected, nil
}

// BulkUnload выполняет SELECT IFNULL(col,'') и пишет строки в CSV файл
func (a *Adapter) BulkUnload(ctx context.Context, req adapters.UnloadRequest) (err error) {
	if err := req.Normalize(); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, BuildSelectSQL(req))
	if err != nil {
		return fmt.Errorf("select from %s failed: %w", req.Table, err)
	}
	defer rows.Close()

	f, err := os.Create(req.File)
	if err != nil {
		return fmt.Errorf("failed to create unload file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close unload file: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	w.UseCRLF = req.LineTerminator == "\r\n"

	values := make([]sql.NullString, len(req.Columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	record := make([]string, len(values))

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan row of %s: %w", req.Table, err)
		}
		for i, v := range values {
			record[i] = v.String
		}
		if len(record) == 1 && record[0] == "" {
			// пустая строка без кавычек читается как отсутствие записи
			w.Flush()
			if _, err := f.WriteString(`""` + req.LineTerminator); err != nil {
				return fmt.Errorf("failed to write unload file: %w", err)
			}
			continue
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write unload file: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows of %s: %w", req.Table, err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write unload file: %w", err)
	}
	return nil
}

// BuildInsertSQL строит INSERT OR REPLACE|IGNORE с параметрами
func BuildInsertSQL(req adapters.LoadRequest) string {
	cols := make([]string, len(req.Columns))
	marks := make([]string, len(req.Columns))
	for i, c := range req.Columns {
		cols[i] = QuoteIdent(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT OR %s INTO %s (%s) VALUES (%s)",
		req.Strategy.Keyword(), QuoteIdent(req.Table),
		strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// BuildSelectSQL строит выборку с заменой NULL на пустую строку
func BuildSelectSQL(req adapters.UnloadRequest) string {
	cols := make([]string, len(req.Columns))
	for i, c := range req.Columns {
		q := QuoteIdent(c)
		cols[i] = fmt.Sprintf("IFNULL(%s,'') AS %s", q, q)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), QuoteIdent(req.Table))
}

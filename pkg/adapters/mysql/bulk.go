package mysql

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/staging"
)

// readerPrefix - префикс имени файла для зарегистрированных reader handlers
const readerPrefix = "Reader::"

// BulkLoad выполняет LOAD DATA LOCAL INFILE для одного staged файла.
// Несжатый файл регистрируется через RegisterLocalFile, сжатый
// отдается драйверу потоком через RegisterReaderHandler.
func (a *Adapter) BulkLoad(ctx context.Context, req adapters.LoadRequest) (int64, error) {
	if err := req.Normalize(); err != nil {
		return 0, err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	source, release := registerSource(req.File)
	defer release()

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, BuildLoadSQL(source, req))
	if err != nil {
		return 0, fmt.Errorf("load data into %s failed: %w", req.Table, err)
	}

	affected, _ := res.RowsAffected()
	return affected, nil
}

// BulkUnload выполняет SELECT ... INTO OUTFILE.
// Файл пишет сервер, поэтому путь должен быть доступен серверу MySQL.
func (a *Adapter) BulkUnload(ctx context.Context, req adapters.UnloadRequest) error {
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

	if _, err := conn.ExecContext(ctx, BuildUnloadSQL(staging.FormatPath(req.File), req)); err != nil {
		return fmt.Errorf("select into outfile from %s failed: %w", req.Table, err)
	}
	return nil
}

// registerSource регистрирует файл в драйвере и возвращает имя для
// LOAD DATA и функцию снятия регистрации
func registerSource(file string) (string, func()) {
	path := staging.FormatPath(file)

	if !strings.HasSuffix(path, staging.ZstdSuffix) {
		mysql.RegisterLocalFile(path)
		return path, func() { mysql.DeregisterLocalFile(path) }
	}

	mysql.RegisterReaderHandler(path, func() io.Reader {
		rc, err := staging.OpenFile(file)
		if err != nil {
			return &errReader{err: err}
		}
		// драйвер закрывает io.ReadCloser после отправки
		return rc
	})
	return readerPrefix + path, func() { mysql.DeregisterReaderHandler(path) }
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}

// BuildLoadSQL строит команду загрузки:
//
//	LOAD DATA LOCAL INFILE '<file>' REPLACE INTO TABLE `t`
//	FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '"'
//	LINES TERMINATED BY '\n' (@vcode,@vopen)
//	SET `code` = NULLIF(@vcode,'nan'), `open` = NULLIF(@vopen,'nan');
func BuildLoadSQL(file string, req adapters.LoadRequest) string {
	vars := make([]string, len(req.Columns))
	sets := make([]string, len(req.Columns))
	for i, col := range req.Columns {
		vars[i] = userVar(col)
		sets[i] = fmt.Sprintf("%s = NULLIF(%s,%s)", QuoteIdent(col), vars[i], quoteString(req.NullMarker))
	}

	return fmt.Sprintf("LOAD DATA LOCAL INFILE %s %s INTO TABLE %s\n"+
		"FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '\"'\n"+
		"LINES TERMINATED BY %s (%s)\n"+
		"SET %s;",
		quoteString(file), req.Strategy.Keyword(), QuoteTable(req.Table),
		quoteString(req.LineTerminator), strings.Join(vars, ","),
		strings.Join(sets, ", "))
}

// BuildUnloadSQL строит команду выгрузки с заменой NULL на пустую строку:
//
//	SELECT IFNULL(`code`,'') AS `code` INTO OUTFILE '<file>'
//	FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '"' ESCAPED BY '"'
//	LINES TERMINATED BY '\n' FROM `t`;
//
// ESCAPED BY '"' удваивает кавычку внутри значения (RFC 4180) и оставляет
// обратный слэш как есть, иначе файл не прочитать encoding/csv.
func BuildUnloadSQL(file string, req adapters.UnloadRequest) string {
	cols := make([]string, len(req.Columns))
	for i, col := range req.Columns {
		q := QuoteIdent(col)
		cols[i] = fmt.Sprintf("IFNULL(%s,'') AS %s", q, q)
	}

	return fmt.Sprintf("SELECT %s INTO OUTFILE %s\n"+
		"FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '\"' ESCAPED BY '\"'\n"+
		"LINES TERMINATED BY %s FROM %s;",
		strings.Join(cols, ", "), quoteString(file),
		quoteString(req.LineTerminator), QuoteTable(req.Table))
}

// QuoteIdent экранирует идентификатор обратными кавычками
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteTable экранирует имя таблицы, допускается форма db.table
func QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\x00", `\0`,
)

// quoteString записывает строковый литерал MySQL
func quoteString(s string) string {
	return "'" + stringEscaper.Replace(s) + "'"
}

// userVar возвращает имя пользовательской переменной для колонки.
// Имена с символами вне [A-Za-z0-9_$.] пишутся в обратных кавычках.
func userVar(col string) string {
	name := "v" + col
	for _, r := range name {
		plain := r == '_' || r == '$' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !plain {
			return "@" + QuoteIdent(name)
		}
	}
	return "@" + name
}

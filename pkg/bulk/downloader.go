package bulk

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/frame"
	"github.com/ruslano69/bulkload/pkg/schema"
	"github.com/ruslano69/bulkload/pkg/staging"
)

// Downloader выгружает таблицу в staged файл и читает его во фрейм.
// Типы колонок берутся из живой схемы при каждом вызове.
type Downloader struct {
	db        adapters.Adapter
	paths     *staging.Resolver
	schema    *schema.Introspector
	publisher Publisher
	logger    zerolog.Logger
}

// NewDownloader создает Downloader
func NewDownloader(db adapters.Adapter, paths *staging.Resolver, opts Options) *Downloader {
	return &Downloader{
		db:        db,
		paths:     paths,
		schema:    schema.NewIntrospector(db),
		publisher: opts.Publisher,
		logger:    opts.logger().With().Str("component", "downloader").Str("worker", paths.Key()).Logger(),
	}
}

// Root возвращает корень области выгрузки
func (d *Downloader) Root() string {
	return d.paths.Dir(staging.DownloadPrefix)
}

// Fetch выгружает таблицу и возвращает фрейм с каноничными типами.
// batch=false удаляет каталог воркера перед возвратом, batch=true оставляет
// его до Reset. Любая ошибка удаляет каталог воркера и возвращается.
func (d *Downloader) Fetch(ctx context.Context, table string, batch bool) (*frame.Frame, error) {
	res := Result{
		Operation: OperationDownload,
		WorkerKey: d.paths.Key(),
		StartedAt: time.Now(),
	}

	f, fr, err := d.fetch(ctx, table)
	if fr.Path != "" {
		res.Files = append(res.Files, fr)
		res.Rows = fr.Rows
	}
	res.FinishedAt = time.Now()
	res.Err = err
	publish(ctx, d.publisher, d.logger, res)

	if err != nil || !batch {
		d.Reset()
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info().Str("table", table).Int("rows", f.Len()).Bool("batch", batch).Msg("bulk unload completed")
	return f, nil
}

func (d *Downloader) fetch(ctx context.Context, table string) (*frame.Frame, FileResult, error) {
	fr := FileResult{Table: table}
	if table == "" {
		return nil, fr, ErrMissingTarget
	}

	root := d.Root()
	child := d.paths.ChildDir(root)
	if err := d.paths.Mkdirs(root, child); err != nil {
		return nil, fr, err
	}
	file := staging.NextAvailable(filepath.Join(child, table+staging.CSVSuffix))

	columns, err := d.schema.Columns(ctx, table)
	if err != nil {
		return nil, fr, err
	}
	if len(columns) == 0 {
		return nil, fr, fmt.Errorf("table %s has no columns", table)
	}

	fr.Path = staging.FormatPath(file)
	fr.Attempts = 1
	req := adapters.UnloadRequest{
		File:           fr.Path,
		Table:          table,
		Columns:        schema.Names(columns),
		LineTerminator: staging.LineTerminator(),
	}

	start := time.Now()
	err = d.db.BulkUnload(ctx, req)
	observeCommand(d.db.GetDatabaseType(), "unload", start, err)
	if err != nil {
		return nil, fr, fmt.Errorf("failed to unload %s: %w", table, err)
	}

	f, err := readStaged(file, columns)
	if err != nil {
		return nil, fr, fmt.Errorf("failed to read unloaded %s: %w", table, err)
	}
	fr.Rows = int64(f.Len())

	if sum, err := staging.Checksum(file); err == nil {
		fr.Checksum = sum
	}
	return f, fr, nil
}

// Reset удаляет каталог воркера, корень области удаляется, если он опустел
func (d *Downloader) Reset() {
	root := d.Root()
	d.paths.Clear(d.paths.ChildDir(root))
	d.paths.Prune(root)
}

// readStaged читает выгруженный файл: "" становится пропуском,
// каждая колонка приводится к своему каноничному типу
func readStaged(file string, columns []schema.Column) (*frame.Frame, error) {
	src, err := staging.OpenFile(file)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	f, err := frame.ReadRecords(src, schema.Names(columns))
	if err != nil {
		return nil, err
	}

	for i, c := range f.Columns() {
		if err := c.Coerce(columns[i].Type); err != nil {
			return nil, err
		}
	}
	return f, nil
}

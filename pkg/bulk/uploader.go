package bulk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/retry"
	"github.com/ruslano69/bulkload/pkg/staging"
)

// Uploader накапливает данные в staging файлах и загружает их в БД.
//
// Состояния: idle -> staged (Stage) -> executing (Execute) -> idle.
// Один Uploader не потокобезопасен, у каждого воркера свой.
type Uploader struct {
	db        adapters.Adapter
	paths     *staging.Resolver
	retryer   *retry.Retryer
	dlq       *retry.DLQ
	archiver  Archiver
	publisher Publisher
	policy    adapters.ImportStrategy
	compress  bool
	logger    zerolog.Logger
}

// NewUploader создает Uploader
func NewUploader(db adapters.Adapter, paths *staging.Resolver, opts Options) (*Uploader, error) {
	u := &Uploader{
		db:        db,
		paths:     paths,
		archiver:  opts.Archiver,
		publisher: opts.Publisher,
		policy:    opts.Policy,
		compress:  opts.Compress,
		logger:    opts.logger().With().Str("component", "uploader").Str("worker", paths.Key()).Logger(),
	}

	cfg := opts.Retry
	if cfg.DLQ.Enabled {
		dlq, err := retry.NewDLQ(cfg.DLQ)
		if err != nil {
			return nil, fmt.Errorf("failed to open dead letter file: %w", err)
		}
		u.dlq = dlq
	}

	if cfg.Retryable == nil && cfg.Classify == retry.ClassifyDriver {
		cfg.Retryable = func(err error) bool {
			return adapters.IsRetryable(db, err)
		}
	}
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retriesTotal.WithLabelValues(db.GetDatabaseType()).Inc()
		u.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("bulk load failed, retrying")
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	retryer, err := retry.NewRetryer(cfg)
	if err != nil {
		return nil, err
	}
	u.retryer = retryer

	return u, nil
}

// Root возвращает корень области загрузки
func (u *Uploader) Root() string {
	return u.paths.Dir(staging.UploadPrefix)
}

// Stage дописывает все строки цели в <child>/<table>.csv.
// Первый Stage в области записывает кэш колонок, следующие
// сверяют с ним свой набор колонок.
func (u *Uploader) Stage(ctx context.Context, t Target) error {
	f, err := t.Frame()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	root := u.Root()
	child := u.paths.ChildDir(root)
	if err := u.paths.Mkdirs(root, child); err != nil {
		return err
	}

	created, err := staging.WriteColumns(root, f.Names())
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", t.Name, err)
	}

	path := filepath.Join(child, staging.FileName(t.Name, u.compress))
	if err := staging.AppendRecords(path, f.Records(adapters.DefaultNullMarker)); err != nil {
		return fmt.Errorf("failed to stage %s: %w", t.Name, err)
	}

	stagedRows.WithLabelValues(t.Name).Add(float64(f.Len()))
	u.logger.Debug().
		Str("table", t.Name).
		Int("rows", f.Len()).
		Bool("columns_cached", created).
		Msg("staged")
	return nil
}

// Execute загружает все staged файлы области, по одной bulk команде на файл,
// и удаляет область. Без кэша колонок загружать нечего, это успех.
// При неустранимой ошибке файл сохраняется в карантин (если задан),
// область удаляется, ошибка возвращается.
func (u *Uploader) Execute(ctx context.Context, opts ...CallOption) error {
	co := applyCallOptions(u.policy, opts)
	root := u.Root()
	started := time.Now()

	columns, err := staging.ReadColumns(root)
	if errors.Is(err, os.ErrNotExist) {
		u.logger.Debug().Str("dir", root).Msg("nothing staged")
		return nil
	}
	if err != nil {
		u.Reset()
		return err
	}

	files, err := staging.StagedFiles(root)
	if err != nil {
		u.Reset()
		return err
	}
	defer u.Reset()

	res := Result{
		Operation: OperationUpload,
		WorkerKey: u.paths.Key(),
		StartedAt: started,
	}

	for _, file := range files {
		fr, err := u.loadFile(ctx, file, columns.Names, co.policy)
		res.Files = append(res.Files, fr)
		res.Rows += fr.Rows
		if err != nil {
			u.quarantine(ctx, fr, file, err)
			res.Err = fmt.Errorf("failed to load %s into %s: %w", staging.FormatPath(file), fr.Table, err)
			break
		}
	}

	res.FinishedAt = time.Now()
	u.publish(ctx, res)

	if res.Err == nil {
		u.logger.Info().
			Int("files", len(res.Files)).
			Int64("rows", res.Rows).
			Str("policy", co.policy.Keyword()).
			Msg("bulk load completed")
	}
	return res.Err
}

// Reset удаляет область загрузки вместе с кэшем колонок
func (u *Uploader) Reset() {
	u.paths.Clear(u.Root())
}

func (u *Uploader) loadFile(ctx context.Context, file string, columns []string, policy adapters.ImportStrategy) (FileResult, error) {
	fr := FileResult{
		Table: staging.TableName(file),
		Path:  staging.FormatPath(file),
	}

	sum, err := staging.Checksum(file)
	if err != nil {
		u.logger.Warn().Err(err).Str("file", fr.Path).Msg("failed to checksum staged file")
	}
	fr.Checksum = sum

	req := adapters.LoadRequest{
		File:           fr.Path,
		Table:          fr.Table,
		Columns:        columns,
		Strategy:       policy,
		LineTerminator: staging.LineTerminator(),
		NullMarker:     adapters.DefaultNullMarker,
	}

	dialect := u.db.GetDatabaseType()
	fr.Attempts, err = u.retryer.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		n, err := u.db.BulkLoad(ctx, req)
		observeCommand(dialect, "load", start, err)
		if err != nil {
			return err
		}
		fr.Rows = n
		return nil
	})
	return fr, err
}

// quarantine сохраняет файл и записывает его в dead letter файл
func (u *Uploader) quarantine(ctx context.Context, fr FileResult, file string, cause error) {
	ctx = context.WithoutCancel(ctx)

	var location string
	if u.archiver != nil {
		loc, err := u.archiver.Archive(ctx, file, fr.Table)
		if err != nil {
			u.logger.Error().Err(err).Str("file", fr.Path).Msg("failed to archive staged file")
		} else {
			location = loc
			u.logger.Warn().Str("file", fr.Path).Str("location", loc).Msg("staged file quarantined")
		}
	}

	if u.dlq == nil {
		return
	}

	entry := retry.DLQEntry{
		Table:       fr.Table,
		File:        fr.Path,
		Attempts:    fr.Attempts,
		LastError:   cause.Error(),
		FailureType: failureType(cause),
		Quarantine:  location,
	}
	if err := u.dlq.Add(entry); err != nil {
		u.logger.Error().Err(err).Str("file", fr.Path).Msg("failed to write dead letter entry")
	}
}

func failureType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return retry.FailureCancelled
	case errors.Is(err, retry.ErrAttemptsExhausted):
		return retry.FailureAttemptsExhausted
	default:
		return retry.FailureNonRetryable
	}
}

func (u *Uploader) publish(ctx context.Context, res Result) {
	publish(ctx, u.publisher, u.logger, res)
}

func publish(ctx context.Context, p Publisher, logger zerolog.Logger, res Result) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), res); err != nil {
		logger.Warn().Err(err).Str("operation", string(res.Operation)).Msg("failed to publish result")
	}
}

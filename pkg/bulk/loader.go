package bulk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/frame"
)

// Loader - точка входа: загрузка таблиц в БД и выгрузка из нее.
// Адаптер принадлежит вызывающему, Loader его не закрывает.
type Loader struct {
	db     adapters.Adapter
	up     *Uploader
	down   *Downloader
	logger zerolog.Logger
}

// NewLoader создает Loader со своей staging областью
func NewLoader(db adapters.Adapter, opts Options) (*Loader, error) {
	if db == nil {
		return nil, fmt.Errorf("adapter is required")
	}

	paths, err := opts.resolver()
	if err != nil {
		return nil, err
	}

	up, err := NewUploader(db, paths, opts)
	if err != nil {
		return nil, err
	}

	return &Loader{
		db:     db,
		up:     up,
		down:   NewDownloader(db, paths, opts),
		logger: opts.logger().With().Str("worker", paths.Key()).Logger(),
	}, nil
}

// Uploader возвращает загрузчик Loader
func (l *Loader) Uploader() *Uploader {
	return l.up
}

// Downloader возвращает выгрузчик Loader
func (l *Loader) Downloader() *Downloader {
	return l.down
}

// LoadTo загружает данные в таблицу name: очистка области, stage, execute
func (l *Loader) LoadTo(ctx context.Context, data frame.Tabular, name string, opts ...CallOption) error {
	t := Target{Data: data, Name: name}
	if _, err := t.Frame(); err != nil {
		return err
	}

	return Timed(l.logger, "load_to", func() error {
		l.up.Reset()
		if err := l.up.Stage(ctx, t); err != nil {
			l.up.Reset()
			return err
		}
		return l.up.Execute(ctx, opts...)
	})
}

// BatchLoadTo только дописывает данные в staging файл воркера.
// Загрузку выполняет Execute или Session.Close.
func (l *Loader) BatchLoadTo(ctx context.Context, data frame.Tabular, name string) error {
	return Timed(l.logger, "batch_load_to", func() error {
		return l.up.Stage(ctx, Target{Data: data, Name: name})
	})
}

// LoadFrom выгружает таблицу name, staging файл удаляется
func (l *Loader) LoadFrom(ctx context.Context, name string) (*frame.Frame, error) {
	var f *frame.Frame
	err := Timed(l.logger, "load_from", func() error {
		var err error
		f, err = l.down.Fetch(ctx, name, false)
		return err
	})
	return f, err
}

// BatchLoadFrom выгружает таблицу name, staging файл остается до
// Session.Close или Reset
func (l *Loader) BatchLoadFrom(ctx context.Context, name string) (*frame.Frame, error) {
	var f *frame.Frame
	err := Timed(l.logger, "batch_load_from", func() error {
		var err error
		f, err = l.down.Fetch(ctx, name, true)
		return err
	})
	return f, err
}

// Execute загружает все, что застейджено в области.
// Вызывается одним координатором после завершения воркеров.
func (l *Loader) Execute(ctx context.Context, opts ...CallOption) error {
	return Timed(l.logger, "execute", func() error {
		return l.up.Execute(ctx, opts...)
	})
}

// Reset удаляет staging области загрузки и выгрузки
func (l *Loader) Reset() {
	l.up.Reset()
	l.down.paths.Clear(l.down.Root())
}

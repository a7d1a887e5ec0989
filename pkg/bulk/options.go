package bulk

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/retry"
	"github.com/ruslano69/bulkload/pkg/staging"
)

// Options - настройки Loader
type Options struct {
	// BaseDir - родитель staging каталогов, по умолчанию каталог исполняемого файла
	BaseDir string

	// Name - имя области, по умолчанию имя исполняемого файла
	Name string

	// WorkerKey - ключ дочернего каталога, по умолчанию <pid>_<uuid>
	WorkerKey string

	// Policy - политика конфликтов по ключу, по умолчанию REPLACE
	Policy adapters.ImportStrategy

	// Retry - политика повторов bulk загрузки одного файла.
	// Retry.DLQ включает файл записей о неудачных загрузках.
	Retry retry.Config

	// Compress - сжимать staged файлы zstd
	Compress bool

	// Publisher получает результат каждого Execute и Fetch, может быть nil
	Publisher Publisher

	// Archiver сохраняет файл, который не удалось загрузить, может быть nil
	Archiver Archiver

	Logger *zerolog.Logger
}

// DefaultOptions возвращает настройки по умолчанию:
// REPLACE, 5 попыток с задержкой 3 секунды, без сжатия
func DefaultOptions() Options {
	return Options{
		Policy: adapters.StrategyReplace,
		Retry:  retry.DefaultConfig(),
	}
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return log.Logger
}

func (o Options) resolver() (*staging.Resolver, error) {
	l := o.logger()
	return staging.NewResolver(staging.Options{
		BaseDir:   o.BaseDir,
		Name:      o.Name,
		WorkerKey: o.WorkerKey,
		Logger:    &l,
	})
}

// CallOption меняет настройки одного вызова
type CallOption func(*callOptions)

type callOptions struct {
	policy adapters.ImportStrategy
}

// WithPolicy задает политику конфликтов для одного вызова
func WithPolicy(policy adapters.ImportStrategy) CallOption {
	return func(o *callOptions) {
		o.policy = policy
	}
}

// WithIgnore - сокращение для WithPolicy(adapters.StrategyIgnore)
func WithIgnore() CallOption {
	return WithPolicy(adapters.StrategyIgnore)
}

func applyCallOptions(policy adapters.ImportStrategy, opts []CallOption) callOptions {
	co := callOptions{policy: policy}
	for _, opt := range opts {
		opt(&co)
	}
	if co.policy == "" {
		co.policy = adapters.StrategyReplace
	}
	return co
}

package bulk

import (
	"context"
	"time"
)

// Operation - вид bulk операции
type Operation string

const (
	OperationUpload   Operation = "upload"
	OperationDownload Operation = "download"
)

// FileResult - итог по одному staged файлу
type FileResult struct {
	Table    string
	Path     string
	Checksum string
	Rows     int64
	Attempts int
}

// Result - итог Execute или Fetch
type Result struct {
	Operation  Operation
	WorkerKey  string
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       int64
	Files      []FileResult

	// Err - ошибка операции, nil при успехе
	Err error
}

// Publisher получает результаты операций (Redis, лог, ...).
// Ошибка публикации логируется и не меняет результат операции.
type Publisher interface {
	Publish(ctx context.Context, res Result) error
}

// Archiver сохраняет staged файл до удаления staging каталога
// и возвращает место копии
type Archiver interface {
	Archive(ctx context.Context, path, table string) (string, error)
}

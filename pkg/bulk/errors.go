package bulk

import (
	"errors"

	"github.com/ruslano69/bulkload/pkg/staging"
)

var (
	// ErrMissingTarget - у данных нет имени целевой таблицы
	ErrMissingTarget = errors.New("target table name is required")

	// ErrInvalidData - данные не являются ни серией, ни фреймом с колонками
	ErrInvalidData = errors.New("data must be a series or a frame with at least one column")

	// ErrColumnMismatch - набор колонок отличается от уже застейдженного
	ErrColumnMismatch = staging.ErrColumnMismatch
)

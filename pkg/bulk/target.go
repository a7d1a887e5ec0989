package bulk

import (
	"fmt"
	"strings"

	"github.com/ruslano69/bulkload/pkg/frame"
)

// Target - данные вместе с именем целевой таблицы
type Target struct {
	Data frame.Tabular
	Name string
}

// Frame проверяет цель и возвращает данные в виде фрейма.
// Ошибки возвращаются до любых обращений к диску и БД.
func (t Target) Frame() (*frame.Frame, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, ErrMissingTarget
	}
	if strings.ContainsAny(t.Name, `/\`) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrMissingTarget, t.Name)
	}
	if t.Data == nil {
		return nil, ErrInvalidData
	}

	f := t.Data.Frame()
	if f == nil || f.Width() == 0 {
		return nil, ErrInvalidData
	}
	return f, nil
}

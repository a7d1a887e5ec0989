package schema

import (
	"context"
	"fmt"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/frame"
)

// Column - колонка живой схемы с каноничным типом
type Column struct {
	Name string

	// Native - описание типа как его вернула СУБД
	Native string

	Type frame.Type
	Key  bool
}

// Describer - часть адаптера, нужная для чтения схемы
type Describer interface {
	DescribeColumns(ctx context.Context, table string) ([]adapters.ColumnInfo, error)
}

// Introspector читает колонки таблицы и сводит их типы к каноничным.
// Результат не кэшируется: каждый вызов читает схему заново.
type Introspector struct {
	db      Describer
	dialect string
}

// NewIntrospector создает Introspector. Если db сообщает тип СУБД
// (GetDatabaseType), маппинг типов учитывает его.
func NewIntrospector(db Describer) *Introspector {
	in := &Introspector{db: db}
	if typed, ok := db.(interface{ GetDatabaseType() string }); ok {
		in.dialect = typed.GetDatabaseType()
	}
	return in
}

// Columns возвращает колонки таблицы в порядке схемы
func (i *Introspector) Columns(ctx context.Context, table string) ([]Column, error) {
	infos, err := i.db.DescribeColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", table, err)
	}

	columns := make([]Column, len(infos))
	for n, info := range infos {
		columns[n] = Column{
			Name:   info.Name,
			Native: info.Type,
			Type:   CanonicalFor(i.dialect, info.Type),
			Key:    info.IsPrimaryKey,
		}
	}
	return columns, nil
}

// Names возвращает имена колонок по порядку
func Names(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

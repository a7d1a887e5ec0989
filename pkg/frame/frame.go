package frame

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch - колонки фрейма имеют разную длину
var ErrLengthMismatch = errors.New("column length mismatch")

// Column - именованная колонка с каноничным типом.
// nil в Values означает пропущенное значение.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// NewColumn создает колонку
func NewColumn(name string, t Type, values ...any) *Column {
	if t == "" {
		t = TypeText
	}
	return &Column{Name: name, Type: t, Values: values}
}

// Len возвращает количество значений в колонке
func (c *Column) Len() int {
	return len(c.Values)
}

// Coerce приводит значения колонки к типу t.
// Пустые строки превращаются в пропуск до приведения, чтобы NULL,
// выгруженный как "", не стал нулем в числовой колонке.
func (c *Column) Coerce(t Type) error {
	out := make([]any, len(c.Values))
	for i, v := range c.Values {
		if IsMissing(v) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = Format(v, "")
		}
		parsed, err := Parse(s, t)
		if err != nil {
			return fmt.Errorf("column %s row %d: %w", c.Name, i, err)
		}
		out[i] = parsed
	}
	c.Values = out
	c.Type = t
	return nil
}

// Tabular - все, что может быть представлено фреймом (Frame или Series)
type Tabular interface {
	Frame() *Frame
}

// Frame - таблица в памяти: упорядоченные именованные колонки
// одинаковой длины
type Frame struct {
	columns []*Column
	index   map[string]int
}

// New создает фрейм из колонок. Имена должны быть уникальными,
// длины - одинаковыми.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if err := f.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MustNew создает фрейм или паникует при ошибке.
// Использовать только в тестах и примерах.
func MustNew(columns ...*Column) *Frame {
	f, err := New(columns...)
	if err != nil {
		panic(fmt.Sprintf("frame: %v", err))
	}
	return f
}

// AddColumn добавляет колонку в конец фрейма
func (f *Frame) AddColumn(c *Column) error {
	if c == nil {
		return fmt.Errorf("column is nil")
	}
	if c.Name == "" {
		return fmt.Errorf("column name is required")
	}
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if _, exists := f.index[c.Name]; exists {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if len(f.columns) > 0 && c.Len() != f.Len() {
		return fmt.Errorf("%w: column %q has %d values, frame has %d rows",
			ErrLengthMismatch, c.Name, c.Len(), f.Len())
	}
	f.index[c.Name] = len(f.columns)
	f.columns = append(f.columns, c)
	return nil
}

// Frame реализует Tabular
func (f *Frame) Frame() *Frame {
	return f
}

// Len возвращает количество строк
func (f *Frame) Len() int {
	if f == nil || len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// Width возвращает количество колонок
func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.columns)
}

// Names возвращает имена колонок по порядку
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Columns возвращает колонки фрейма
func (f *Frame) Columns() []*Column {
	return f.columns
}

// Column возвращает колонку по имени
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Row возвращает значения i-й строки
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.columns))
	for j, c := range f.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Records возвращает все строки в текстовом виде,
// пропуски заменяются на missing
func (f *Frame) Records(missing string) [][]string {
	records := make([][]string, f.Len())
	for i := range records {
		rec := make([]string, len(f.columns))
		for j, c := range f.columns {
			rec[j] = Format(c.Values[i], missing)
		}
		records[i] = rec
	}
	return records
}

// Slice возвращает фрейм со строками [from, to).
// Значения не копируются.
func (f *Frame) Slice(from, to int) *Frame {
	if from < 0 {
		from = 0
	}
	if to > f.Len() {
		to = f.Len()
	}
	if from > to {
		from = to
	}

	out := &Frame{index: make(map[string]int, len(f.columns))}
	for i, c := range f.columns {
		out.columns = append(out.columns, &Column{Name: c.Name, Type: c.Type, Values: c.Values[from:to:to]})
		out.index[c.Name] = i
	}
	return out
}

// Split режет фрейм на части не длиннее chunkSize строк
func Split(f *Frame, chunkSize int) []*Frame {
	if chunkSize <= 0 || f.Len() <= chunkSize {
		return []*Frame{f}
	}

	chunks := make([]*Frame, 0, (f.Len()+chunkSize-1)/chunkSize)
	for start := 0; start < f.Len(); start += chunkSize {
		chunks = append(chunks, f.Slice(start, start+chunkSize))
	}
	return chunks
}

// Series - одиночная колонка
type Series struct {
	Name   string
	Type   Type
	Values []any
}

// Frame превращает серию во фрейм из одной колонки
func (s *Series) Frame() *Frame {
	if s == nil || s.Name == "" {
		return nil
	}
	f, err := New(NewColumn(s.Name, s.Type, s.Values...))
	if err != nil {
		return nil
	}
	return f
}

package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// ColumnsFile - имя файла кэша колонок в корне области
const ColumnsFile = "str_columns"

// ErrColumnMismatch - набор колонок отличается от закэшированного в области
var ErrColumnMismatch = errors.New("column set differs from staged columns")

// ColumnList - закэшированный список колонок области
type ColumnList struct {
	// List - список в скобках: (code, open, time)
	List        string   `yaml:"list"`
	Names       []string `yaml:"names"`
	Fingerprint string   `yaml:"fingerprint"`
}

// NewColumnList строит запись кэша по упорядоченным именам колонок
func NewColumnList(names []string) ColumnList {
	return ColumnList{
		List:        "(" + strings.Join(names, ", ") + ")",
		Names:       append([]string(nil), names...),
		Fingerprint: Fingerprint(names),
	}
}

// Fingerprint - xxh3 хэш упорядоченного набора колонок
func Fingerprint(names []string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(strings.Join(names, "\x00")))
}

// WriteColumns записывает кэш колонок в root ровно один раз.
// Файл публикуется через hard link, поэтому из параллельных первых
// записей побеждает одна, а читатели никогда не видят частичный файл.
// Если кэш уже есть, проверяет совпадение набора и возвращает created=false.
func WriteColumns(root string, names []string) (created bool, err error) {
	list := NewColumnList(names)
	target := filepath.Join(root, ColumnsFile)

	if existing, err := ReadColumns(root); err == nil {
		return false, existing.verify(list)
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	data, err := yaml.Marshal(&list)
	if err != nil {
		return false, fmt.Errorf("failed to marshal column cache: %w", err)
	}

	tmp, err := os.CreateTemp(root, ColumnsFile+".*.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create column cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, fmt.Errorf("failed to write column cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to write column cache: %w", err)
	}

	if err := os.Link(tmp.Name(), target); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return false, fmt.Errorf("failed to publish column cache: %w", err)
		}
		existing, err := ReadColumns(root)
		if err != nil {
			return false, err
		}
		return false, existing.verify(list)
	}
	return true, nil
}

// ReadColumns читает кэш колонок. Отсутствие файла - os.ErrNotExist.
func ReadColumns(root string) (*ColumnList, error) {
	data, err := os.ReadFile(filepath.Join(root, ColumnsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read column cache: %w", err)
	}

	var list ColumnList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse column cache: %w", err)
	}
	if len(list.Names) == 0 {
		return nil, fmt.Errorf("column cache %s is empty", filepath.Join(root, ColumnsFile))
	}
	return &list, nil
}

func (c *ColumnList) verify(other ColumnList) error {
	if c.Fingerprint != other.Fingerprint {
		return fmt.Errorf("%w: staged %s, got %s", ErrColumnMismatch, c.List, other.List)
	}
	return nil
}

package frame

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX читает лист книги Excel в текстовый фрейм: первая строка - заголовок.
// Пустой sheet означает первый лист. Пустые и отсутствующие в конце строки
// ячейки становятся пропусками.
func ReadXLSX(path, sheet string) (*Frame, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	if sheet == "" {
		sheet = book.GetSheetName(0)
	}

	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty: header is required", sheet)
	}

	names := rows[0]
	values := make([][]any, len(names))
	for n, row := range rows[1:] {
		if len(row) > len(names) {
			return nil, fmt.Errorf("sheet %s row %d: %d cells, header has %d", sheet, n+2, len(row), len(names))
		}
		for i := range names {
			if i >= len(row) || row[i] == "" {
				values[i] = append(values[i], nil)
			} else {
				values[i] = append(values[i], row[i])
			}
		}
	}

	columns := make([]*Column, len(names))
	for i, name := range names {
		columns[i] = NewColumn(name, TypeText, values[i]...)
	}
	return New(columns...)
}

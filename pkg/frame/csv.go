package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ReadCSV читает CSV с заголовком в текстовый фрейм.
// Пустые ячейки становятся пропусками.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv is empty: header is required")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	return readRows(reader, header)
}

// ReadRecords читает CSV без заголовка в текстовый фрейм с колонками names.
// Пустые ячейки становятся пропусками.
func ReadRecords(r io.Reader, names []string) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(names)
	return readRows(reader, names)
}

func readRows(reader *csv.Reader, names []string) (*Frame, error) {
	values := make([][]any, len(names))
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		for i, v := range rec {
			if v == "" {
				values[i] = append(values[i], nil)
			} else {
				values[i] = append(values[i], v)
			}
		}
	}

	columns := make([]*Column, len(names))
	for i, name := range names {
		columns[i] = NewColumn(name, TypeText, values[i]...)
	}
	return New(columns...)
}

// WriteCSV пишет фрейм с заголовком, пропуски пишутся пустыми ячейками
func WriteCSV(w io.Writer, f *Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Names()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := writer.WriteAll(f.Records("")); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

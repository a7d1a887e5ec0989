package staging

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
)

// CompressionLevel - уровень zstd для staged файлов.
// 1 (самый быстрый) - 22 (лучшее сжатие)
var CompressionLevel = 3

// FileName возвращает имя staged файла таблицы
func FileName(table string, compress bool) string {
	if compress {
		return table + CSVSuffix + ZstdSuffix
	}
	return table + CSVSuffix
}

// AppendRecords дописывает строки в конец staged файла без заголовка.
// Сжатый файл дополняется новым zstd фреймом, декодер читает их подряд.
func AppendRecords(path string, records [][]string) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open staging file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close staging file: %w", cerr)
		}
	}()

	counter := &countingWriter{}
	var sink io.Writer = f
	var enc *zstd.Encoder
	if strings.HasSuffix(path, ZstdSuffix) {
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(CompressionLevel)))
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		sink = enc
	}

	if err := writeRecords(io.MultiWriter(sink, counter), records); err != nil {
		if enc != nil {
			enc.Close()
		}
		return fmt.Errorf("failed to write staging file: %w", err)
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to flush zstd frame: %w", err)
		}
	}

	stagedBytes.WithLabelValues(TableName(path)).Add(float64(counter.n))
	return nil
}

// writeRecords пишет CSV. Одиночное пустое поле пишется как "",
// иначе строка превращается в пустую и теряется при чтении.
func writeRecords(out io.Writer, records [][]string) error {
	w := csv.NewWriter(out)
	w.UseCRLF = LineTerminator() == "\r\n"
	for _, rec := range records {
		if len(rec) == 1 && rec[0] == "" {
			w.Flush()
			if _, err := io.WriteString(out, `""`+LineTerminator()); err != nil {
				return err
			}
			continue
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// OpenFile открывает staged файл на чтение, распаковывая .zst на лету
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging file: %w", err)
	}
	if !strings.HasSuffix(path, ZstdSuffix) {
		return f, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdFile{Decoder: dec, file: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

// StagedFiles обходит область и возвращает все staged файлы в лексическом порядке.
// Кэш колонок и временные файлы пропускаются.
func StagedFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsStagedFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk staging dir %s: %w", root, err)
	}
	return files, nil
}

// Checksum возвращает xxh3 хэш содержимого файла в hex
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to compute checksum: %w", err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// Package archive сохраняет staged файлы, которые не удалось загрузить,
// до удаления staging каталога: в локальный каталог карантина или в S3.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archiver сохраняет файл и возвращает место, куда он попал
type Archiver interface {
	Archive(ctx context.Context, path, table string) (string, error)
}

// Типы хранилища карантина
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// Config - настройки карантина. Пустой Type = карантин выключен.
type Config struct {
	Type string `yaml:"type"`

	// Dir - каталог для TypeLocal
	Dir string `yaml:"dir"`

	S3 S3Config `yaml:"s3"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	switch c.Type {
	case "":
		return nil
	case TypeLocal:
		if c.Dir == "" {
			return fmt.Errorf("archive.dir is required for local archive")
		}
	case TypeS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required for s3 archive")
		}
	default:
		return fmt.Errorf("unknown archive type: %q (expected local or s3)", c.Type)
	}
	return nil
}

// New создает Archiver по конфигурации. Для пустого Type возвращает nil.
func New(ctx context.Context, cfg Config) (Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeLocal:
		return NewLocalArchiver(cfg.Dir), nil
	case TypeS3:
		return NewS3Archiver(ctx, cfg.S3)
	default:
		return nil, nil
	}
}

// objectName - имя копии: <table>/<utc timestamp>_<file>
func objectName(path, table string, now time.Time) string {
	return table + "/" + now.UTC().Format("20060102T150405.000000000Z") + "_" + filepath.Base(path)
}

// LocalArchiver копирует файлы в каталог карантина
type LocalArchiver struct {
	dir string
	now func() time.Time
}

// NewLocalArchiver создает LocalArchiver
func NewLocalArchiver(dir string) *LocalArchiver {
	return &LocalArchiver{dir: dir, now: time.Now}
}

// Archive копирует файл в <dir>/<table>/<timestamp>_<file>
func (a *LocalArchiver) Archive(ctx context.Context, path, table string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := filepath.Join(a.dir, filepath.FromSlash(objectName(path, table, a.now())))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive dir: %w", err)
	}

	if err := copyFile(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

func contentType(path string) string {
	if strings.HasSuffix(path, ".zst") {
		return "application/zstd"
	}
	return "text/csv"
}

package staging

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Префиксы каталогов staging области
const (
	UploadPrefix   = "__tmp__to__"
	DownloadPrefix = "__tmp_from__"
)

// Суффиксы staged файлов
const (
	CSVSuffix  = ".csv"
	ZstdSuffix = ".zst"
)

// Options - параметры Resolver. Пустые поля заполняются по умолчанию.
type Options struct {
	// BaseDir - родительский каталог, по умолчанию каталог исполняемого файла
	BaseDir string

	// Name - имя программы, по умолчанию имя исполняемого файла без расширения
	Name string

	// WorkerKey - ключ дочернего каталога, по умолчанию <pid>_<uuid>
	WorkerKey string

	Logger *zerolog.Logger
}

// Resolver вычисляет пути staging области и управляет каталогами.
//
// Раскладка:
//
//	<base>/<prefix><name>/<key>/<table>.csv
//	<base>/<prefix><name>/str_columns
type Resolver struct {
	base   string
	name   string
	key    string
	logger zerolog.Logger
}

// NewResolver создает Resolver
func NewResolver(opts Options) (*Resolver, error) {
	r := &Resolver{
		base: opts.BaseDir,
		name: opts.Name,
		key:  opts.WorkerKey,
	}

	if r.base == "" || r.name == "" {
		exe := os.Args[0]
		if r.base == "" {
			r.base = filepath.Dir(exe)
		}
		if r.name == "" {
			r.name = strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
		}
	}
	if r.key == "" {
		r.key = DefaultWorkerKey()
	}

	for field, v := range map[string]string{"name": r.name, "worker key": r.key} {
		if strings.ContainsAny(v, `/\`) || v == "." || v == ".." {
			return nil, fmt.Errorf("invalid staging %s: %q", field, v)
		}
	}

	if opts.Logger != nil {
		r.logger = *opts.Logger
	} else {
		r.logger = log.Logger
	}
	r.logger = r.logger.With().Str("component", "staging").Logger()

	return r, nil
}

// DefaultWorkerKey возвращает ключ <pid>_<uuid>, уникальный для процесса и вызова
func DefaultWorkerKey() string {
	return fmt.Sprintf("%d_%s", os.Getpid(), uuid.NewString())
}

// Key возвращает ключ воркера
func (r *Resolver) Key() string {
	return r.key
}

// Dir возвращает корень области: <base>/<prefix><name>
func (r *Resolver) Dir(prefix string) string {
	return filepath.Join(r.base, prefix+r.name)
}

// ChildDir возвращает дочерний каталог воркера: <root>/<key>
func (r *Resolver) ChildDir(root string) string {
	return filepath.Join(root, r.key)
}

// NextAvailable добавляет ".1", пока путь занят: x.csv, x.csv.1, x.csv.1.1
func NextAvailable(p string) string {
	for {
		if _, err := os.Lstat(p); os.IsNotExist(err) {
			return p
		}
		p += ".1"
	}
}

// FormatPath приводит путь к виду с прямыми слэшами на любой ОС
func FormatPath(p string) string {
	return filepath.ToSlash(p)
}

// TableName возвращает имя таблицы по staged файлу:
// /a/stock.csv -> stock, stock.csv.zst -> stock
func TableName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	base = strings.TrimSuffix(base, ZstdSuffix)
	return strings.TrimSuffix(base, CSVSuffix)
}

// IsStagedFile проверяет, является ли имя файла staged CSV
func IsStagedFile(name string) bool {
	return strings.HasSuffix(strings.TrimSuffix(name, ZstdSuffix), CSVSuffix)
}

// LineTerminator возвращает разделитель строк платформы
func LineTerminator() string {
	return lineTerminator(runtime.GOOS)
}

func lineTerminator(goos string) string {
	if goos == "windows" {
		return "\r\n"
	}
	return "\n"
}

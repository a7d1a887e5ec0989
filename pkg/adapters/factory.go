package adapters

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Constructor возвращает новый, еще не подключенный адаптер
type Constructor func() Adapter

// Registry - адаптеры загрузчика по типу СУБД
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// typeAliases - написания типа из конфигов и DSN схем
var typeAliases = map[string]string{
	"postgresql": "postgres",
	"pgx":        "postgres",
	"mariadb":    "mysql",
	"sqlite3":    "sqlite",
}

// CanonicalType приводит имя СУБД к зарегистрированному типу
func CanonicalType(dbType string) string {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register добавляет адаптер. Повторная регистрация типа - ошибка программы.
func (r *Registry) Register(dbType string, c Constructor) {
	if c == nil {
		panic("adapters: Register constructor is nil for " + dbType)
	}
	dbType = CanonicalType(dbType)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.constructors[dbType]; dup {
		panic("adapters: Register called twice for " + dbType)
	}
	r.constructors[dbType] = c
}

// Types возвращает зарегистрированные типы по алфавиту
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.constructors))
}

// Open создает адаптер, открывает пул и проверяет доступность БД.
// При ошибке пул уже закрыт.
func (r *Registry) Open(ctx context.Context, cfg Config) (Adapter, error) {
	cfg.Type = CanonicalType(cfg.Type)

	r.mu.RLock()
	c, ok := r.constructors[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown database type: %s (available types: %v)", cfg.Type, r.Types())
	}

	adapter := c()
	if err := adapter.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	if err := adapter.Ping(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("%s is not reachable: %w", cfg.Type, err), adapter.Close(ctx))
	}
	return adapter, nil
}

var registry = NewRegistry()

// Register регистрирует адаптер в init() пакета диалекта:
//
//	func init() {
//	    adapters.Register(AdapterType, func() adapters.Adapter { return &Adapter{} })
//	}
func Register(dbType string, c Constructor) {
	registry.Register(dbType, c)
}

// Types возвращает типы, подключенные пустыми импортами
func Types() []string {
	return registry.Types()
}

// New открывает адаптер из общего реестра
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return registry.Open(ctx, cfg)
}

package retry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Причины попадания в DLQ
const (
	FailureAttemptsExhausted = "attempts_exhausted"
	FailureNonRetryable      = "non_retryable"
	FailureCancelled         = "cancelled"
)

// DLQEntry - запись о staged файле, который не удалось загрузить
type DLQEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Table       string    `json:"table"`
	File        string    `json:"file"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error"`
	FailureType string    `json:"failure_type"`

	// Quarantine - куда файл был сохранен перед удалением staging каталога
	Quarantine string `json:"quarantine,omitempty"`
}

// DLQ - файловая очередь неудачных загрузок. Сохраняется на диск при каждом изменении.
type DLQ struct {
	mu      sync.RWMutex
	config  DLQConfig
	entries []DLQEntry
	counter int
}

// NewDLQ создает очередь, подгружает существующий файл и удаляет
// записи старше RetentionPeriod
func NewDLQ(config DLQConfig) (*DLQ, error) {
	dlq := &DLQ{
		config:  config,
		entries: make([]DLQEntry, 0),
	}

	if _, err := os.Stat(config.FilePath); err == nil {
		if err := dlq.Load(); err != nil {
			return nil, fmt.Errorf("failed to load DLQ: %w", err)
		}
		if _, err := dlq.CleanupOld(); err != nil {
			return nil, err
		}
	}

	return dlq, nil
}

// Add добавляет запись и сохраняет файл
func (d *DLQ) Add(entry DLQEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counter++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.ID = fmt.Sprintf("dlq-%d-%d", entry.Timestamp.Unix(), d.counter)

	d.entries = append(d.entries, entry)
	if d.config.MaxSize > 0 && len(d.entries) > d.config.MaxSize {
		d.entries = d.entries[len(d.entries)-d.config.MaxSize:]
	}

	return d.saveUnsafe()
}

// Entries возвращает копию записей
func (d *DLQ) Entries() []DLQEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]DLQEntry, len(d.entries))
	copy(result, d.entries)
	return result
}

// Remove удаляет запись по ID. false - такой записи нет.
func (d *DLQ) Remove(id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, entry := range d.entries {
		if entry.ID == id {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			return true, d.saveUnsafe()
		}
	}
	return false, nil
}

// CleanupOld удаляет записи старше RetentionPeriod
func (d *DLQ) CleanupOld() (int, error) {
	if d.config.RetentionPeriod == 0 {
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-d.config.RetentionPeriod)
	kept := make([]DLQEntry, 0, len(d.entries))
	for _, entry := range d.entries {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		}
	}

	removed := len(d.entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	d.entries = kept
	return removed, d.saveUnsafe()
}

// Size возвращает количество записей
func (d *DLQ) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Save сохраняет очередь в файл
func (d *DLQ) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveUnsafe()
}

func (d *DLQ) saveUnsafe() error {
	data, err := json.MarshalIndent(d.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ: %w", err)
	}

	if dir := filepath.Dir(d.config.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create DLQ directory: %w", err)
		}
	}

	if err := os.WriteFile(d.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write DLQ file: %w", err)
	}
	return nil
}

// Load читает очередь из файла
func (d *DLQ) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read DLQ file: %w", err)
	}

	var entries []DLQEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal DLQ: %w", err)
	}

	d.entries = entries
	for _, entry := range entries {
		if i := strings.LastIndexByte(entry.ID, '-'); i >= 0 {
			if n, err := strconv.Atoi(entry.ID[i+1:]); err == nil && n > d.counter {
				d.counter = n
			}
		}
	}
	return nil
}

// Stats возвращает количество записей по причинам
func (d *DLQ) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, entry := range d.entries {
		stats[entry.FailureType]++
	}
	return stats
}

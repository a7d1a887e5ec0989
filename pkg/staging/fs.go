package staging

import (
	"fmt"
	"os"
)

// Mkdirs создает каталоги. Повторный вызов безопасен.
func (r *Resolver) Mkdirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create staging dir %s: %w", dir, err)
		}
	}
	return nil
}

// Clear удаляет каталоги целиком. Ошибки только логируются.
func (r *Resolver) Clear(dirs ...string) {
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			cleanupFailures.Inc()
			r.logger.Warn().Err(err).Str("dir", dir).Msg("failed to clear staging dir")
		}
	}
}

// Prune удаляет каталоги, только если они пусты.
// Каталог, в котором работает другой воркер, остается на месте.
func (r *Resolver) Prune(dirs ...string) {
	for _, dir := range dirs {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) && !isNotEmpty(dir) {
			r.logger.Debug().Err(err).Str("dir", dir).Msg("failed to prune staging dir")
		}
	}
}

func isNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

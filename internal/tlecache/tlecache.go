// Package tlecache сохраняет и читает TLE с диска, в файлах, именованных
// "{norad_id}_{YYYY-MM-DD}.tle" под настраиваемым каталогом (по умолчанию
// "tle/"). Это единственное, что сохраняется между перезапусками.
package tlecache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nstitov/orbitrak/internal/tle"
)

// ErrNotCached означает, что для данного NORAD ID и эпохи нет кэш-файла.
var ErrNotCached = errors.New("tlecache: no cached TLE for this NORAD ID/epoch")

const defaultDirPerm = 0o750

// Cache читает и пишет TLE-файлы в каталоге Dir.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// Option настраивает Cache.
type Option func(*Cache)

// WithLogger задаёт логгер; по умолчанию используется slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New создаёт Cache, сохраняющий файлы в dir (создаётся лениво при записи).
func New(dir string, opts ...Option) *Cache {
	c := &Cache{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name)
}

// Dir returns the directory this Cache reads and writes.
func (c *Cache) Dir() string { return c.dir }

// Load читает кэш-файл, именованный по NORAD ID и дате эпохи epoch.
func (c *Cache) Load(noradID int, epoch time.Time) (*tle.TLE, error) {
	return c.LoadNamed(tle.CacheFileName(noradID, epoch))
}

// LoadNamed читает кэш-файл по произвольному имени под Dir(), используемый
// setup_new_tle_by_file, которому клиент явно называет файл
// (tle_file_name/default_folder в теле запроса, см. SPEC_FULL.md §6.1).
func (c *Cache) LoadNamed(name string) (*tle.TLE, error) {
	data, err := os.ReadFile(c.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, name)
		}
		return nil, fmt.Errorf("tlecache: reading %s: %w", name, err)
	}

	parsed, err := tle.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("tlecache: parsing %s: %w", name, err)
	}

	return parsed, nil
}

// Store записывает t в кэш-файл, именованный по его NoradID/Epoch.
func (c *Cache) Store(t *tle.TLE) error {
	if err := os.MkdirAll(c.dir, defaultDirPerm); err != nil {
		return fmt.Errorf("tlecache: creating cache dir: %w", err)
	}

	name := tle.CacheFileName(t.NoradID, t.Epoch)
	if err := os.WriteFile(c.path(name), []byte(t.String()+"\n"), 0o600); err != nil {
		return fmt.Errorf("tlecache: writing %s: %w", name, err)
	}

	return nil
}

// Update заменяет кэш-файл для noradID атомарно: текущий файл (если есть)
// переименовывается с суффиксом "_old" перед записью нового, и удаляется
// только после успешной записи. Неудачная запись оставляет прежний файл
// нетронутым (переименовывается обратно).
//
// Это повторяет поведение источника (update_tle_by_spacetrack): избегать
// состояния, в котором отказ сети уничтожает последний известный TLE.
func (c *Cache) Update(newTLE *tle.TLE) error {
	if err := os.MkdirAll(c.dir, defaultDirPerm); err != nil {
		return fmt.Errorf("tlecache: creating cache dir: %w", err)
	}

	name := tle.CacheFileName(newTLE.NoradID, newTLE.Epoch)
	target := c.path(name)
	backup := target + "_old"

	hadPrevious := false
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, backup); err != nil {
			return fmt.Errorf("tlecache: backing up %s: %w", name, err)
		}
		hadPrevious = true
	}

	if err := os.WriteFile(target, []byte(newTLE.String()+"\n"), 0o600); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(backup, target); restoreErr != nil {
				c.logger.Warn("tlecache: failed to restore previous TLE after write error",
					"file", name, "error", restoreErr)
			}
		}
		return fmt.Errorf("tlecache: writing %s: %w", name, err)
	}

	if hadPrevious {
		if err := os.Remove(backup); err != nil {
			c.logger.Warn("tlecache: failed to remove backup file", "file", backup, "error", err)
		}
	}

	return nil
}

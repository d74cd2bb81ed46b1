package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"dispatchboard/internal/models"
)

// ErrFilterNotFound is returned when a named definition does not exist.
// Handlers map it to 404.
var ErrFilterNotFound = errors.New("filter not found")

// Registry is the durable store of named filter definitions plus the active
// pointer. It is backed by a JSON file whose shape is part of the external
// contract. All mutations are serialized through a mutex and persisted with
// an atomic temp-file rename, so readers observe either the pre- or
// post-state of a write, never a torn document.
type Registry struct {
	path string

	mu     sync.Mutex
	config *models.FilterConfig

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry loads the registry from path, bootstrapping the default
// definition when no backing file exists yet. A present-but-corrupt file is
// an error: filters must not be persisted over a document we cannot read.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// defaultConfig is the bootstrap document: one enabled AND-filter excluding
// terminal statuses.
func defaultConfig() *models.FilterConfig {
	return &models.FilterConfig{
		Filters: map[string]*models.FilterDefinition{
			models.DefaultFilterName: {
				Enabled: true,
				Logic:   "and",
				Conditions: []models.Condition{
					{Field: "status", Operator: "not_in", Value: []any{"已取消", "已关闭"}},
				},
			},
		},
		ActiveFilter: models.DefaultFilterName,
	}
}

func (r *Registry) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

func (r *Registry) loadLocked() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.config = defaultConfig()
		if err := r.saveLocked(); err != nil {
			return fmt.Errorf("failed to bootstrap filter config: %w", err)
		}
		log.Printf("📋 [FILTER] Bootstrapped default filter config at %s", r.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read filter config: %w", err)
	}

	var config models.FilterConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("corrupt filter config %s: %w", r.path, err)
	}
	if config.Filters == nil {
		config.Filters = map[string]*models.FilterDefinition{}
	}
	if config.ActiveFilter == "" {
		config.ActiveFilter = models.DefaultFilterName
	}
	r.config = &config
	return nil
}

// saveLocked persists the document atomically. Callers hold r.mu.
func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(r.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal filter config: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create filter config dir: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write filter config: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace filter config: %w", err)
	}
	return nil
}

// Get returns a copy of the named definition.
func (r *Registry) Get(name string) (*models.FilterDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.config.Filters[name]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

// Resolve picks the definition a query should use. An explicit unknown name
// is an error (the caller asked for something that does not exist); an
// absent active definition fails open with a nil definition.
func (r *Registry) Resolve(name string) (*models.FilterDefinition, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		def, ok := r.config.Filters[name]
		if !ok {
			return nil, name, fmt.Errorf("%w: %s", ErrFilterNotFound, name)
		}
		return def.Clone(), name, nil
	}

	active := r.config.ActiveFilter
	return r.config.Filters[active].Clone(), active, nil
}

// Add upserts a definition; a duplicate name is overwritten, last write
// wins.
func (r *Registry) Add(name string, conditions []models.Condition, enabled bool, logic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config.Filters[name] = &models.FilterDefinition{
		Enabled:    enabled,
		Conditions: conditions,
		Logic:      logic,
	}
	return r.saveLocked()
}

// Update partially updates a definition. Nil conditions, nil enabled, and
// empty logic leave the corresponding field unchanged.
func (r *Registry) Update(name string, conditions []models.Condition, enabled *bool, logic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.config.Filters[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFilterNotFound, name)
	}

	if conditions != nil {
		def.Conditions = conditions
	}
	if enabled != nil {
		def.Enabled = *enabled
	}
	if logic != "" {
		def.Logic = logic
	}
	return r.saveLocked()
}

// Remove deletes a definition; removing an unknown name is a no-op.
// Removing the active definition resets the active pointer to the default.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.config.Filters[name]; !ok {
		return nil
	}

	delete(r.config.Filters, name)
	if r.config.ActiveFilter == name {
		r.config.ActiveFilter = models.DefaultFilterName
	}
	return r.saveLocked()
}

// SetActive switches the active pointer to an existing definition.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.config.Filters[name]; !ok {
		return fmt.Errorf("%w: %s", ErrFilterNotFound, name)
	}
	r.config.ActiveFilter = name
	return r.saveLocked()
}

// ActiveFilter returns the name of the currently active definition.
func (r *Registry) ActiveFilter() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config.ActiveFilter
}

// Names lists all definition names, sorted for stable responses.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.config.Filters))
	for name := range r.config.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watch reloads the registry when the backing file changes on disk, so
// operators can edit the JSON document directly. The watcher ignores our
// own atomic writes' intermediate events gracefully: a reload of an
// unchanged document is harmless.
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filter config watcher: %w", err)
	}

	// Watch the directory: editors and atomic renames replace the inode.
	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.watcher = watcher
	r.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(r.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := r.load(); err != nil {
					log.Printf("⚠️ [FILTER] Reload after config change failed: %v", err)
					continue
				}
				log.Printf("🔄 [FILTER] Reloaded filter config from %s", r.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ [FILTER] Config watcher error: %v", err)
			case <-r.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the file watcher if one is running.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	return r.watcher.Close()
}

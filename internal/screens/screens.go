// Package screens discovers and loads 3270 screen template files and
// optionally hot-reloads its cache when they change on disk.
package screens

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/neo6/tn3270gw/internal/gwlog"
)

// candidateDirs returns the screens-directory search order, leftmost
// wins: an explicit override, NEO6_CONFIG_DIR joined with "screens",
// "./config/screens", then a workspace fallback alongside the running
// binary.
func candidateDirs(override string) []string {
	var dirs []string
	if override != "" {
		dirs = append(dirs, override)
	}
	if v := os.Getenv("NEO6_CONFIG_DIR"); v != "" {
		dirs = append(dirs, filepath.Join(v, "screens"))
	}
	dirs = append(dirs, filepath.Join(".", "config", "screens"))
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "config", "screens"))
	}
	return dirs
}

type cacheEntry struct {
	path    string
	modTime time.Time
	data    string
}

// Manager discovers, loads, and caches screen template files. It is
// safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	dirs  []string
	cache map[string]cacheEntry

	watcher     *fsnotify.Watcher
	watcherDone chan struct{}

	log *gwlog.Logger
}

// NewManager builds a Manager whose search order is candidateDirs
// rooted at override (pass "" to use the environment/cwd/workspace
// defaults only). logger may be nil.
func NewManager(override string, logger *gwlog.Logger) *Manager {
	if logger == nil {
		logger = gwlog.New()
	}
	return &Manager{
		dirs:  candidateDirs(override),
		cache: make(map[string]cacheEntry),
		log:   logger,
	}
}

// find locates the on-disk file for a screen name, preferring
// "<name>_markup.txt" over "<name>.txt" within each candidate
// directory before moving to the next directory.
func (m *Manager) find(name string) (string, error) {
	for _, dir := range m.dirs {
		for _, candidate := range []string{name + "_markup.txt", name + ".txt"} {
			path := filepath.Join(dir, candidate)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("screens: no template found for %q in %v", name, m.dirs)
}

// Load returns the raw template text for name, read-through a
// path+mtime cache: a file whose modification time has not changed
// since the last Load is served from memory.
func (m *Manager) Load(name string) (string, error) {
	path, err := m.find(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("screens: stat %s: %w", path, err)
	}

	m.mu.RLock()
	if e, ok := m.cache[name]; ok && e.path == path && e.modTime.Equal(info.ModTime()) {
		m.mu.RUnlock()
		return e.data, nil
	}
	m.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("screens: read %s: %w", path, err)
	}

	m.mu.Lock()
	m.cache[name] = cacheEntry{path: path, modTime: info.ModTime(), data: string(data)}
	m.mu.Unlock()
	return string(data), nil
}

// ReloadConfig drops the entire cache, forcing the next Load of every
// screen to re-read from disk. It is the admin socket's ReloadConfig
// command's hook into this package.
func (m *Manager) ReloadConfig() {
	m.mu.Lock()
	m.cache = make(map[string]cacheEntry)
	m.mu.Unlock()
	m.log.Infof("screens: cache cleared by ReloadConfig")
}

// Watch starts an fsnotify watch over every candidate directory that
// currently exists, debouncing rapid successive writes by 500ms before
// invalidating the affected cache entry. It returns immediately; the
// watch runs until Stop is called.
func (m *Manager) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("screens: create watcher: %w", err)
	}

	watched := 0
	for _, dir := range m.dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.Add(dir); err != nil {
			m.log.Warnf("screens: watch %s: %v", dir, err)
			continue
		}
		watched++
		m.log.Infof("screens: watching %s for template changes", dir)
	}
	if watched == 0 {
		w.Close()
		return nil
	}

	m.mu.Lock()
	m.watcher = w
	m.watcherDone = make(chan struct{})
	done := m.watcherDone
	m.mu.Unlock()

	go m.watchLoop(w, done)
	return nil
}

func (m *Manager) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	var debounce *time.Timer
	const debounceDuration = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := event.Name
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, func() {
				m.invalidatePath(name)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.log.Warnf("screens: watcher error: %v", err)

		case <-done:
			return
		}
	}
}

func (m *Manager) invalidatePath(path string) {
	base := filepath.Base(path)
	m.mu.Lock()
	for name, e := range m.cache {
		if filepath.Base(e.path) == base {
			delete(m.cache, name)
		}
	}
	m.mu.Unlock()
	m.log.Infof("screens: invalidated cache for %s", base)
}

// Stop tears down the filesystem watcher, if one was started.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher == nil {
		return
	}
	close(m.watcherDone)
	m.watcher.Close()
	m.watcher = nil
}

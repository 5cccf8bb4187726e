package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	path     string
	onChange func(oldCfg, newCfg *Config)

	mu      sync.Mutex
	current *Config
}

// NewWatcher creates a watcher for path starting from the already loaded cfg. onChange is
// invoked with the previous and the new configuration after every successful reload.
func NewWatcher(path string, cfg *Config, onChange func(oldCfg, newCfg *Config)) *Watcher {
	return &Watcher{path: path, current: cfg, onChange: onChange}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run watches the directory holding the config file until ctx is cancelled. The directory is
// watched rather than the file so atomic renames by editors are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fsw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	log.WithField("path", abs).Info("watching config file for changes")

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			w.Reload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}

// Reload re-reads the config file. A file that fails to parse or validate is ignored and the
// previous configuration stays in effect.
func (w *Watcher) Reload() {
	newCfg, err := LoadConfig(w.path)
	if err != nil {
		log.WithError(err).Error("config reload failed, keeping previous configuration")
		return
	}
	w.mu.Lock()
	oldCfg := w.current
	w.current = newCfg
	w.mu.Unlock()

	log.WithField("path", w.path).Info("configuration reloaded")
	if w.onChange != nil {
		w.onChange(oldCfg, newCfg)
	}
}

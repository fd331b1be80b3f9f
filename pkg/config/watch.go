package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/bastiangx/tripserve/internal/utils"
)

// ReloadDelay is how long the watcher waits for writes to settle before
// reloading. Editors often emit several events per save.
const ReloadDelay = 100 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	fw      *fsnotify.Watcher
	path    string
	done    chan struct{}
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Watch starts watching configPath. onChange receives every successfully
// reloaded config. The parent directory is watched so that atomic saves
// (write to temp, rename over) are seen too.
func Watch(configPath string, onChange func(*Config)) (*Watcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{fw: fw, path: absPath, done: make(chan struct{})}
	go w.loop(onChange)
	log.Debugf("Watching config file %s", absPath)
	return w, nil
}

func (w *Watcher) loop(onChange func(*Config)) {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(onChange)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warnf("Config watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// schedule restarts the reload timer so only the last event of a burst reloads.
func (w *Watcher) schedule(onChange func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(ReloadDelay, func() {
		if !utils.FileExists(w.path) {
			return
		}
		cfg, err := LoadConfig(w.path)
		if err != nil {
			log.Warnf("Failed to reload config %s: %v", w.path, err)
			return
		}
		w.mu.Lock()
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		log.Infof("Reloaded config from %s", w.path)
		onChange(cfg)
	})
}

// Stop ends watching. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	return w.fw.Close()
}

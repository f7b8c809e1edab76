package daemon

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/codeworm/internal/logfields"
)

// ConfigWatcher watches the config file and logs when it changes.
// Matching the SIGHUP behavior, a change is noted but not applied; the
// operator restarts when ready.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewConfigWatcher watches the directory containing path, since editors
// replace files rather than writing in place.
func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	if path == "" {
		return nil, errors.New("no config file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return &ConfigWatcher{path: path, watcher: watcher, done: make(chan struct{})}, nil
}

// Start begins watching in a goroutine.
func (w *ConfigWatcher) Start() {
	go func() {
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					slog.Info("config file changed, restart to apply",
						slog.String("path", w.path),
						slog.String("op", event.Op.String()))
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", logfields.Error(err))
			}
		}
	}()
}

// Stop ends watching.
func (w *ConfigWatcher) Stop() {
	close(w.done)
	_ = w.watcher.Close()
}

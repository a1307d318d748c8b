package vegetation

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher flags edits to a species definition file. The frame thread
// polls Changed between frames and reloads; the watch goroutine never
// touches the species table itself.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changed atomic.Bool
	done    chan struct{}
	log     *zap.Logger
}

// WatchSpecies starts watching path. The parent directory is watched so
// editors that replace the file by rename are still seen.
func WatchSpecies(path string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve species path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:    abs,
		watcher: fw,
		done:    make(chan struct{}),
		log:     log,
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.changed.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("species watch error", zap.Error(err))
		}
	}
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Changed reports whether the file changed since the last call.
func (w *Watcher) Changed() bool {
	return w.changed.Swap(false)
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

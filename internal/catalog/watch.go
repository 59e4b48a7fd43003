package catalog

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a lister's caches when the audio directory changes
type Watcher struct {
	lister  *Lister
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	closed  chan struct{}
	done    chan struct{}
}

// Watch starts watching the lister's directory. The directory must exist.
func (l *Lister) Watch() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", l.dir, err)
	}

	w := &Watcher{
		lister:  l,
		watcher: watcher,
		logger:  l.logger,
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	l.watching.Store(true)
	go w.watchLoop()

	l.logger.Info("Watching audio directory", slog.String("directory", l.dir))
	return w, nil
}

// Close stops the watch loop and releases the underlying watcher
func (w *Watcher) Close() error {
	w.lister.watching.Store(false)
	w.lister.Invalidate("")

	close(w.closed)
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.closed:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Audio directory watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent drops caches touched by a single filesystem event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !w.lister.Accepts(name) {
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.lister.Invalidate(name)
	w.logger.Debug("Audio directory changed",
		slog.String("file", name),
		slog.String("op", event.Op.String()),
	)
}

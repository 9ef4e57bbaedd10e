package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes a modules directory and invokes a callback when module
// files change. Used by watch mode to re-run update during development.
type Watcher struct {
	dir      string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange func()
	stopCh   chan struct{}

	// debounce window: editors fire several events per save
	delay time.Duration
}

// NewWatcher creates a watcher over a modules directory.
func NewWatcher(dir string, logger zerolog.Logger, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		dir:      dir,
		logger:   logger,
		watcher:  fsw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		delay:    250 * time.Millisecond,
	}

	// Watch the root and each module subdirectory; fsnotify is not
	// recursive.
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	subdirs, _ := filepath.Glob(filepath.Join(dir, "*"))
	for _, sub := range subdirs {
		fsw.Add(sub)
	}

	return w, nil
}

// Start begins watching. Events are debounced so one save triggers one
// callback.
func (w *Watcher) Start() {
	go w.loop()
	w.logger.Info().Str("dir", w.dir).Msg("watching modules directory for changes")
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}

			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("module file changed")

			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("module watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// relevant filters events down to module file writes.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".yaml", ".yml", ".xml":
		return true
	}
	return false
}

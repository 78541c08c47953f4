package refdata

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/f1-race-predictor/log"
)

const DefaultDebounce = 250 * time.Millisecond

type (
	WatcherOption func(*Watcher)
	// Watcher calls a handler when the watched file was changed.
	// Bursts of events are collapsed into a single call.
	Watcher struct {
		file     string
		debounce time.Duration
		onChange func(ctx context.Context)
		watcher  *fsnotify.Watcher
		l        *log.Logger
	}
)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

func WithWatcherLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) {
		w.l = l
	}
}

// NewWatcher starts watching the directory of file. Watching the directory
// instead of the file keeps track of editors replacing the file on save.
//
//nolint:whitespace // editor/linter issue
func NewWatcher(
	file string,
	onChange func(ctx context.Context),
	opts ...WatcherOption,
) (*Watcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	ret := &Watcher{
		file:     abs,
		debounce: DefaultDebounce,
		onChange: onChange,
		l:        log.Default().Named("refdata.watcher"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.watcher, err = fsnotify.NewWatcher(); err != nil {
		return nil, err
	}
	if err := ret.watcher.Add(filepath.Dir(abs)); err != nil {
		ret.watcher.Close()
		return nil, err
	}
	return ret, nil
}

// Run processes file events until ctx is done.
//
//nolint:cyclop // event loop
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			w.l.Info("context done, stopping watcher")
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.l.Info("watcher events channel closed, stopping watcher")
				return nil
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			w.l.Debug("change detected",
				log.String("file", event.Name), log.String("op", event.Op.String()))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Chmod) {

				timer.Reset(w.debounce)
			}
		case <-timer.C:
			w.l.Info("data file changed", log.String("file", w.file))
			w.onChange(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.l.Info("watcher errors channel closed, stopping watcher")
				return nil
			}
			w.l.Error("watcher error", log.ErrorField(err))
		}
	}
}

package confloader

import (
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is the quiet period after the last event before a
// change is reported. Editors often emit several events per save.
const DefaultSettle = 200 * time.Millisecond

// Watcher reports changes to configuration files. It watches the parent
// directory so editors that replace the file by rename are still seen,
// and reports each burst of events on a file once.
type Watcher struct {
	watcher *fsnotify.Watcher
	settle  time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	files     map[string]*time.Timer
	callbacks []func(string)

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithWatcherSettle overrides DefaultSettle.
func WithWatcherSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// NewWatcher creates a configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		settle:  DefaultSettle,
		logger:  slog.Default(),
		files:   make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "confwatch")
	return w, nil
}

// Watch registers a file. Its directory must exist.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)
	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	w.mu.Lock()
	if _, ok := w.files[path]; !ok {
		w.files[path] = nil
	}
	w.mu.Unlock()
	w.logger.Debug("watching configuration file", "file", path)
	return nil
}

// OnChange registers a callback that receives the changed file's path.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(filepath.Clean(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. Pending notifications are dropped. It is safe
// to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, t := range w.files {
			if t != nil {
				t.Stop()
			}
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

// schedule (re)arms the settle timer for a watched path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, watched := w.files[path]
	if !watched {
		return
	}
	if t != nil {
		t.Stop()
	}
	w.files[path] = time.AfterFunc(w.settle, func() { w.notify(path) })
}

func (w *Watcher) notify(path string) {
	select {
	case <-w.done:
		return
	default:
	}
	w.logger.Debug("configuration file changed", "file", path)

	w.mu.Lock()
	callbacks := slices.Clone(w.callbacks)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(path)
	}
}

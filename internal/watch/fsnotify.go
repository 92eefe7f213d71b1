package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/fsutil"
)

// DefaultIgnoredDirs are directory names never watched.
var DefaultIgnoredDirs = []string{"node_modules", ".git"}

// DefaultDebounce is how long a path must stay quiet before its event is
// delivered.
const DefaultDebounce = 100 * time.Millisecond

// FSWatcherOptions configures an FSWatcher.
type FSWatcherOptions struct {
	IgnoredDirs []string
	Debounce    time.Duration
}

// FSWatcher is a recursive Watcher built on fsnotify. Rapid successive
// writes to a path are coalesced into one event, and every add or change
// event carries fresh file stats.
type FSWatcher struct {
	root   string
	opts   FSWatcherOptions
	notify *fsnotify.Watcher

	events chan Event
	errs   chan error
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.Mutex
	files  map[string]struct{}
	dirs   map[string]struct{}
	timers map[string]*time.Timer
}

// NewFSWatcher watches root recursively. It returns once the initial tree
// has been enumerated, so WatchedFiles is complete.
func NewFSWatcher(root string, opts FSWatcherOptions) (*FSWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.IgnoredDirs == nil {
		opts.IgnoredDirs = DefaultIgnoredDirs
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &FSWatcher{
		root:   abs,
		opts:   opts,
		notify: notify,
		events: make(chan Event, 256),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
		files:  make(map[string]struct{}),
		dirs:   make(map[string]struct{}),
		timers: make(map[string]*time.Timer),
	}
	if _, err := w.addTree(abs); err != nil {
		notify.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Root implements Watcher.
func (w *FSWatcher) Root() string { return w.root }

// Events implements Watcher.
func (w *FSWatcher) Events() <-chan Event { return w.events }

// Errors implements Watcher.
func (w *FSWatcher) Errors() <-chan error { return w.errs }

// WatchedFiles implements Watcher.
func (w *FSWatcher) WatchedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close stops watching. Pending debounced events are dropped.
func (w *FSWatcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.notify.Close()
		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.mu.Unlock()
		w.wg.Wait()
	})
	return err
}

// addTree registers dir and everything below it, returning files found.
func (w *FSWatcher) addTree(dir string) ([]string, error) {
	var found []string
	err := fsutil.Walk(dir, w.opts.IgnoredDirs, func(path string, d fs.DirEntry) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		if d.IsDir() {
			if err := w.notify.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			w.dirs[path] = struct{}{}
			return nil
		}
		w.files[path] = struct{}{}
		found = append(found, path)
		return nil
	})
	return found, err
}

func (w *FSWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.notify.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *FSWatcher) handle(ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.removed(ev.Name)
	case ev.Has(fsnotify.Create):
		info, err := os.Lstat(ev.Name)
		if err != nil {
			w.schedule(ev.Name)
			return
		}
		if info.IsDir() {
			files, err := w.addTree(ev.Name)
			if err != nil {
				w.fail(err)
				return
			}
			for _, f := range files {
				w.schedule(f)
			}
			return
		}
		w.schedule(ev.Name)
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Chmod):
		w.schedule(ev.Name)
	}
}

// removed handles a path that disappeared, which may be a file or a
// watched directory.
func (w *FSWatcher) removed(path string) {
	w.mu.Lock()
	var gone []string
	if _, ok := w.dirs[path]; ok {
		prefix := path + string(os.PathSeparator)
		for d := range w.dirs {
			if d == path || strings.HasPrefix(d, prefix) {
				delete(w.dirs, d)
			}
		}
		for f := range w.files {
			if strings.HasPrefix(f, prefix) {
				gone = append(gone, f)
			}
		}
	} else {
		gone = append(gone, path)
	}
	w.mu.Unlock()

	sort.Strings(gone)
	for _, f := range gone {
		w.schedule(f)
	}
}

// schedule (re)starts the debounce timer of path.
func (w *FSWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() { w.flush(path) })
}

// flush stats path once it has settled and emits the resulting event.
func (w *FSWatcher) flush(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	_, known := w.files[path]
	w.mu.Unlock()

	info, err := os.Stat(path)
	var ev Event
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !known {
			return
		}
		w.mu.Lock()
		delete(w.files, path)
		w.mu.Unlock()
		ev = Event{Kind: EventRemove, Path: path}
	case err != nil:
		w.fail(fmt.Errorf("stat %s: %w", path, err))
		return
	case info.IsDir():
		return
	default:
		kind := EventChange
		if !known {
			kind = EventAdd
			w.mu.Lock()
			w.files[path] = struct{}{}
			w.mu.Unlock()
		}
		ev = Event{Kind: kind, Path: path, Stat: changes.StatOf(info)}
	}

	select {
	case w.events <- ev:
	case <-w.stop:
	}
}

func (w *FSWatcher) fail(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

func (w *FSWatcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return true
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		for _, ignored := range w.opts.IgnoredDirs {
			if part == ignored {
				return true
			}
		}
	}
	return false
}

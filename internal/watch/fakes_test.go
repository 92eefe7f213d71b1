package watch

import (
	"context"
	"strings"
	"sync"
)

type fakeWatcher struct {
	root   string
	files  []string
	events chan Event
	errs   chan error
}

func newFakeWatcher(root string, files ...string) *fakeWatcher {
	return &fakeWatcher{
		root:   root,
		files:  files,
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
	}
}

func (w *fakeWatcher) Root() string           { return w.root }
func (w *fakeWatcher) WatchedFiles() []string { return w.files }
func (w *fakeWatcher) Events() <-chan Event   { return w.events }
func (w *fakeWatcher) Errors() <-chan error   { return w.errs }
func (w *fakeWatcher) Close() error           { return nil }
func (w *fakeWatcher) emit(ev Event)          { w.events <- ev }

// prefixOracle ignores every path under one of its prefixes.
type prefixOracle struct {
	prefixes []string

	mu    sync.Mutex
	calls [][]string
}

func (o *prefixOracle) CheckIgnore(_ context.Context, paths []string) (map[string]struct{}, error) {
	o.mu.Lock()
	o.calls = append(o.calls, append([]string(nil), paths...))
	o.mu.Unlock()

	out := make(map[string]struct{})
	for _, p := range paths {
		for _, prefix := range o.prefixes {
			if strings.HasPrefix(p, prefix) {
				out[p] = struct{}{}
			}
		}
	}
	return out, nil
}

func (o *prefixOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

package changes

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// Map is the path -> FileState mapping shared between the change classifier
// and task runners. It is safe for concurrent use.
type Map struct {
	mu    sync.RWMutex
	files map[string]FileState
	// mirrorSlash also stores every entry under its forward-slash form.
	mirrorSlash bool
}

// NewMap returns an empty map. On platforms whose separator is not '/',
// writes are mirrored under the forward-slash path.
func NewMap() *Map {
	return &Map{
		files:       make(map[string]FileState),
		mirrorSlash: os.PathSeparator != '/',
	}
}

// Get returns the state recorded for path.
func (m *Map) Get(path string) (FileState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.files[path]
	return state, ok
}

// Set records the state of path.
func (m *Map) Set(path string, state FileState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = state
	if m.mirrorSlash {
		if slashed := strings.ReplaceAll(path, `\`, "/"); slashed != path {
			m.files[slashed] = state
		}
	}
}

// Len returns the number of recorded paths, mirrored entries included.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Clear removes every entry. It is only called once a build has fully
// settled.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.files)
}

// Snapshot returns a copy of the current entries.
func (m *Map) Snapshot() map[string]FileState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]FileState, len(m.files))
	for path, state := range m.files {
		out[path] = state
	}
	return out
}

// Changed returns, sorted, the paths whose state differs from the startup
// snapshot.
func (m *Map) Changed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paths []string
	for path, state := range m.files {
		if !state.IsInitial() {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

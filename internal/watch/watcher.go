package watch

import "github.com/vk/phaserun/internal/changes"

// EventKind is the kind of a filesystem event.
type EventKind int

const (
	EventAdd EventKind = iota
	EventChange
	EventRemove
)

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	case EventRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a debounced change to a single file.
type Event struct {
	Kind EventKind
	// Path is absolute.
	Path string
	// Stat is nil for EventRemove.
	Stat *changes.Stat
}

// Watcher observes a directory tree.
type Watcher interface {
	// Root returns the absolute watched directory.
	Root() string
	// WatchedFiles enumerates the absolute paths of files currently watched.
	WatchedFiles() []string
	Events() <-chan Event
	// Errors delivers fatal watcher errors.
	Errors() <-chan error
	Close() error
}

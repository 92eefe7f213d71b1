// Package changes tracks the observed state of every watched file during a
// watch iteration. The classifier writes to the shared Map while task
// runners read it to decide what to reprocess.
package changes

const (
	// InitialVersion marks a file recorded by the startup snapshot. It carries
	// no change information of its own.
	InitialVersion = "INITIAL_CHANGE_STATE"
	// RemovedVersion marks a file that no longer exists.
	RemovedVersion = "REMOVED_CHANGE_STATE"
)

// FileState is the last observed state of a single file.
type FileState struct {
	// Version is an opaque fingerprint, InitialVersion or RemovedVersion.
	Version string
	// IsSourceFile is true when the file is neither ignored nor forbidden.
	IsSourceFile bool
}

// IsInitial reports whether the state comes from the startup snapshot.
func (s FileState) IsInitial() bool {
	return s.Version == InitialVersion
}

// IsRemoved reports whether the file was deleted.
func (s FileState) IsRemoved() bool {
	return s.Version == RemovedVersion
}

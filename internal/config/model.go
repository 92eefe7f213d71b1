package config

// Model is the unified representation of a build configuration.
type Model struct {
	Phases []*Phase
	// Sources lists the files the model was read from.
	Sources []string
}

// Phase is the format-agnostic representation of a `phase` block.
type Phase struct {
	Name        string
	Description string
	// DependsOn lists phase names that must run first.
	DependsOn []string
	// CleanFiles are build-folder relative paths removed by --clean.
	CleanFiles []string
	Tasks      []*Task
}

// Task is the format-agnostic representation of a `task` block.
type Task struct {
	Name string
	// Plugin names the registered task plugin that executes this task.
	Plugin string
	// DependsOn references tasks either by bare name (same phase) or as
	// "<phase>.<task>".
	DependsOn []string
	Options   map[string]string
}

// Merge appends the phases of other to m.
func (m *Model) Merge(other *Model) {
	m.Phases = append(m.Phases, other.Phases...)
	m.Sources = append(m.Sources, other.Sources...)
}

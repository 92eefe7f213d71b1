// Package dag builds the operation graph of a build attempt from the
// selected phases.
//
// The graph is bracketed by two synthetic operations, "lifecycle.start" and
// "lifecycle.finish". Phase operations are keyed by the phase name and task
// operations by "<phase>.<task>". Keys are deduplicated while building, so an
// operation referenced from many dependents is created once. A fresh graph is
// built for every attempt; nothing is shared between graphs except the
// runners' parameters.
//
// Only selected phases are scheduled. A task that declares a dependency on a
// task in an unselected phase runs without that edge: the dependency task is
// not added to the graph, and Build logs SkippedPhasesWarning once.
// Plugins must not assume such a dependency has run in
// the same attempt.
package dag

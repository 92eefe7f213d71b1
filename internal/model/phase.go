// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import "path/filepath"

// ToolFolderName is the per-project folder holding caches and metrics.
const ToolFolderName = ".phaserun"

// Phase is a resolved build phase.
type Phase struct {
	Name        string
	Description string
	Tasks       []*Task
	// DependencyPhases must finish before this phase's tasks may start.
	DependencyPhases []*Phase
	// ConsumingPhases are the phases that list this phase as a dependency.
	ConsumingPhases []*Phase
	// CleanFiles are build-folder relative paths deleted by a clean run.
	CleanFiles []string
}

// Task is a resolved task of a phase.
type Task struct {
	Name            string
	Phase           *Phase
	DependencyTasks []*Task
	Plugin          string
	Options         map[string]string
}

// Key returns the composite "<phase>.<task>" identifier of the task.
func (t *Task) Key() string {
	return t.Phase.Name + "." + t.Name
}

// CacheFolder returns the cache folder of phase inside buildFolder.
func CacheFolder(buildFolder, phase string) string {
	return filepath.Join(buildFolder, ToolFolderName, "cache", phase)
}

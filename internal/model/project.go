// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/phaserun/internal/config"
)

// Project is the resolved set of phases of one build folder.
type Project struct {
	Phases []*Phase
	byName map[string]*Phase
}

// Phase looks up a phase by name.
func (p *Project) Phase(name string) (*Phase, bool) {
	phase, ok := p.byName[name]
	return phase, ok
}

// Resolve validates the configuration model and links every name reference.
func Resolve(cfg *config.Model) (*Project, error) {
	project := &Project{byName: make(map[string]*Phase)}

	for _, pc := range cfg.Phases {
		if err := validateName("phase", pc.Name); err != nil {
			return nil, err
		}
		if _, exists := project.byName[pc.Name]; exists {
			return nil, fmt.Errorf("phase '%s' is declared more than once", pc.Name)
		}
		phase := &Phase{
			Name:        pc.Name,
			Description: pc.Description,
			CleanFiles:  append([]string(nil), pc.CleanFiles...),
		}
		seenTasks := make(map[string]struct{})
		for _, tc := range pc.Tasks {
			if err := validateName("task", tc.Name); err != nil {
				return nil, fmt.Errorf("phase '%s': %w", pc.Name, err)
			}
			if _, exists := seenTasks[tc.Name]; exists {
				return nil, fmt.Errorf("task '%s.%s' is declared more than once", pc.Name, tc.Name)
			}
			if tc.Plugin == "" {
				return nil, fmt.Errorf("task '%s.%s' does not name a plugin", pc.Name, tc.Name)
			}
			seenTasks[tc.Name] = struct{}{}
			phase.Tasks = append(phase.Tasks, &Task{
				Name:    tc.Name,
				Phase:   phase,
				Plugin:  tc.Plugin,
				Options: copyOptions(tc.Options),
			})
		}
		project.Phases = append(project.Phases, phase)
		project.byName[phase.Name] = phase
	}

	for i, pc := range cfg.Phases {
		phase := project.Phases[i]
		for _, depName := range pc.DependsOn {
			dep, ok := project.byName[depName]
			if !ok {
				return nil, fmt.Errorf("phase '%s' depends on unknown phase '%s'", phase.Name, depName)
			}
			if dep == phase {
				return nil, fmt.Errorf("phase '%s' cannot depend on itself", phase.Name)
			}
			phase.DependencyPhases = append(phase.DependencyPhases, dep)
			dep.ConsumingPhases = append(dep.ConsumingPhases, phase)
		}
		for j, tc := range pc.Tasks {
			task := phase.Tasks[j]
			for _, ref := range tc.DependsOn {
				dep, err := project.lookupTask(phase, ref)
				if err != nil {
					return nil, fmt.Errorf("task '%s': %w", task.Key(), err)
				}
				task.DependencyTasks = append(task.DependencyTasks, dep)
			}
		}
	}

	return project, nil
}

// lookupTask resolves "task" relative to phase, or "<phase>.<task>".
func (p *Project) lookupTask(phase *Phase, ref string) (*Task, error) {
	phaseName, taskName := phase.Name, ref
	if before, after, found := strings.Cut(ref, "."); found {
		phaseName, taskName = before, after
	}
	owner, ok := p.byName[phaseName]
	if !ok {
		return nil, fmt.Errorf("dependency '%s' refers to unknown phase '%s'", ref, phaseName)
	}
	for _, t := range owner.Tasks {
		if t.Name == taskName {
			return t, nil
		}
	}
	return nil, fmt.Errorf("dependency '%s' refers to unknown task '%s' of phase '%s'", ref, taskName, phaseName)
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("%s name '%s' cannot contain '.'", kind, name)
	}
	return nil
}

func copyOptions(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ErrUnknownPhase is returned when a selection names a phase that does not exist.
var ErrUnknownPhase = errors.New("unknown phase")

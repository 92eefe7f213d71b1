// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import "fmt"

// Selection is the set of phases chosen for one invocation, kept in
// declaration order.
type Selection struct {
	Phases []*Phase
	set    map[*Phase]struct{}
}

// Has reports whether phase is selected.
func (s *Selection) Has(phase *Phase) bool {
	_, ok := s.set[phase]
	return ok
}

// Select chooses the phases to run. Phases named in to are selected along
// with every phase they transitively depend on; phases named in only are
// selected alone. With neither, every phase is selected.
func (p *Project) Select(to, only []string) (*Selection, error) {
	chosen := make(map[*Phase]struct{})

	if len(to) == 0 && len(only) == 0 {
		for _, phase := range p.Phases {
			chosen[phase] = struct{}{}
		}
	}

	var addWithDeps func(phase *Phase)
	addWithDeps = func(phase *Phase) {
		if _, ok := chosen[phase]; ok {
			return
		}
		chosen[phase] = struct{}{}
		for _, dep := range phase.DependencyPhases {
			addWithDeps(dep)
		}
	}

	for _, name := range to {
		phase, ok := p.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownPhase, name)
		}
		addWithDeps(phase)
	}
	for _, name := range only {
		phase, ok := p.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownPhase, name)
		}
		chosen[phase] = struct{}{}
	}

	sel := &Selection{set: chosen}
	for _, phase := range p.Phases {
		if _, ok := chosen[phase]; ok {
			sel.Phases = append(sel.Phases, phase)
		}
	}
	return sel, nil
}

package operations

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Describe writes ops to w in a deterministic topological order, one line
// per operation: "name (after: dep1, dep2)". Ties are broken by name.
func Describe(w io.Writer, ops []*Operation) error {
	if err := validateGraph(ops); err != nil {
		return err
	}

	remaining := make(map[*Operation]int, len(ops))
	dependents := make(map[*Operation][]*Operation, len(ops))
	var ready []*Operation
	for _, op := range ops {
		remaining[op] = len(op.dependencies)
		if len(op.dependencies) == 0 {
			ready = append(ready, op)
		}
		for dep := range op.dependencies {
			dependents[dep] = append(dependents[dep], op)
		}
	}

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].Name < ready[j].Name })
		op := ready[0]
		ready = ready[1:]

		line := op.Name
		if deps := op.Dependencies(); len(deps) > 0 {
			names := make([]string, len(deps))
			for i, dep := range deps {
				names[i] = dep.Name
			}
			line += " (after: " + strings.Join(names, ", ") + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}

		for _, dependent := range dependents[op] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return nil
}

package operations

import "fmt"

// validateGraph checks that every dependency belongs to ops and that the
// dependency relation is acyclic.
func validateGraph(ops []*Operation) error {
	members := make(map[*Operation]struct{}, len(ops))
	for _, op := range ops {
		members[op] = struct{}{}
	}
	for _, op := range ops {
		for dep := range op.dependencies {
			if _, ok := members[dep]; !ok {
				return fmt.Errorf("operation '%s' depends on '%s', which is not part of the graph", op.Name, dep.Name)
			}
		}
	}

	// Classic depth-first search. permanent holds operations fully explored;
	// the stack holds the current path so a back edge can report the cycle.
	permanent := make(map[*Operation]bool)
	onStack := make(map[*Operation]int)
	var stack []*Operation

	var visit func(op *Operation) error
	visit = func(op *Operation) error {
		if permanent[op] {
			return nil
		}
		if idx, ok := onStack[op]; ok {
			cycle := make([]string, 0, len(stack)-idx+1)
			for _, member := range stack[idx:] {
				cycle = append(cycle, member.Name)
			}
			cycle = append(cycle, op.Name)
			return &CycleError{Members: cycle}
		}

		onStack[op] = len(stack)
		stack = append(stack, op)
		for _, dep := range op.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, op)
		permanent[op] = true
		return nil
	}

	for _, op := range ops {
		if err := visit(op); err != nil {
			return err
		}
	}
	return nil
}

package blueprint

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of §3: toolName references are a
// subset of knownTools, every componentType is registered, and dependsOn
// edges form a DAG. It does not look at sourcePrompt; EnforceSourcePrompt
// handles that invariant.
func Validate(b Blueprint, knownTools map[string]bool) error {
	if err := validateToolNames(b, knownTools); err != nil {
		return err
	}
	if err := validateComponentTypes(b); err != nil {
		return err
	}
	if err := validateDAG(b); err != nil {
		return err
	}
	return nil
}

func validateToolNames(b Blueprint, knownTools map[string]bool) error {
	for _, binding := range b.DataContract.Bindings {
		if binding.SourceType == SourceTool && binding.ToolName != "" && !knownTools[binding.ToolName] {
			return fmt.Errorf("blueprint: binding %q references unknown tool %q", binding.ID, binding.ToolName)
		}
	}
	for _, node := range b.ComputeGraph.Nodes {
		if node.Type == ComputeTool && node.ToolName != "" && !knownTools[node.ToolName] {
			return fmt.Errorf("blueprint: compute node %q references unknown tool %q", node.ID, node.ToolName)
		}
	}
	return nil
}

func validateComponentTypes(b Blueprint) error {
	for _, slot := range b.AllSlots() {
		if !ComponentRegistry[slot.ComponentType] {
			return fmt.Errorf("blueprint: slot %q has unregistered componentType %q", slot.ID, slot.ComponentType)
		}
	}
	return nil
}

// validateDAG rejects cyclic dependsOn edges across both bindings and
// compute nodes (each graph is validated independently: a binding can only
// depend on another binding, a compute node only on another compute node,
// per the data model).
func validateDAG(b Blueprint) error {
	bindingEdges := make(map[string][]string, len(b.DataContract.Bindings))
	for _, binding := range b.DataContract.Bindings {
		bindingEdges[binding.ID] = binding.DependsOn
	}
	if cyc := findCycle(bindingEdges); cyc != "" {
		return fmt.Errorf("blueprint: cyclic dependsOn among bindings: %s", cyc)
	}

	nodeEdges := make(map[string][]string, len(b.ComputeGraph.Nodes))
	for _, node := range b.ComputeGraph.Nodes {
		nodeEdges[node.ID] = node.DependsOn
	}
	if cyc := findCycle(nodeEdges); cyc != "" {
		return fmt.Errorf("blueprint: cyclic dependsOn among compute nodes: %s", cyc)
	}
	return nil
}

const (
	colorWhite = 0
	colorGray  = 1
	colorBlack = 2
)

// findCycle runs a DFS cycle detection over an adjacency map and returns a
// human-readable description of the first cycle found, or "" if the graph is
// acyclic.
func findCycle(edges map[string][]string) string {
	color := make(map[string]int, len(edges))
	var path []string
	var visit func(node string) string
	visit = func(node string) string {
		color[node] = colorGray
		path = append(path, node)
		for _, dep := range edges[node] {
			switch color[dep] {
			case colorGray:
				return strings.Join(append(path, dep), " -> ")
			case colorWhite:
				if cyc := visit(dep); cyc != "" {
					return cyc
				}
			}
		}
		path = path[:len(path)-1]
		color[node] = colorBlack
		return ""
	}
	for node := range edges {
		if color[node] == colorWhite {
			if cyc := visit(node); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}

// TopoSort returns a valid execution order for the given adjacency map
// (node -> its dependsOn list), or an error if the graph is cyclic.
func TopoSort(edges map[string][]string) ([]string, error) {
	if cyc := findCycle(edges); cyc != "" {
		return nil, fmt.Errorf("blueprint: cyclic dependsOn: %s", cyc)
	}
	visited := make(map[string]bool, len(edges))
	var order []string
	var visit func(string)
	visit = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, dep := range edges[node] {
			visit(dep)
		}
		order = append(order, node)
	}
	// Iterate in a stable order so the topological sort is deterministic for
	// equal inputs, matching the "idempotence" flavor expected by §8 tests.
	keys := make([]string, 0, len(edges))
	for node := range edges {
		keys = append(keys, node)
	}
	sortStrings(keys)
	for _, node := range keys {
		visit(node)
	}
	return order, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// EnforceSourcePrompt unconditionally overwrites b.SourcePrompt with
// userPrompt, per the Planner's invariant-enforcement contract. It returns
// true if the Planner's output had diverged (callers log this as a warning).
func EnforceSourcePrompt(b *Blueprint, userPrompt string) (diverged bool) {
	diverged = b.SourcePrompt != userPrompt && !strings.HasPrefix(b.SourcePrompt, userPrompt)
	b.SourcePrompt = userPrompt
	return diverged
}

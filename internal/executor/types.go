// Package executor implements the three-phase engine of §4.6: resolves
// Blueprint reference paths, orchestrates the Tool Registry and an LLM
// client across Data -> Compute -> Compose, and emits the SSE vocabulary
// defined by internal/sse. Grounded on the teacher's
// runtime/agent/runtime/runtime.go orchestration-loop shape (drive a
// sequence of phases, emit events, terminate on a single terminal
// signal), adapted from a tool-call loop to a fixed three-phase pipeline.
package executor

import (
	"context"

	"github.com/insight-edu/pageflow/internal/tools"
)

// Page is the deterministic render tree produced by Phase C, carried as
// COMPLETE's result.page.
type Page struct {
	Layout string    `json:"layout"`
	Tabs   []PageTab `json:"tabs"`
}

// PageTab groups blocks under a label.
type PageTab struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Blocks []PageBlock `json:"blocks"`
}

// PageBlock is one rendered slot.
type PageBlock struct {
	ID            string         `json:"id"`
	ComponentType string         `json:"componentType"`
	Props         map[string]any `json:"props"`
}

// ToolInvoker is the narrow interface the Executor needs from the Tool
// Registry. Kept separate from *tools.Registry so tests substitute a fake
// without constructing a real registry.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (tools.Result, error)
}

// errorMessage extracts a tool-level sentinel error message, or "" if r is
// not an error result.
func errorMessage(r tools.Result) string {
	if v, ok := r["error"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Package patch implements the Patch Engine of §4.7: narrow, in-place
// mutations to an already-rendered Page, without re-running the Planner or
// the Executor's Data/Compute phases. Grounded on internal/executor's
// three-phase engine shape, narrowed to a single atomic instruction list.
package patch

import "github.com/insight-edu/pageflow/internal/executor"

// InstructionType is the closed set of patch instruction kinds.
type InstructionType string

const (
	// InstructionUpdateProps merges Props into an existing block, patch_layout scope.
	InstructionUpdateProps InstructionType = "update_props"
	// InstructionReorder rewrites a tab's block order, patch_layout scope.
	InstructionReorder InstructionType = "reorder"
	// InstructionAddBlock appends a new block to a tab, patch_layout scope.
	InstructionAddBlock InstructionType = "add_block"
	// InstructionRemoveBlock deletes a block by ID, patch_layout scope.
	InstructionRemoveBlock InstructionType = "remove_block"
	// InstructionRecompose reruns per-block AI generation, patch_compose scope.
	InstructionRecompose InstructionType = "recompose"
)

// Instruction is a single patch operation. Only the fields relevant to Type
// are populated; the rest are left zero, following the flattened
// discriminated-union shape internal/sse.Event already uses for the same
// reason (instructions are also a wire format, not an internal-only type).
type Instruction struct {
	Type InstructionType `json:"type"`

	// TabID locates the tab for reorder/add_block.
	TabID string `json:"tabId,omitempty"`
	// BlockID identifies the target block for update_props/remove_block/recompose.
	BlockID string `json:"blockId,omitempty"`
	// Props is the partial prop set merged into the block for update_props.
	Props map[string]any `json:"props,omitempty"`
	// Order is the new block-ID order within TabID for reorder.
	Order []string `json:"order,omitempty"`
	// Block is the full block to insert for add_block.
	Block *executor.PageBlock `json:"block,omitempty"`
	// ComponentType and PromptTemplate drive a recompose instruction's AI
	// generation; the Patch Engine has no Blueprint to look these up from
	// (§4.7's input is only currentPage + patchPlan + context), so the
	// caller (the Gateway, which does hold the Blueprint) supplies them.
	ComponentType  string `json:"componentType,omitempty"`
	PromptTemplate string `json:"promptTemplate,omitempty"`
}

// Scope is the closed set of patch plans the Patch Engine accepts.
// full_rebuild is deliberately not a member: per §4.7 it is out of scope
// for this package and the Gateway routes it back to Planner -> Executor
// directly, never constructing a Plan for it.
type Scope string

const (
	ScopeLayout  Scope = "patch_layout"
	ScopeCompose Scope = "patch_compose"
)

// Plan is the Patch Engine's input alongside the current Page and context.
type Plan struct {
	Scope        Scope         `json:"scope"`
	Instructions []Instruction `json:"instructions"`
}

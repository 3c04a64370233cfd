// Package router implements the Conversation Gateway's LLM-backed intent
// classifier of §4.4: two prompts (initial mode, follow-up mode), a
// deterministic confidence ladder applied after the LLM call, and the
// short-answer-after-clarify reclassification rule.
package router

// IntentType is the closed set of RouterResult intents. The first four are
// initial-mode (no Blueprint attached to the request); the last three are
// follow-up-mode (a Blueprint is attached).
type IntentType string

const (
	IntentChatSmalltalk IntentType = "chat_smalltalk"
	IntentChatQA        IntentType = "chat_qa"
	IntentBuildWorkflow IntentType = "build_workflow"
	IntentClarify       IntentType = "clarify"
	IntentRefine        IntentType = "refine"
	IntentRebuild       IntentType = "rebuild"
	IntentChat          IntentType = "chat"
)

// initialModeIntents is the closed set a RouterResult may take when no
// Blueprint is attached to the request.
var initialModeIntents = map[IntentType]bool{
	IntentChatSmalltalk: true,
	IntentChatQA:        true,
	IntentBuildWorkflow: true,
	IntentClarify:       true,
}

// followUpModeIntents is the closed set a RouterResult may take when a
// Blueprint is attached to the request.
var followUpModeIntents = map[IntentType]bool{
	IntentChat:    true,
	IntentRefine:  true,
	IntentRebuild: true,
	IntentClarify: true,
}

// RouteHint is a closed set of disambiguation hints the LLM may attach to a
// clarify result, naming what information is missing.
type RouteHint string

const (
	RouteHintNeedClassID    RouteHint = "needClassId"
	RouteHintNeedTimeRange  RouteHint = "needTimeRange"
	RouteHintNeedAssignment RouteHint = "needAssignment"
	RouteHintNeedSubject    RouteHint = "needSubject"
)

// RefineScope is the closed set of follow-up refine scopes, mirrored by the
// Patch Engine's PatchPlan.Scope.
type RefineScope string

const (
	RefineScopePatchLayout  RefineScope = "patch_layout"
	RefineScopePatchCompose RefineScope = "patch_compose"
	RefineScopeFullRebuild  RefineScope = "full_rebuild"
)

// Path is the derived downstream executor the Gateway dispatches to, one per
// post-ladder RouterResult.
type Path string

const (
	PathChat      Path = "chat"
	PathBlueprint Path = "blueprint"
	PathAgent     Path = "agent"
	PathSkill     Path = "skill"
)

// Result is the RouterResult of §3: the LLM's raw classification plus
// whatever the confidence ladder rewrote it to.
type Result struct {
	Intent             IntentType     `json:"intent"`
	Confidence         float64        `json:"confidence"`
	ClarifyingQuestion string         `json:"clarifyingQuestion,omitempty"`
	RouteHint          RouteHint      `json:"routeHint,omitempty"`
	RefineScope        RefineScope    `json:"refineScope,omitempty"`
	ExtractedParams    map[string]any `json:"extractedParams,omitempty"`
	// Path is derived after the ladder runs; never set by the LLM.
	Path Path `json:"-"`
	// PreLadderIntent preserves the LLM's original intent when
	// ApplyLadderWithThresholds downgrades an actionable intent to clarify,
	// so a later short parameter reply can be reclassified back to what was
	// actually being built (ReclassifyAfterClarify) instead of getting stuck
	// re-clarifying "clarify" forever. Never set by the LLM.
	PreLadderIntent IntentType `json:"-"`
}

// actionableIntents is the set of intents the confidence ladder downgrades
// when the LLM's confidence falls below a threshold. chat_qa and the three
// existing chat/clarify intents are excluded: they already represent a
// non-committal action and pass through unchanged per §4.4.
var actionableIntents = map[IntentType]bool{
	IntentBuildWorkflow: true,
	IntentRefine:        true,
	IntentRebuild:       true,
}

// pathForIntent derives the Gateway's downstream dispatch path from a
// post-ladder intent.
func pathForIntent(intent IntentType) Path {
	switch intent {
	case IntentBuildWorkflow, IntentRefine, IntentRebuild:
		return PathBlueprint
	case IntentChatSmalltalk, IntentChatQA, IntentChat:
		return PathChat
	case IntentClarify:
		return PathAgent
	default:
		return PathAgent
	}
}

// Package gateway implements the Conversation Gateway of §4.8: the single
// entry point that loads/creates a Session, classifies the turn via the
// Router, resolves entities for build requests, dispatches to the Planner,
// the Chat LLM, or the Patch Agent, and persists the Session. Grounded on
// the teacher's runtime/agent/runtime/runtime.go top-level dispatch loop,
// adapted from a single tool-call loop to a fixed intent-branching dispatch.
package gateway

import (
	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/executor"
	"github.com/insight-edu/pageflow/internal/patch"
	"github.com/insight-edu/pageflow/internal/resolver"
)

// Mode is whether a request carries an open Blueprint (follow-up) or not
// (entry), per §3's ConversationResponse.mode.
type Mode string

const (
	ModeEntry    Mode = "entry"
	ModeFollowup Mode = "followup"
)

// Action is the closed set of dispatch outcomes a ConversationResponse may
// carry.
type Action string

const (
	ActionChat    Action = "chat"
	ActionBuild   Action = "build"
	ActionClarify Action = "clarify"
	ActionRefine  Action = "refine"
	ActionRebuild Action = "rebuild"
)

// ChatKind distinguishes the three Chat LLM flavors the Gateway may invoke.
type ChatKind string

const (
	ChatKindSmalltalk ChatKind = "smalltalk"
	ChatKindQA        ChatKind = "qa"
	ChatKindPage      ChatKind = "page"
)

// PageContext carries the client's locally-held render state for follow-up
// turns that need it (refine/patch). The Gateway itself owns no persistent
// page storage (§6: "Persistent state: None owned by the core"), so a
// patch_compose recompose or a patch agent call can only see cached data/
// compute scopes if the client resends them.
type PageContext struct {
	Page           executor.Page  `json:"page"`
	DataContext    map[string]any `json:"dataContext,omitempty"`
	ComputeResults map[string]any `json:"computeResults,omitempty"`
}

// ConversationRequest is the body of POST /api/conversation (§6).
type ConversationRequest struct {
	TeacherID      string              `json:"teacherId"`
	ConversationID string              `json:"conversationId,omitempty"`
	Message        string              `json:"message"`
	Language       string              `json:"language,omitempty"`
	Context        map[string]any      `json:"context,omitempty"`
	Blueprint      *blueprint.Blueprint `json:"blueprint,omitempty"`
	PageContext    *PageContext        `json:"pageContext,omitempty"`
}

// ClarifyChoice is one clarify option a client can echo back verbatim into
// ConversationRequest.Context on the next turn.
type ClarifyChoice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ClarifyOptions is the structured clarify payload of §3.
type ClarifyOptions struct {
	Type             string          `json:"type,omitempty"`
	Choices          []ClarifyChoice `json:"choices"`
	AllowCustomInput bool            `json:"allowCustomInput"`
}

// ConversationResponse is the body returned from POST /api/conversation
// (§3). resolvedContext is an unexported carrier the Gateway uses to pass
// resolved entity IDs and the clarify-loop's pending prompt from dispatch
// back to session persistence, without putting them on the wire.
type ConversationResponse struct {
	Mode             Mode              `json:"mode"`
	Action           Action            `json:"action"`
	ChatKind         ChatKind          `json:"chatKind,omitempty"`
	ChatResponse     string            `json:"chatResponse,omitempty"`
	Blueprint        *blueprint.Blueprint `json:"blueprint,omitempty"`
	PatchPlan        *patch.Plan       `json:"patchPlan,omitempty"`
	ClarifyOptions   *ClarifyOptions   `json:"clarifyOptions,omitempty"`
	ConversationID   string            `json:"conversationId"`
	ResolvedEntities []resolver.Entity `json:"resolvedEntities,omitempty"`

	resolvedContext map[string]any
}

// LegacyAction derives the back-compat flat action tag of §8 quantified
// invariant 2 and §9 ("never store it"): a pure function of
// (mode, action, chatKind), computed on demand rather than persisted.
func (r ConversationResponse) LegacyAction() string {
	switch r.Mode {
	case ModeEntry:
		switch r.Action {
		case ActionChat:
			if r.ChatKind == ChatKindQA {
				return "chat_qa"
			}
			return "chat_smalltalk"
		case ActionBuild:
			return "build_workflow"
		case ActionClarify:
			return "clarify"
		}
	case ModeFollowup:
		switch r.Action {
		case ActionChat:
			return "chat"
		case ActionRefine:
			return "refine"
		case ActionRebuild:
			return "rebuild"
		case ActionClarify:
			return "clarify"
		}
	}
	return string(r.Action)
}

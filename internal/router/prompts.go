package router

import (
	"fmt"
	"strings"

	"github.com/insight-edu/pageflow/internal/session"
)

// resultSchema is the JSON Schema the LLM's output is validated against. It
// mirrors Result's field set; confidence is unconstrained at the schema
// level (the ladder, not the schema, enforces the [0,1] invariant so a
// provider's rounding quirks never fail validation outright).
const resultSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["intent", "confidence"],
  "properties": {
    "intent": {"type": "string"},
    "confidence": {"type": "number"},
    "clarifyingQuestion": {"type": "string"},
    "routeHint": {"type": "string"},
    "refineScope": {"type": "string"},
    "extractedParams": {"type": "object"}
  }
}`

const initialModeSystemPrompt = `You are the intent router for a teacher-facing analytics assistant.
Classify the user's message into exactly one of: chat_smalltalk, chat_qa, build_workflow, clarify.

- chat_smalltalk: greetings, thanks, small talk with no analytical ask.
- chat_qa: a question about how the product works, not a request to analyze data.
- build_workflow: a request to analyze, compare, or report on class/student/assignment data.
- clarify: the request is analytical but too underspecified to act on (missing class, assignment, or time range).

Respond with a single JSON object matching the provided schema: {intent, confidence, clarifyingQuestion?, routeHint?, extractedParams?}.
confidence is your calibrated certainty in [0,1] that the chosen intent is correct, not a measure of how well-formed the request is.
routeHint, when present, is one of: needClassId, needTimeRange, needAssignment, needSubject.`

const followUpModeSystemPrompt = `You are the intent router for a teacher-facing analytics assistant. The user has an existing analysis page open.
Classify the user's message into exactly one of: chat, refine, rebuild.

- chat: a question or comment about the existing page that requires no change to it.
- refine: a request to adjust the existing page (add/remove/reorder a block, change a chart, recompute a section).
- rebuild: a request so different from the current page that it should be replaced entirely.

Respond with a single JSON object matching the provided schema: {intent, confidence, refineScope?, extractedParams?}.
refineScope, when intent is refine, is one of: patch_layout, patch_compose, full_rebuild.`

// maxHistoryTurns bounds how many prior turns are rendered into the prompt,
// per §4.4's "trimmed to N turns" requirement.
const maxHistoryTurns = 6

// renderHistory formats recent turns (excluding the current message, which
// the caller appends separately) as a flat transcript for prompt context.
func renderHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return "(no prior turns)"
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

func buildUserPrompt(history string, message string) string {
	return fmt.Sprintf("Conversation so far:\n%s\nCurrent message: %s", history, message)
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/patch"
	"github.com/insight-edu/pageflow/internal/router"
)

// patchPlanSchema constrains the Patch Agent's output to patch.Plan's
// wire shape. Mirrors router.resultSchema/planner.blueprintSchema's
// validate-then-decode pattern.
const patchPlanSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["scope", "instructions"],
  "properties": {
    "scope": {"type": "string", "enum": ["patch_layout", "patch_compose"]},
    "instructions": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "enum": ["update_props", "reorder", "add_block", "remove_block", "recompose"]},
          "tabId": {"type": "string"},
          "blockId": {"type": "string"},
          "props": {"type": "object"},
          "order": {"type": "array", "items": {"type": "string"}},
          "block": {"type": "object"},
          "componentType": {"type": "string"},
          "promptTemplate": {"type": "string"}
        }
      }
    }
  }
}`

// patchAgentSystemPrompt names the one instruction family valid for scope,
// per §4.7's scope semantics (patch_layout never recomposes, patch_compose
// only recomposes).
func patchAgentSystemPrompt(scope router.RefineScope) string {
	allowed := "update_props, reorder, add_block, remove_block"
	if scope == router.RefineScopePatchCompose {
		allowed = "recompose"
	}
	return fmt.Sprintf(`You are the patch agent for a teacher-facing analytics page. Given the user's
refine request and the current rendered page, emit a %s plan using only these instruction types: %s.
Never reference a tabId or blockId that does not already appear in the current page. Respond with a
single JSON object matching the provided schema.`, scope, allowed)
}

// buildPatchPlan asks the Patch Agent (an LLM call constrained by
// patchPlanSchema) to translate the user's refine request plus the
// client-supplied current page into a patch.Plan, per §4.8's "possible
// patchPlan via the Patch Agent for patch_layout/patch_compose".
func (g *Gateway) buildPatchPlan(ctx context.Context, scope router.RefineScope, req ConversationRequest, bp blueprint.Blueprint) (patch.Plan, error) {
	pageJSON, _ := json.Marshal(req.PageContext.Page)
	bpJSON, _ := json.Marshal(bp)
	user := fmt.Sprintf(
		"User request: %s\nCurrent page: %s\nBlueprint (for recompose componentType/promptTemplate lookups): %s",
		req.Message, pageJSON, bpJSON)

	request := model.Request{
		ModelClass: model.ClassDefault,
		System:     patchAgentSystemPrompt(scope),
		Messages:   []model.Message{model.UserMessage(user)},
		Format: model.ResponseFormat{
			Type:   model.FormatJSON,
			Schema: json.RawMessage(patchPlanSchema),
			Name:   "patch_plan",
		},
	}

	resp, err := g.chat.Complete(ctx, request)
	if err != nil {
		return patch.Plan{}, wrapAIErr("gateway: patch agent call failed", err)
	}

	plan, err := g.decodePatchPlan(resp.Message.Text())
	if err != nil {
		return patch.Plan{}, err
	}
	return plan, nil
}

func (g *Gateway) decodePatchPlan(raw string) (patch.Plan, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return patch.Plan{}, fmt.Errorf("gateway: unmarshal patch agent output: %w", err)
	}
	if err := g.patchSchema.Validate(doc); err != nil {
		return patch.Plan{}, fmt.Errorf("gateway: patch agent schema validation: %w", err)
	}
	var plan patch.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return patch.Plan{}, fmt.Errorf("gateway: unmarshal patch agent output into Plan: %w", err)
	}
	return plan, nil
}

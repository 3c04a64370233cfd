package gateway

import (
	"context"

	"github.com/insight-edu/pageflow/internal/router"
	"github.com/insight-edu/pageflow/internal/session"
)

// dispatchFollowUp implements §4.8's follow-up-mode dispatch: route on the
// post-ladder intent.
func (g *Gateway) dispatchFollowUp(ctx context.Context, req ConversationRequest, sess session.Session, result router.Result) (ConversationResponse, error) {
	switch result.Intent {
	case router.IntentChat:
		return g.dispatchFollowUpChat(ctx, req, sess)
	case router.IntentClarify:
		question := result.ClarifyingQuestion
		if question == "" {
			question = "Could you say more about what you'd like changed?"
		}
		return ConversationResponse{Mode: ModeFollowup, Action: ActionClarify, ChatResponse: question, ClarifyOptions: &ClarifyOptions{AllowCustomInput: true}}, nil
	case router.IntentRefine:
		return g.dispatchRefine(ctx, req, result)
	case router.IntentRebuild:
		return g.dispatchRebuild(ctx, req)
	default:
		return ConversationResponse{
			Mode:           ModeFollowup,
			Action:         ActionClarify,
			ChatResponse:   "I didn't quite catch that — could you rephrase?",
			ClarifyOptions: &ClarifyOptions{AllowCustomInput: true},
		}, nil
	}
}

func (g *Gateway) dispatchFollowUpChat(ctx context.Context, req ConversationRequest, sess session.Session) (ConversationResponse, error) {
	text, err := g.chatReply(ctx, pageChatSystemPrompt(req.Blueprint), sess, req.Message)
	if err != nil {
		return ConversationResponse{}, err
	}
	return ConversationResponse{Mode: ModeFollowup, Action: ActionChat, ChatKind: ChatKindPage, ChatResponse: text}, nil
}

// dispatchRefine calls Planner.Refine and, when the Router attached a
// patch_layout/patch_compose refineScope and the request carries the
// client's current render state, also asks the Patch Agent for a PatchPlan
// the client can apply without a full re-Execute (§4.8, §4.5 "Refine and
// rebuild").
func (g *Gateway) dispatchRefine(ctx context.Context, req ConversationRequest, result router.Result) (ConversationResponse, error) {
	if req.Blueprint == nil {
		return ConversationResponse{
			Mode:           ModeFollowup,
			Action:         ActionClarify,
			ChatResponse:   "Could you resend the page you'd like me to adjust?",
			ClarifyOptions: &ClarifyOptions{AllowCustomInput: true},
		}, nil
	}

	bp, err := g.planner.Refine(ctx, *req.Blueprint, req.Message, req.Language, req.Context)
	if err != nil {
		return ConversationResponse{}, wrapAIErr("gateway: refine planner call failed", err)
	}
	g.enforceSourcePromptDefensively(ctx, &bp, req.Message)

	resp := ConversationResponse{Mode: ModeFollowup, Action: ActionRefine, Blueprint: &bp}

	needsPatchPlan := result.RefineScope == router.RefineScopePatchLayout || result.RefineScope == router.RefineScopePatchCompose
	if needsPatchPlan && req.PageContext != nil {
		plan, err := g.buildPatchPlan(ctx, result.RefineScope, req, bp)
		if err != nil {
			g.tel.Logger.Warn(ctx, "gateway: patch agent failed, returning blueprint-only refine", "err", err.Error())
		} else {
			resp.PatchPlan = &plan
		}
	}
	return resp, nil
}

// dispatchRebuild calls Planner.Rebuild, allowed to restructure the
// Blueprint arbitrarily relative to the current one.
func (g *Gateway) dispatchRebuild(ctx context.Context, req ConversationRequest) (ConversationResponse, error) {
	if req.Blueprint == nil {
		return ConversationResponse{
			Mode:           ModeFollowup,
			Action:         ActionClarify,
			ChatResponse:   "Could you resend the page you'd like me to rebuild?",
			ClarifyOptions: &ClarifyOptions{AllowCustomInput: true},
		}, nil
	}

	bp, err := g.planner.Rebuild(ctx, *req.Blueprint, req.Message, req.Language, req.Context)
	if err != nil {
		return ConversationResponse{}, wrapAIErr("gateway: rebuild planner call failed", err)
	}
	g.enforceSourcePromptDefensively(ctx, &bp, req.Message)

	return ConversationResponse{Mode: ModeFollowup, Action: ActionRebuild, Blueprint: &bp}, nil
}

package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/insight-edu/pageflow/internal/resolver"
	"github.com/insight-edu/pageflow/internal/router"
	"github.com/insight-edu/pageflow/internal/session"
)

// dispatchInitial implements §4.8's initial-mode dispatch: branch on the
// post-ladder intent.
func (g *Gateway) dispatchInitial(ctx context.Context, req ConversationRequest, sess session.Session, result router.Result) (ConversationResponse, error) {
	switch result.Intent {
	case router.IntentChatSmalltalk, router.IntentChatQA:
		return g.dispatchEntryChat(ctx, req, sess, result.Intent)
	case router.IntentClarify:
		opts := g.clarifyOptionsForHint(ctx, req.TeacherID, result.RouteHint)
		question := result.ClarifyingQuestion
		if question == "" {
			question = "Could you tell me more about what you'd like to analyze?"
		}
		return ConversationResponse{Mode: ModeEntry, Action: ActionClarify, ChatResponse: question, ClarifyOptions: &opts}, nil
	case router.IntentBuildWorkflow:
		return g.dispatchBuildWorkflow(ctx, req, sess)
	default:
		// Initial mode never produces chat/refine/rebuild; a RouterResult
		// outside the initial intent set is a Router contract violation, not
		// something the Gateway should propagate as a hard failure.
		return ConversationResponse{
			Mode:           ModeEntry,
			Action:         ActionClarify,
			ChatResponse:   "I didn't quite catch that — could you rephrase?",
			ClarifyOptions: &ClarifyOptions{AllowCustomInput: true},
		}, nil
	}
}

func (g *Gateway) dispatchEntryChat(ctx context.Context, req ConversationRequest, sess session.Session, intent router.IntentType) (ConversationResponse, error) {
	kind := ChatKindSmalltalk
	system := smalltalkSystemPrompt
	if intent == router.IntentChatQA {
		kind = ChatKindQA
		system = qaSystemPrompt
	}
	text, err := g.chatReply(ctx, system, sess, req.Message)
	if err != nil {
		return ConversationResponse{}, err
	}
	return ConversationResponse{Mode: ModeEntry, Action: ActionChat, ChatKind: kind, ChatResponse: text}, nil
}

// dispatchBuildWorkflow implements §4.8 step 4's build_workflow branch:
// resolve entities, downgrade to clarify on missing context or ambiguity,
// otherwise merge resolved IDs into context, annotate sourcePrompt, and
// call the Planner.
func (g *Gateway) dispatchBuildWorkflow(ctx context.Context, req ConversationRequest, sess session.Session) (ConversationResponse, error) {
	resolved := g.resolver.Resolve(ctx, req.TeacherID, req.Message, sess.AccumulatedContext)

	if len(resolved.MissingContext) > 0 {
		opts := g.classesClarifyOptions(ctx, req.TeacherID)
		return ConversationResponse{
			Mode:             ModeEntry,
			Action:           ActionClarify,
			ChatResponse:     "Which class would you like to analyze?",
			ClarifyOptions:   &opts,
			ResolvedEntities: resolved.Entities,
			resolvedContext:  map[string]any{pendingPromptKey: pendingPromptOr(sess, req.Message)},
		}, nil
	}

	if resolved.IsAmbiguous {
		opts := ClarifyOptions{Type: "class", AllowCustomInput: true}
		for _, e := range resolved.Entities {
			opts.Choices = append(opts.Choices, ClarifyChoice{Label: e.DisplayName, Value: e.EntityID})
		}
		return ConversationResponse{
			Mode:            ModeEntry,
			Action:          ActionClarify,
			ChatResponse:    "I found more than one match — which did you mean?",
			ClarifyOptions:  &opts,
			resolvedContext: map[string]any{pendingPromptKey: pendingPromptOr(sess, req.Message)},
		}, nil
	}

	mergedContext := mergeResolvedEntities(session.MergeContext(sess.AccumulatedContext, req.Context), resolved.Entities)
	delete(mergedContext, pendingPromptKey)

	basePrompt := pendingPromptOr(sess, req.Message)
	annotated := annotateSourcePrompt(basePrompt, resolved.Entities)

	bp, err := g.planner.Build(ctx, annotated, req.Language, mergedContext)
	if err != nil {
		return ConversationResponse{}, wrapAIErr("gateway: build_workflow planner call failed", err)
	}
	g.enforceSourcePromptDefensively(ctx, &bp, annotated)

	return ConversationResponse{
		Mode:             ModeEntry,
		Action:           ActionBuild,
		Blueprint:        &bp,
		ResolvedEntities: resolved.Entities,
		resolvedContext:  mergedContext,
	}, nil
}

// pendingPromptOr recovers the original analytical request across a
// missing-context/ambiguity clarify round trip: if the session is mid
// clarify, the original prompt was stashed under pendingPromptKey on the
// first downgrade; otherwise the current message is itself the request.
func pendingPromptOr(sess session.Session, fallback string) string {
	if sess.LastAction == string(router.IntentClarify) {
		if v, ok := sess.AccumulatedContext[pendingPromptKey].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

// mergeResolvedEntities folds resolved entities into context using the
// flat classId/studentId/assignmentId keys (pluralized classIds for a
// grade-expansion multi-match), per §4.8.
func mergeResolvedEntities(context map[string]any, entities []resolver.Entity) map[string]any {
	out := make(map[string]any, len(context)+len(entities))
	for k, v := range context {
		out[k] = v
	}
	var classIDs []string
	for _, e := range entities {
		switch e.EntityType {
		case resolver.EntityClass:
			classIDs = append(classIDs, e.EntityID)
		case resolver.EntityStudent:
			out["studentId"] = e.EntityID
		case resolver.EntityAssignment:
			out["assignmentId"] = e.EntityID
		}
	}
	switch len(classIDs) {
	case 0:
	case 1:
		out["classId"] = classIDs[0]
	default:
		out["classIds"] = classIDs
	}
	return out
}

// annotateSourcePrompt appends the "[Resolved context: ...]" suffix §3
// mandates, leaving prompt itself as the invariant's required prefix.
func annotateSourcePrompt(prompt string, entities []resolver.Entity) string {
	if len(entities) == 0 {
		return prompt
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, fmt.Sprintf("%s=%s", e.EntityType, e.DisplayName))
	}
	return fmt.Sprintf("%s [Resolved context: %s]", prompt, strings.Join(names, ", "))
}

// clarifyOptionsForHint implements the `clarify` branch's "consult Entity
// Resolver if the routeHint requires it" rule: only needClassId currently
// has a concrete backing catalog; other hints fall back to a free-input
// clarify, which §8's boundary behaviors explicitly allow
// (choices == [] with allowCustomInput=true).
func (g *Gateway) clarifyOptionsForHint(ctx context.Context, teacherID string, hint router.RouteHint) ClarifyOptions {
	if hint == router.RouteHintNeedClassID {
		return g.classesClarifyOptions(ctx, teacherID)
	}
	return ClarifyOptions{AllowCustomInput: true}
}

func (g *Gateway) classesClarifyOptions(ctx context.Context, teacherID string) ClarifyOptions {
	opts := ClarifyOptions{Type: "class", AllowCustomInput: true}
	classes, err := g.catalog.ClassesForTeacher(ctx, teacherID)
	if err != nil {
		g.tel.Logger.Warn(ctx, "gateway: class catalog fetch failed building clarify options", "err", err.Error())
		return opts
	}
	for _, c := range classes {
		opts.Choices = append(opts.Choices, ClarifyChoice{Label: c.Name, Value: c.ID})
	}
	return opts
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/insight-edu/pageflow/internal/apperr"
	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/planner"
	"github.com/insight-edu/pageflow/internal/resolver"
	"github.com/insight-edu/pageflow/internal/router"
	"github.com/insight-edu/pageflow/internal/session"
	"github.com/insight-edu/pageflow/internal/telemetry"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// pendingPromptKey is a reserved accumulatedContext key used only by the
// Gateway itself to recover the original analytical request across a
// missing-context/ambiguity clarify round trip (§4.8's "Clarify multi-turn
// loop"). It is stripped before the context reaches the Planner or the
// client-visible response.
const pendingPromptKey = "__pendingSourcePrompt"

// maxChatHistoryTurns bounds how much history is folded into a Chat LLM
// prompt, mirroring router.maxHistoryTurns for the same reason (cost and
// relevance both degrade past a handful of turns).
const maxChatHistoryTurns = 6

// Gateway is the entry dispatcher of §4.8, combining Session, Router,
// Resolver, Planner, a Chat LLM, and the Patch Agent.
type Gateway struct {
	sessions *session.Store
	router   *router.Router
	resolver *resolver.Resolver
	catalog  resolver.Catalog
	planner  *planner.Planner
	chat     model.Client

	patchSchema *jsonschema.Schema
	tel         telemetry.Bundle
}

// New constructs a Gateway. catalog is the same Catalog the caller used to
// construct res, kept as a separate dependency here because clarify options
// for a missing-class prompt need the raw class list, not a resolved match.
func New(sessions *session.Store, rtr *router.Router, res *resolver.Resolver, catalog resolver.Catalog, pl *planner.Planner, chatClient model.Client, tel telemetry.Bundle) *Gateway {
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal([]byte(patchPlanSchema), &doc); err != nil {
		panic(fmt.Sprintf("gateway: invalid embedded patch plan schema: %v", err))
	}
	if err := c.AddResource("patch-plan.json", doc); err != nil {
		panic(fmt.Sprintf("gateway: add patch plan schema resource: %v", err))
	}
	schema, err := c.Compile("patch-plan.json")
	if err != nil {
		panic(fmt.Sprintf("gateway: compile patch plan schema: %v", err))
	}

	return &Gateway{
		sessions:    sessions,
		router:      rtr,
		resolver:    res,
		catalog:     catalog,
		planner:     pl,
		chat:        chatClient,
		patchSchema: schema,
		tel:         tel.WithDefaults(),
	}
}

// Handle processes one conversation turn end to end: load/create Session,
// classify, dispatch on mode and intent, persist Session.
func (g *Gateway) Handle(ctx context.Context, req ConversationRequest) (ConversationResponse, error) {
	sess, _ := g.sessions.LoadOrCreate(ctx, req.ConversationID)
	followUp := g.isFollowUp(req, sess)

	result := g.router.Classify(ctx, router.Input{
		Message:        req.Message,
		FollowUp:       followUp,
		History:        sess.Turns,
		LastAction:     sess.LastAction,
		LastIntent:     router.IntentType(sess.LastIntent),
		AccumulatedCtx: sess.AccumulatedContext,
	})

	var resp ConversationResponse
	var err error
	if followUp {
		resp, err = g.dispatchFollowUp(ctx, req, sess, result)
	} else {
		resp, err = g.dispatchInitial(ctx, req, sess, result)
	}
	if err != nil {
		return ConversationResponse{}, err
	}

	resp.ConversationID = sess.ConversationID
	g.persist(ctx, sess, req, resp, result)
	return resp, nil
}

// referentialPattern is a conservative heuristic for "this page"/"it"-style
// deixis, used only to decide whether an omitted Blueprint should still be
// treated as a follow-up turn (§4.8's "Session artifact restore").
var referentialPattern = regexp.MustCompile(`(?i)\b(this|that|it|the page|the chart|the table)\b`)

func isReferential(message string) bool {
	return referentialPattern.MatchString(message)
}

func isFollowUpIntent(intent string) bool {
	switch router.IntentType(intent) {
	case router.IntentChat, router.IntentRefine, router.IntentRebuild:
		return true
	default:
		return false
	}
}

// isFollowUp decides the request's mode. A request that explicitly attaches
// a Blueprint is always follow-up. Otherwise, the session's artifactType
// hint is restored only when both the current message is referential and
// the last turn's intent was itself follow-up-shaped (§4.8); an unrelated
// new topic never gets forced into follow-up mode just because a page
// happens to still be open.
func (g *Gateway) isFollowUp(req ConversationRequest, sess session.Session) bool {
	if req.Blueprint != nil {
		return true
	}
	return sess.ArtifactType != "" && isReferential(req.Message) && isFollowUpIntent(sess.LastIntent)
}

// persist appends the turn, merges context (including any internal carrier
// fields the dispatch stage attached to resp), and updates lastIntent/
// lastAction/artifactType under the Session's per-entry lock (§5).
func (g *Gateway) persist(ctx context.Context, sess session.Session, req ConversationRequest, resp ConversationResponse, result router.Result) {
	g.sessions.WithLock(ctx, sess.ConversationID, func(current session.Session) session.Session {
		now := time.Now()
		current.Turns = append(current.Turns,
			session.Turn{Role: session.RoleUser, Content: req.Message, Timestamp: now},
			session.Turn{Role: session.RoleAssistant, Content: resp.ChatResponse, Action: string(resp.Action), Timestamp: now},
		)

		merged := session.MergeContext(current.AccumulatedContext, req.Context)
		if resp.resolvedContext != nil {
			merged = session.MergeContext(merged, resp.resolvedContext)
		}
		current.AccumulatedContext = merged
		// lastIntent survives a ladder-induced clarify downgrade by falling
		// back to PreLadderIntent, so a short parameter reply on the next
		// turn reclassifies to the intent that was actually being clarified
		// (router.ReclassifyAfterClarify) rather than looping on "clarify".
		if result.PreLadderIntent != "" {
			current.LastIntent = string(result.PreLadderIntent)
		} else {
			current.LastIntent = string(result.Intent)
		}
		current.LastAction = string(resp.Action)
		if resp.Action == ActionBuild || resp.Action == ActionRefine || resp.Action == ActionRebuild {
			current.ArtifactType = "page"
		}
		return current
	})
}

// enforceSourcePromptDefensively re-checks the Planner's sourcePrompt
// invariant at the Gateway boundary (§4.5: "The Gateway additionally
// performs a defensive equality check at each of its build/refine/rebuild
// call sites"). The Planner already enforces this unconditionally, so a
// divergence here would indicate a bug in that enforcement rather than the
// LLM's output; log and correct rather than failing the request.
func (g *Gateway) enforceSourcePromptDefensively(ctx context.Context, b *blueprint.Blueprint, expected string) {
	if b.SourcePrompt == expected {
		return
	}
	g.tel.Logger.Warn(ctx, "gateway: blueprint sourcePrompt diverged at Gateway boundary", "expected", expected, "got", b.SourcePrompt)
	b.SourcePrompt = expected
}

func wrapAIErr(message string, err error) error {
	return apperr.Wrap(apperr.KindAI, message, err)
}

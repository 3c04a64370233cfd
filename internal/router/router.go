package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/session"
	"github.com/insight-edu/pageflow/internal/telemetry"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// maxClassifyRetries bounds the AIError retry policy of §7: an LLM timeout
// or provider error (or, here, a schema-invalid response) is retried up to
// 2 additional times before the Router degrades to a fallback clarify.
const maxClassifyRetries = 2

// fallbackClarifyQuestion is the deterministic response §7 mandates when the
// Router cannot obtain a usable classification from the LLM.
const fallbackClarifyQuestion = "I didn't quite catch that — could you rephrase?"

// Input carries everything the Router needs to classify one turn.
type Input struct {
	Message          string
	FollowUp         bool // true when a Blueprint is attached to the request
	History          []session.Turn
	LastAction       string
	LastIntent       IntentType
	AccumulatedCtx   map[string]any
}

// Router is the LLM-backed classifier of §4.4.
type Router struct {
	client model.Client
	schema *jsonschema.Schema
	tel    telemetry.Bundle

	// ConfidenceHigh/ConfidenceLow override the ladder's default 0.7/0.4
	// thresholds when non-zero, set post-construction from
	// config.Config.RouterConfidenceHigh/Low (§6's configuration table).
	ConfidenceHigh float64
	ConfidenceLow  float64
}

// New constructs a Router. The schema is compiled once at construction time;
// a compilation failure is a startup-time programmer error (the schema is a
// package constant), so New panics rather than threading an error return
// through every call site.
func New(client model.Client, tel telemetry.Bundle) *Router {
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal([]byte(resultSchema), &doc); err != nil {
		panic(fmt.Sprintf("router: invalid embedded schema: %v", err))
	}
	if err := c.AddResource("router-result.json", doc); err != nil {
		panic(fmt.Sprintf("router: add schema resource: %v", err))
	}
	schema, err := c.Compile("router-result.json")
	if err != nil {
		panic(fmt.Sprintf("router: compile schema: %v", err))
	}
	return &Router{client: client, schema: schema, tel: tel.WithDefaults()}
}

// Classify runs the full pipeline: prompt assembly, LLM call, schema
// validation (retried up to maxClassifyRetries), the short-answer-after-
// clarify rule, and the confidence ladder. It never returns an error to the
// caller: per §7's propagation policy, Router failures degrade to a
// deterministic clarify Result rather than crossing the Gateway boundary.
func (r *Router) Classify(ctx context.Context, in Input) Result {
	raw, ok := r.classifyRaw(ctx, in)
	if !ok {
		return r.fallback()
	}

	if !in.FollowUp {
		raw = ReclassifyAfterClarify(in.LastAction, in.LastIntent, in.Message, raw)
	}

	return ApplyLadderWithThresholds(raw, r.ConfidenceHigh, r.ConfidenceLow)
}

func (r *Router) classifyRaw(ctx context.Context, in Input) (Result, bool) {
	system := initialModeSystemPrompt
	if in.FollowUp {
		system = followUpModeSystemPrompt
	}

	history := renderHistory(trimHistory(in.History, maxHistoryTurns))
	userPrompt := buildUserPrompt(history, in.Message)

	req := model.Request{
		ModelClass: model.ClassDefault,
		System:     system,
		Messages:   []model.Message{model.UserMessage(userPrompt)},
		Format: model.ResponseFormat{
			Type:   model.FormatJSON,
			Schema: json.RawMessage(resultSchema),
			Name:   "router_result",
		},
		Cache: &model.CacheOptions{AfterSystem: true},
	}

	var lastErr error
	for attempt := 0; attempt <= maxClassifyRetries; attempt++ {
		resp, err := r.client.Complete(ctx, req)
		if err != nil {
			lastErr = err
			r.tel.Logger.Warn(ctx, "router: model call failed", "attempt", attempt, "err", err.Error())
			continue
		}

		result, err := r.decode(resp.Message.Text())
		if err != nil {
			lastErr = err
			r.tel.Logger.Warn(ctx, "router: schema validation failed", "attempt", attempt, "err", err.Error())
			continue
		}
		return result, true
	}

	r.tel.Logger.Error(ctx, "router: exhausted retries, falling back to clarify", "err", fmt.Sprint(lastErr))
	return Result{}, false
}

// decode validates raw against resultSchema and unmarshals it into a Result.
func (r *Router) decode(raw string) (Result, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Result{}, fmt.Errorf("router: unmarshal model output: %w", err)
	}
	if err := r.schema.Validate(doc); err != nil {
		return Result{}, fmt.Errorf("router: schema validation: %w", err)
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, fmt.Errorf("router: unmarshal into Result: %w", err)
	}
	return result, nil
}

// fallback is the deterministic clarify Result mandated by §7 when the
// Router cannot classify.
func (r *Router) fallback() Result {
	return Result{
		Intent:             IntentClarify,
		Confidence:         0,
		ClarifyingQuestion: fallbackClarifyQuestion,
		Path:               PathAgent,
	}
}

// trimHistory returns the last n turns, oldest first.
func trimHistory(turns []session.Turn, n int) []session.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

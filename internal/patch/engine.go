package patch

import (
	"context"
	"fmt"

	"github.com/insight-edu/pageflow/internal/apperr"
	"github.com/insight-edu/pageflow/internal/executor"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/sse"
	"github.com/insight-edu/pageflow/internal/telemetry"
)

// Engine applies a Plan to an already-rendered Page, emitting the narrower
// SSE vocabulary §4.7 describes (a subset of internal/executor's: no PHASE,
// no TOOL_CALL/TOOL_RESULT, just BLOCK_START/BLOCK_COMPLETE/SLOT_DELTA and a
// terminal COMPLETE).
type Engine struct {
	model model.Client
	sink  sse.Sink
	tel   telemetry.Bundle
}

// New constructs an Engine bound to a model client and SSE sink for one
// patch request. The model client is unused for patch_layout plans; it is
// still required at construction so callers don't need two constructors.
func New(client model.Client, sink sse.Sink, tel telemetry.Bundle) *Engine {
	return &Engine{model: client, sink: sink, tel: tel.WithDefaults()}
}

// Apply runs plan against page and returns the updated page. Like
// internal/executor.Engine.Run, a non-nil error return means the sink
// itself failed; instruction-level failures are reported via
// COMPLETE(error) and Apply returns nil.
func (e *Engine) Apply(ctx context.Context, page executor.Page, plan Plan, dataContext, computeResults map[string]any) error {
	switch plan.Scope {
	case ScopeLayout:
		return e.applyLayoutPlan(page, plan)
	case ScopeCompose:
		return e.applyComposePlan(ctx, page, plan, dataContext, computeResults)
	default:
		return e.sink.Send(sse.CompleteErrorEvent(
			fmt.Sprintf("patch: unknown scope %q", plan.Scope),
			string(apperr.KindValidation), "validation_error"))
	}
}

// applyLayoutPlan applies every instruction in list order, aborting and
// emitting COMPLETE(error) on the first failure (§4.7's atomicity rule: no
// partial rollback, the consumer may discard the page). On success it emits
// BLOCK_COMPLETE once per distinct touched block, in first-touched order,
// then a terminal COMPLETE carrying the updated page.
func (e *Engine) applyLayoutPlan(page executor.Page, plan Plan) error {
	var touchedOrder []string
	touched := map[string]bool{}

	for _, instr := range plan.Instructions {
		updated, blockID, err := applyLayout(page, instr)
		if err != nil {
			return e.sink.Send(sse.CompleteErrorEvent(err.Error(), string(apperr.KindValidation), "patch_error"))
		}
		page = updated
		if blockID != "" && !touched[blockID] {
			touched[blockID] = true
			touchedOrder = append(touchedOrder, blockID)
		}
	}

	for _, id := range touchedOrder {
		if err := e.sink.Send(sse.BlockCompleteEvent(id)); err != nil {
			return err
		}
	}
	return e.sink.Send(sse.CompleteEvent("Page updated", sse.CompleteResult{Page: page}))
}

// applyComposePlan reruns AI generation for every recompose instruction in
// list order, streaming SLOT_DELTA as each one generates. A failure aborts
// the remaining instructions and emits COMPLETE(error), same as layout.
func (e *Engine) applyComposePlan(ctx context.Context, page executor.Page, plan Plan, dataContext, computeResults map[string]any) error {
	for _, instr := range plan.Instructions {
		if instr.Type != InstructionRecompose {
			return e.sink.Send(sse.CompleteErrorEvent(
				fmt.Sprintf("patch: instruction type %q is not valid in patch_compose scope", instr.Type),
				string(apperr.KindValidation), "validation_error"))
		}
		updated, err := applyRecompose(ctx, e.model, e.sink, e.tel, page, instr, dataContext, computeResults)
		if err != nil {
			return e.sink.Send(sse.CompleteErrorEvent(err.Error(), string(apperr.KindAI), "ai_error"))
		}
		page = updated
	}
	return e.sink.Send(sse.CompleteEvent("Page updated", sse.CompleteResult{Page: page}))
}

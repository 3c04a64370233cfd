package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/insight-edu/pageflow/internal/apperr"
	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/refpath"
	"github.com/insight-edu/pageflow/internal/sse"
	"github.com/insight-edu/pageflow/internal/telemetry"
)

// Engine drives a single Blueprint through Phase A (Data) -> Phase B
// (Compute) -> Phase C (Compose), emitting the §6 SSE vocabulary onto a
// sink. One Engine is constructed per run; it holds no state across runs.
type Engine struct {
	tools ToolInvoker
	model model.Client
	sink  sse.Sink
	tel   telemetry.Bundle
}

// New constructs an Engine bound to a Tool Registry, model client, and SSE
// sink for a single run.
func New(tools ToolInvoker, client model.Client, sink sse.Sink, tel telemetry.Bundle) *Engine {
	return &Engine{tools: tools, model: client, sink: sink, tel: tel.WithDefaults()}
}

// Run executes bp against context (the caller-resolved $context scope,
// already merged with any Entity Resolver output) and emits every event up
// to and including a terminal COMPLETE. It never returns a Go error for a
// data- or AI-level failure: those are reported as DATA_ERROR/COMPLETE(error)
// events per §4.6/§7, and Run returns nil. A non-nil error return means the
// sink itself failed (e.g. a broken connection), at which point no further
// event can reach the client.
func (e *Engine) Run(ctx context.Context, bp blueprint.Blueprint, callerContext map[string]any) error {
	scopes := refpath.Scopes{
		Context: callerContext,
		Input:   deriveInputScope(callerContext),
		Data:    map[string]any{},
		Compute: map[string]any{},
	}

	if err := e.sink.Send(sse.PhaseEvent(sse.PhaseData, "Fetching data")); err != nil {
		return err
	}
	if failure, err := e.runDataPhase(ctx, &bp, &scopes); err != nil {
		return err
	} else if failure != nil {
		return e.emitDataError(*failure)
	}

	if err := e.sink.Send(sse.PhaseEvent(sse.PhaseCompute, "Computing")); err != nil {
		return err
	}
	if err := e.runComputePhase(ctx, &bp, &scopes); err != nil {
		code := string(apperr.KindTool)
		var ae *apperr.Error
		if errors.As(err, &ae) {
			code = string(ae.Kind)
		}
		return e.emitCompleteError(err.Error(), code, code)
	}

	if err := e.sink.Send(sse.PhaseEvent(sse.PhaseCompose, "Building page")); err != nil {
		return err
	}
	page, err := e.runComposePhase(ctx, &bp, &scopes)
	if err != nil {
		return e.emitCompleteError(err.Error(), string(apperr.KindAI), "ai_error")
	}

	return e.sink.Send(sse.CompleteEvent("Page ready", sse.CompleteResult{
		Page:           page,
		DataContext:    scopes.Data,
		ComputeResults: scopes.Compute,
	}))
}

// dataFailure describes a required binding that could not be satisfied, for
// the terminal DATA_ERROR/COMPLETE(error) pair.
type dataFailure struct {
	bindingID  string
	entity     string
	entityType string
	message    string
}

// entityIDKeys maps a paramMapping key conventionally carrying an entity ID
// to the entityType DATA_ERROR should report, per §6's {entity, entityType}
// pair. Falls back to the binding ID itself when args carry none of these.
var entityIDKeys = map[string]string{
	"classId":      "class",
	"assignmentId": "assignment",
	"studentId":    "student",
}

// inferEntity extracts a human-meaningful {entity, entityType} pair from a
// failed binding's resolved args, e.g. {assignmentId: "a-missing"} ->
// ("a-missing", "assignment"), so DATA_ERROR names the thing that couldn't
// be found rather than the Blueprint's internal binding ID.
func inferEntity(bindingID string, args map[string]any) (entity, entityType string) {
	for key, kind := range entityIDKeys {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, kind
			}
		}
	}
	return bindingID, "binding"
}

// runDataPhase resolves every binding in topological order, writing
// successful results into scopes.Data keyed by binding ID. A failing
// required binding short-circuits and is returned as a *dataFailure (not a
// Go error: this is an expected, reportable outcome, not a bug). A failing
// optional binding is logged and the binding is simply absent from
// scopes.Data, per §4.6.
func (e *Engine) runDataPhase(ctx context.Context, bp *blueprint.Blueprint, scopes *refpath.Scopes) (*dataFailure, error) {
	bindings := make(map[string]blueprint.Binding, len(bp.DataContract.Bindings))
	edges := make(map[string][]string, len(bp.DataContract.Bindings))
	for _, b := range bp.DataContract.Bindings {
		bindings[b.ID] = b
		edges[b.ID] = b.DependsOn
	}
	order, err := blueprint.TopoSort(edges)
	if err != nil {
		return nil, fmt.Errorf("executor: data phase: %w", err)
	}

	for _, id := range order {
		binding, ok := bindings[id]
		if !ok {
			continue
		}
		value, args, resolveErr := e.resolveBinding(ctx, binding, *scopes)
		if resolveErr != nil {
			if binding.Required {
				entity, entityType := inferEntity(binding.ID, args)
				return &dataFailure{bindingID: binding.ID, entity: entity, entityType: entityType, message: resolveErr.Error()}, nil
			}
			e.tel.Logger.Warn(ctx, "executor: optional binding failed, continuing", "bindingId", binding.ID, "err", resolveErr.Error())
			continue
		}
		scopes.Data[binding.ID] = value
	}
	return nil, nil
}

// resolveParamMapping resolves a Binding/ComputeNode's string-valued
// paramMapping bag into a tool-call args map, running each value through
// refpath.Resolve individually since ParamMapping's values (unlike
// ComputeNode.ToolArgs) are declared as plain strings, not arbitrary JSON.
func resolveParamMapping(mapping map[string]string, scopes refpath.Scopes) map[string]any {
	args := make(map[string]any, len(mapping))
	for k, v := range mapping {
		args[k] = refpath.Resolve(v, scopes)
	}
	return args
}

// resolveBinding fetches one binding's value per its sourceType. The
// returned args is the resolved paramMapping bag, surfaced so a failing
// caller can attribute a DATA_ERROR to the entity ID the binding was
// fetching rather than just its internal binding ID.
func (e *Engine) resolveBinding(ctx context.Context, binding blueprint.Binding, scopes refpath.Scopes) (value any, args map[string]any, err error) {
	switch binding.SourceType {
	case blueprint.SourceStatic:
		args = resolveParamMapping(binding.ParamMapping, scopes)
		return args, args, nil
	case blueprint.SourceTool, blueprint.SourceAPI:
		if binding.ToolName == "" {
			return nil, nil, fmt.Errorf("executor: binding %q has no toolName", binding.ID)
		}
		args = resolveParamMapping(binding.ParamMapping, scopes)
		if err := e.sink.Send(sse.ToolCallEvent(binding.ToolName, args)); err != nil {
			return nil, args, err
		}
		result, callErr := e.tools.Invoke(ctx, binding.ToolName, args)
		if callErr != nil {
			_ = e.sink.Send(sse.ToolResultEvent(binding.ToolName, sse.ToolStatusError))
			return nil, args, fmt.Errorf("executor: tool %q: %w", binding.ToolName, callErr)
		}
		if msg := errorMessage(result); msg != "" {
			_ = e.sink.Send(sse.ToolResultEvent(binding.ToolName, sse.ToolStatusError))
			return nil, args, apperr.New(apperr.KindDataFetch, msg)
		}
		if err := e.sink.Send(sse.ToolResultEvent(binding.ToolName, sse.ToolStatusOK)); err != nil {
			return nil, args, err
		}
		return map[string]any(result), args, nil
	default:
		return nil, nil, fmt.Errorf("executor: binding %q has unknown sourceType %q", binding.ID, binding.SourceType)
	}
}

// emitDataError sends the DATA_ERROR event followed by the terminal
// COMPLETE(error) per §7's data_error vocabulary.
func (e *Engine) emitDataError(f dataFailure) error {
	if err := e.sink.Send(sse.DataErrorEvent(f.entity, f.entityType, f.message, nil)); err != nil {
		return err
	}
	return e.sink.Send(sse.CompleteErrorEvent(f.message, string(apperr.KindDataFetch), "data_error"))
}

func (e *Engine) emitCompleteError(message, code, errorType string) error {
	return e.sink.Send(sse.CompleteErrorEvent(message, code, errorType))
}

// runComputePhase executes every tool-type compute node eagerly, in
// topological order, writing results into scopes.Compute keyed by
// outputKey. AI-type nodes are skipped here; they run lazily in Phase C at
// per-block granularity, per §4.6.
func (e *Engine) runComputePhase(ctx context.Context, bp *blueprint.Blueprint, scopes *refpath.Scopes) error {
	nodes := make(map[string]blueprint.ComputeNode, len(bp.ComputeGraph.Nodes))
	edges := make(map[string][]string, len(bp.ComputeGraph.Nodes))
	for _, n := range bp.ComputeGraph.Nodes {
		nodes[n.ID] = n
		edges[n.ID] = n.DependsOn
	}
	order, err := blueprint.TopoSort(edges)
	if err != nil {
		return fmt.Errorf("executor: compute phase: %w", err)
	}

	for _, id := range order {
		node, ok := nodes[id]
		if !ok || node.Type != blueprint.ComputeTool {
			continue
		}
		args, _ := refpath.ResolveAll(node.ToolArgs, *scopes).(map[string]any)
		if err := e.sink.Send(sse.ToolCallEvent(node.ToolName, args)); err != nil {
			return err
		}
		result, err := e.tools.Invoke(ctx, node.ToolName, args)
		if err != nil {
			_ = e.sink.Send(sse.ToolResultEvent(node.ToolName, sse.ToolStatusError))
			return apperr.Wrap(apperr.KindTool, fmt.Sprintf("executor: compute node %q", node.ID), err)
		}
		if msg := errorMessage(result); msg != "" {
			_ = e.sink.Send(sse.ToolResultEvent(node.ToolName, sse.ToolStatusError))
			return apperr.New(apperr.KindTool, msg)
		}
		if err := e.sink.Send(sse.ToolResultEvent(node.ToolName, sse.ToolStatusOK)); err != nil {
			return err
		}
		key := node.OutputKey
		if key == "" {
			key = node.ID
		}
		scopes.Compute[key] = map[string]any(result)
	}
	return nil
}

// runComposePhase walks every slot in declaration order: non-AI slots
// project deterministically from their resolved dataBinding, AI slots
// stream from the model client one block at a time. Returns the assembled
// Page.
func (e *Engine) runComposePhase(ctx context.Context, bp *blueprint.Blueprint, scopes *refpath.Scopes) (Page, error) {
	page := Page{Layout: string(bp.UIComposition.Layout)}
	var aiTexts []string

	for _, tab := range bp.UIComposition.Tabs {
		pageTab := PageTab{ID: tab.ID, Label: tab.Label}
		for _, slot := range tab.Slots {
			block, aiText, err := e.composeSlot(ctx, bp, slot, scopes)
			if err != nil {
				return Page{}, err
			}
			if slot.AIContentSlot {
				aiTexts = append(aiTexts, aiText)
			}
			pageTab.Blocks = append(pageTab.Blocks, block)
		}
		page.Tabs = append(page.Tabs, pageTab)
	}

	// §4.6 Phase C: one concatenated MESSAGE across every AI block in the
	// page, for consumers predating per-block SLOT_DELTA streaming.
	if len(aiTexts) > 0 {
		if err := e.sink.Send(sse.MessageEvent(strings.Join(aiTexts, ""))); err != nil {
			return Page{}, err
		}
	}
	return page, nil
}

func (e *Engine) composeSlot(ctx context.Context, bp *blueprint.Blueprint, slot blueprint.Slot, scopes *refpath.Scopes) (PageBlock, string, error) {
	if !slot.AIContentSlot {
		var resolved any
		if slot.DataBinding != nil {
			resolved = refpath.Resolve(*slot.DataBinding, *scopes)
		}
		props := projectDeterministic(slot.ComponentType, resolved, slot.Props)
		return PageBlock{ID: slot.ID, ComponentType: string(slot.ComponentType), Props: props}, "", nil
	}

	if err := e.sink.Send(sse.BlockStartEvent(slot.ID, string(slot.ComponentType))); err != nil {
		return PageBlock{}, "", err
	}

	node := findComputeNodeForSlot(bp, slot)
	template := ""
	if node != nil {
		template = node.PromptTemplate
	}
	prompt := BuildBlockPrompt(template, scopes.Data, scopes.Compute)

	rendered, rawText, err := e.runAIBlock(ctx, slot.ID, slot.ID, slot.ComponentType, prompt)
	if err != nil {
		return PageBlock{}, "", err
	}

	if err := e.sink.Send(sse.BlockCompleteEvent(slot.ID)); err != nil {
		return PageBlock{}, "", err
	}

	props := map[string]any{}
	for k, v := range slot.Props {
		props[k] = v
	}
	switch slot.ComponentType {
	case blueprint.ComponentMarkdown:
		props["content"] = rendered
	default:
		props["value"] = rendered
	}
	return PageBlock{ID: slot.ID, ComponentType: string(slot.ComponentType), Props: props}, rawText, nil
}

// findComputeNodeForSlot looks up the AI compute node whose outputKey (or
// ID, when outputKey is unset) equals the slot's ID, which is the
// convention Blueprints use to pair an AI content slot with its generation
// node. Returns nil if the Blueprint declares no matching node (the slot
// then renders from an empty prompt, which is treated as a malformed but
// non-fatal Blueprint per the Executor's graceful-degradation posture).
func findComputeNodeForSlot(bp *blueprint.Blueprint, slot blueprint.Slot) *blueprint.ComputeNode {
	for i := range bp.ComputeGraph.Nodes {
		n := &bp.ComputeGraph.Nodes[i]
		if n.Type != blueprint.ComputeAI {
			continue
		}
		key := n.OutputKey
		if key == "" {
			key = n.ID
		}
		if key == slot.ID {
			return n
		}
	}
	return nil
}

package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/sse"
	"github.com/insight-edu/pageflow/internal/telemetry"
	"github.com/insight-edu/pageflow/internal/tools"
)

func emptyTel() telemetry.Bundle { return telemetry.Bundle{}.WithDefaults() }

type fakeInvoker struct {
	results map[string]tools.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeInvoker) Invoke(_ context.Context, name string, _ map[string]any) (tools.Result, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return tools.Result{}, nil
}

type fakeStreamer struct {
	chunks []model.Chunk
	idx    int
}

func (s *fakeStreamer) Recv() (model.Chunk, error) {
	if s.idx >= len(s.chunks) {
		return model.Chunk{}, errors.New("eof")
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}

func (s *fakeStreamer) Close() error { return nil }

type fakeModelClient struct {
	chunks []model.Chunk
}

func (f *fakeModelClient) Complete(context.Context, model.Request) (model.Response, error) {
	return model.Response{}, errors.New("not implemented")
}

func (f *fakeModelClient) Stream(context.Context, model.Request) (model.Streamer, error) {
	return &fakeStreamer{chunks: f.chunks}, nil
}

func textChunks(parts ...string) []model.Chunk {
	chunks := make([]model.Chunk, 0, len(parts)+1)
	for _, p := range parts {
		chunks = append(chunks, model.Chunk{Type: model.ChunkText, Delta: p})
	}
	chunks = append(chunks, model.Chunk{Type: model.ChunkStop})
	return chunks
}

func eventTypes(events []sse.Event) []sse.EventType {
	out := make([]sse.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func simpleBlueprint() blueprint.Blueprint {
	return blueprint.Blueprint{
		DataContract: blueprint.DataContract{
			Bindings: []blueprint.Binding{
				{ID: "submissions", SourceType: blueprint.SourceTool, ToolName: "get_assignment_submissions", Required: true, ParamMapping: map[string]string{"assignmentId": "$input.assignment"}},
			},
		},
		ComputeGraph: blueprint.ComputeGraph{
			Nodes: []blueprint.ComputeNode{
				{ID: "stats", Type: blueprint.ComputeTool, ToolName: "summary_stats", OutputKey: "stats", ToolArgs: map[string]any{"rows": "$data.submissions"}},
			},
		},
		UIComposition: blueprint.UIComposition{
			Layout: blueprint.LayoutTabs,
			Tabs: []blueprint.Tab{
				{ID: "tab-1", Label: "Overview", Slots: []blueprint.Slot{
					{ID: "kpi-1", ComponentType: blueprint.ComponentKPIGrid, DataBinding: strPtr("$compute.stats")},
				}},
			},
		},
	}
}

func strPtr(s string) *string { return &s }

func TestZeroBindingsSkipsToolLoopButEmitsPhaseData(t *testing.T) {
	bp := blueprint.Blueprint{UIComposition: blueprint.UIComposition{Layout: blueprint.LayoutTabs}}
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{}
	eng := New(invoker, &fakeModelClient{}, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(invoker.calls) != 0 {
		t.Fatalf("expected no tool calls, got %v", invoker.calls)
	}
	types := eventTypes(rec.Events)
	if len(types) == 0 || types[0] != sse.EventPhase {
		t.Fatalf("expected first event PHASE{data}, got %v", types)
	}
}

func TestZeroComputeNodesEmitsPhaseComputeWithNoToolCalls(t *testing.T) {
	bp := blueprint.Blueprint{UIComposition: blueprint.UIComposition{Layout: blueprint.LayoutTabs}}
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{}
	eng := New(invoker, &fakeModelClient{}, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var sawComputePhase bool
	for _, ev := range rec.Events {
		if ev.Type == sse.EventPhase && ev.Phase == sse.PhaseCompute {
			sawComputePhase = true
		}
	}
	if !sawComputePhase {
		t.Fatal("expected a PHASE{compute} event")
	}
}

func TestScenarioDDataErrorAbortsBeforeComposePhase(t *testing.T) {
	bp := simpleBlueprint()
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{errs: map[string]error{"get_assignment_submissions": errors.New("transport failure")}}
	eng := New(invoker, &fakeModelClient{}, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{"input": map[string]any{"assignment": "a-missing"}}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	types := eventTypes(rec.Events)
	want := []sse.EventType{sse.EventPhase, sse.EventToolCall, sse.EventToolResult, sse.EventDataError, sse.EventComplete}
	if len(types) != len(want) {
		t.Fatalf("event sequence = %v, want shape %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full sequence %v)", i, types[i], want[i], types)
		}
	}
	for _, ev := range rec.Events {
		if ev.Type == sse.EventPhase && ev.Phase == sse.PhaseCompose {
			t.Fatal("PHASE{compose} must not be emitted after a data error")
		}
	}
	dataErr := rec.Events[3]
	if dataErr.Entity != "a-missing" || dataErr.EntityType != "assignment" {
		t.Fatalf("DATA_ERROR entity/entityType = %q/%q, want a-missing/assignment", dataErr.Entity, dataErr.EntityType)
	}
	last := rec.Events[len(rec.Events)-1]
	if last.Details == nil {
		t.Fatal("terminal COMPLETE missing details")
	}
	details, ok := last.Details.(map[string]string)
	if !ok || details["errorType"] != "data_error" {
		t.Fatalf("terminal COMPLETE details = %v, want errorType=data_error", last.Details)
	}
}

func TestRequiredBindingToolErrorResultAlsoProducesDataError(t *testing.T) {
	bp := simpleBlueprint()
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{results: map[string]tools.Result{
		"get_assignment_submissions": tools.ErrorResult("assignment a-missing not found"),
	}}
	eng := New(invoker, &fakeModelClient{}, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var sawDataError bool
	for _, ev := range rec.Events {
		if ev.Type == sse.EventDataError {
			sawDataError = true
		}
	}
	if !sawDataError {
		t.Fatal("expected a DATA_ERROR event for the required binding's error result")
	}
	last := rec.Events[len(rec.Events)-1]
	if last.Type != sse.EventComplete || last.Message == "" {
		t.Fatalf("expected terminal COMPLETE(error) with a message, got %+v", last)
	}
}

func TestOptionalBindingFailureIsLoggedAndExecutionContinues(t *testing.T) {
	bp := simpleBlueprint()
	bp.DataContract.Bindings[0].Required = false
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{errs: map[string]error{"get_assignment_submissions": errors.New("transport failure")}}
	eng := New(invoker, &fakeModelClient{}, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var sawComposePhase, sawComplete bool
	var completeIsError bool
	for _, ev := range rec.Events {
		if ev.Type == sse.EventPhase && ev.Phase == sse.PhaseCompose {
			sawComposePhase = true
		}
		if ev.Type == sse.EventComplete {
			sawComplete = true
			completeIsError = ev.Details != nil
		}
	}
	if !sawComposePhase {
		t.Fatal("expected compose phase to run despite the optional binding failing")
	}
	if !sawComplete || completeIsError {
		t.Fatal("expected a successful terminal COMPLETE")
	}
}

func TestSuccessfulRunEmitsExactlyOneCompleteEvent(t *testing.T) {
	bp := simpleBlueprint()
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{results: map[string]tools.Result{
		"get_assignment_submissions": {"rows": []any{map[string]any{"score": 80}}},
		"summary_stats":              {"label": "Average", "value": 80},
	}}
	eng := New(invoker, &fakeModelClient{}, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var completeCount int
	for _, ev := range rec.Events {
		if ev.Type == sse.EventComplete {
			completeCount++
		}
	}
	if completeCount != 1 {
		t.Fatalf("expected exactly one COMPLETE event, got %d", completeCount)
	}
}

func TestAIBlockOrderingNoSlotDeltaAfterBlockComplete(t *testing.T) {
	bp := blueprint.Blueprint{
		ComputeGraph: blueprint.ComputeGraph{
			Nodes: []blueprint.ComputeNode{
				{ID: "summary-node", Type: blueprint.ComputeAI, OutputKey: "summary", PromptTemplate: "Summarize the class performance."},
			},
		},
		UIComposition: blueprint.UIComposition{
			Layout: blueprint.LayoutTabs,
			Tabs: []blueprint.Tab{
				{ID: "tab-1", Label: "Overview", Slots: []blueprint.Slot{
					{ID: "summary", ComponentType: blueprint.ComponentMarkdown, AIContentSlot: true},
				}},
			},
		},
	}
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{}
	client := &fakeModelClient{chunks: textChunks("The class ", "did well.")}
	eng := New(invoker, client, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var started, completed bool
	seenBlockIDs := map[string]bool{}
	for _, ev := range rec.Events {
		switch ev.Type {
		case sse.EventBlockStart:
			started = true
			seenBlockIDs[ev.BlockID] = true
		case sse.EventSlotDelta:
			if completed {
				t.Fatalf("SLOT_DELTA observed after BLOCK_COMPLETE for block %q", ev.BlockID)
			}
			if !seenBlockIDs[ev.BlockID] {
				t.Fatalf("SLOT_DELTA for block %q with no prior BLOCK_START", ev.BlockID)
			}
		case sse.EventBlockComplete:
			completed = true
		}
	}
	if !started || !completed {
		t.Fatal("expected both BLOCK_START and BLOCK_COMPLETE for the AI slot")
	}

	var message string
	for _, ev := range rec.Events {
		if ev.Type == sse.EventMessage {
			message = ev.Content
		}
	}
	if message != "The class did well." {
		t.Fatalf("MESSAGE content = %q, want concatenated stream text", message)
	}
}

func TestDeterministicComposeProjectsKPIGridFromResolvedBinding(t *testing.T) {
	bp := simpleBlueprint()
	rec := &sse.Recorder{}
	invoker := &fakeInvoker{results: map[string]tools.Result{
		"get_assignment_submissions": {"rows": []any{map[string]any{"score": 80}}},
		"summary_stats":              {"label": "Average Score", "value": 80, "status": "good"},
	}}
	eng := New(invoker, &fakeModelClient{}, rec, emptyTel())

	if err := eng.Run(context.Background(), bp, map[string]any{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var result sse.CompleteResult
	for _, ev := range rec.Events {
		if ev.Type == sse.EventComplete && ev.Result != nil {
			result = *ev.Result
		}
	}
	page, ok := result.Page.(Page)
	if !ok {
		t.Fatalf("result.Page has unexpected type %T", result.Page)
	}
	if len(page.Tabs) != 1 || len(page.Tabs[0].Blocks) != 1 {
		t.Fatalf("unexpected page shape: %+v", page)
	}
	items, ok := page.Tabs[0].Blocks[0].Props["items"].([]kpiItem)
	if !ok || len(items) != 1 {
		t.Fatalf("kpi_grid props.items = %#v, want one kpiItem", page.Tabs[0].Blocks[0].Props["items"])
	}
	if items[0].Label != "Average Score" || items[0].Status != "good" {
		t.Fatalf("unexpected kpi item: %+v", items[0])
	}
}

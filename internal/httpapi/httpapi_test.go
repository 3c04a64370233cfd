package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/insight-edu/pageflow/internal/executor"
	"github.com/insight-edu/pageflow/internal/gateway"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/patch"
	"github.com/insight-edu/pageflow/internal/planner"
	"github.com/insight-edu/pageflow/internal/resolver"
	"github.com/insight-edu/pageflow/internal/router"
	"github.com/insight-edu/pageflow/internal/session"
	"github.com/insight-edu/pageflow/internal/telemetry"
	"github.com/insight-edu/pageflow/internal/tools"
)

func emptyTel() telemetry.Bundle { return telemetry.Bundle{}.WithDefaults() }

// scriptedModelClient returns one queued Response per Complete call, in
// order, mirroring internal/gateway's test fake since this package cannot
// import an unexported test helper across package boundaries.
type scriptedModelClient struct {
	responses []string
	idx       int
}

func (s *scriptedModelClient) Complete(context.Context, model.Request) (model.Response, error) {
	if s.idx >= len(s.responses) {
		return model.Response{}, errors.New("scriptedModelClient: no more scripted responses")
	}
	text := s.responses[s.idx]
	s.idx++
	return model.Response{Message: model.AssistantMessage(text)}, nil
}

func (s *scriptedModelClient) Stream(context.Context, model.Request) (model.Streamer, error) {
	return nil, errors.New("scriptedModelClient: streaming not supported")
}

type fakeCatalog struct {
	classes map[string][]resolver.ClassRef
}

func (c *fakeCatalog) ClassesForTeacher(_ context.Context, teacherID string) ([]resolver.ClassRef, error) {
	return c.classes[teacherID], nil
}

func (c *fakeCatalog) StudentsForClass(_ context.Context, _, _ string) ([]resolver.NamedRef, error) {
	return nil, nil
}

func (c *fakeCatalog) AssignmentsForClass(_ context.Context, _, _ string) ([]resolver.NamedRef, error) {
	return nil, nil
}

const sampleBlueprintJSON = `{
  "name": "English Unit 5 Analysis",
  "description": "Performance breakdown for the unit test.",
  "version": "1.0",
  "capabilityLevel": 1,
  "dataContract": {
    "inputs": [{"id": "class", "type": "class", "label": "Class", "required": true}],
    "bindings": []
  },
  "computeGraph": {"nodes": []},
  "uiComposition": {
    "layout": "tabs",
    "tabs": [{"id": "tab-1", "label": "Overview", "slots": [
      {"id": "kpi-1", "componentType": "kpi_grid", "dataBinding": null, "aiContentSlot": false}
    ]}]
  }
}`

func newTestAPI(scripted *scriptedModelClient) *API {
	tel := emptyTel()
	reg := tools.NewRegistry()
	store := session.NewStore(time.Hour)
	rtr := router.New(scripted, tel)
	catalog := &fakeCatalog{classes: map[string][]resolver.ClassRef{
		"teacher-1": {{ID: "class-hk-f1a", Name: "Form 1A", Grade: "1", Subject: "English"}},
	}}
	res := resolver.New(catalog, tel)
	pl := planner.New(scripted, nil, tel)
	gw := gateway.New(store, rtr, res, catalog, pl, scripted, tel)

	return &API{
		Gateway: gw,
		Planner: pl,
		Tools:   reg,
		Model:   scripted,
		Tel:     tel,
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(&scriptedModelClient{})
	mux := NewMux(api)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body = %+v, want status=healthy", body)
	}
}

func TestHandleConversationSimpleBuild(t *testing.T) {
	scripted := &scriptedModelClient{responses: []string{
		`{"intent":"build_workflow","confidence":0.9}`,
		sampleBlueprintJSON,
	}}
	api := newTestAPI(scripted)
	mux := NewMux(api)

	reqBody, _ := json.Marshal(gateway.ConversationRequest{
		TeacherID: "teacher-1",
		Message:   "Analyze Form 1A English Unit 5 test",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/conversation", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp gateway.ConversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Action != gateway.ActionBuild {
		t.Fatalf("action = %q, want build", resp.Action)
	}
	if resp.Blueprint == nil {
		t.Fatal("expected a blueprint in the response")
	}
}

func TestHandleConversationInvalidBodyReturns400(t *testing.T) {
	api := newTestAPI(&scriptedModelClient{})
	mux := NewMux(api)

	req := httptest.NewRequest(http.MethodPost, "/api/conversation", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Success {
		t.Fatal("expected success=false")
	}
}

func TestHandleWorkflowGenerate(t *testing.T) {
	scripted := &scriptedModelClient{responses: []string{sampleBlueprintJSON}}
	api := newTestAPI(scripted)
	mux := NewMux(api)

	reqBody, _ := json.Marshal(workflowGenerateRequest{Message: "Analyze Form 1A"})
	req := httptest.NewRequest(http.MethodPost, "/api/workflow/generate", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePageGenerateStreamsPhaseAndComplete(t *testing.T) {
	scripted := &scriptedModelClient{}
	api := newTestAPI(scripted)
	mux := NewMux(api)

	var bp map[string]any
	if err := json.Unmarshal([]byte(sampleBlueprintJSON), &bp); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	reqBody, _ := json.Marshal(map[string]any{
		"blueprint": bp,
		"context":   map[string]any{},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/page/generate", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !bytes.Contains([]byte(body), []byte(`"type":"PHASE"`)) {
		t.Fatalf("expected a PHASE event in stream, got: %s", body)
	}
	if !bytes.Contains([]byte(body), []byte(`"type":"COMPLETE"`)) {
		t.Fatalf("expected a terminal COMPLETE event in stream, got: %s", body)
	}
}

func TestHandlePagePatchUpdateProps(t *testing.T) {
	scripted := &scriptedModelClient{}
	api := newTestAPI(scripted)
	mux := NewMux(api)

	page := executor.Page{Layout: "tabs", Tabs: []executor.PageTab{
		{ID: "tab-1", Label: "Overview", Blocks: []executor.PageBlock{
			{ID: "kpi-1", ComponentType: "kpi_grid", Props: map[string]any{"value": 1}},
		}},
	}}
	plan := patch.Plan{
		Scope: patch.ScopeLayout,
		Instructions: []patch.Instruction{
			{Type: patch.InstructionUpdateProps, BlockID: "kpi-1", Props: map[string]any{"value": 2}},
		},
	}
	reqBody, _ := json.Marshal(pagePatchRequest{CurrentPage: page, PatchPlan: plan})
	req := httptest.NewRequest(http.MethodPost, "/api/page/patch", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !bytes.Contains([]byte(body), []byte(`"type":"BLOCK_COMPLETE"`)) {
		t.Fatalf("expected BLOCK_COMPLETE in stream, got: %s", body)
	}
	if !bytes.Contains([]byte(body), []byte(`"type":"COMPLETE"`)) {
		t.Fatalf("expected terminal COMPLETE in stream, got: %s", body)
	}
}

package httpapi

import (
	"net/http"

	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/executor"
	"github.com/insight-edu/pageflow/internal/patch"
	"github.com/insight-edu/pageflow/internal/sse"
)

// pageGenerateRequest is the body of POST /api/page/generate (§6).
type pageGenerateRequest struct {
	Blueprint blueprint.Blueprint `json:"blueprint"`
	Context   map[string]any      `json:"context"`
	TeacherID string              `json:"teacherId,omitempty"`
}

// handlePageGenerate answers POST /api/page/generate: validates the
// Blueprint, then hands it to a fresh Executor bound to this connection's
// SSE sink. Besides a malformed request body (HTTP 400), a validation
// failure is the one case this endpoint still reports pre-stream (§7:
// ValidationError -> HTTP 502) since the sink hasn't opened yet.
func (a *API) handlePageGenerate(w http.ResponseWriter, r *http.Request) {
	var req pageGenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := blueprint.Validate(req.Blueprint, knownToolNames(a.Tools)); err != nil {
		writeError(w, err)
		return
	}

	sink := sse.NewWriter(w)
	eng := executor.New(a.Tools, a.Model, sink, a.Tel)
	if err := eng.Run(r.Context(), req.Blueprint, req.Context); err != nil {
		a.Tel.Logger.Error(r.Context(), "httpapi: page generate stream broke", "err", err.Error())
	}
}

// pagePatchRequest is the body of POST /api/page/patch (§6).
type pagePatchRequest struct {
	CurrentPage    executor.Page  `json:"currentPage"`
	PatchPlan      patch.Plan     `json:"patchPlan"`
	DataContext    map[string]any `json:"dataContext,omitempty"`
	ComputeResults map[string]any `json:"computeResults,omitempty"`
}

// handlePagePatch answers POST /api/page/patch: hands the plan to a fresh
// Patch Engine bound to this connection's SSE sink.
func (a *API) handlePagePatch(w http.ResponseWriter, r *http.Request) {
	var req pagePatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sink := sse.NewWriter(w)
	eng := patch.New(a.Model, sink, a.Tel)
	if err := eng.Apply(r.Context(), req.CurrentPage, req.PatchPlan, req.DataContext, req.ComputeResults); err != nil {
		a.Tel.Logger.Error(r.Context(), "httpapi: page patch stream broke", "err", err.Error())
	}
}

// toolDescriber is the narrow slice of *tools.Registry handlePageGenerate
// needs to validate a Blueprint's tool references without depending on
// internal/tools directly.
type toolDescriber interface {
	KnownNames() map[string]bool
}

// knownToolNames extracts the known-tool set from inv when it exposes one,
// or validates against an empty set (rejecting every tool reference)
// otherwise — acceptable since every real caller wires a *tools.Registry,
// which always implements toolDescriber.
func knownToolNames(inv executor.ToolInvoker) map[string]bool {
	if td, ok := inv.(toolDescriber); ok {
		return td.KnownNames()
	}
	return map[string]bool{}
}

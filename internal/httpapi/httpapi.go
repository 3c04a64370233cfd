// Package httpapi implements the inbound HTTP surface of §6: five
// handlers wired onto a plain net/http.ServeMux. Grounded on
// kadirpekel-hector's pkg/server/http.go (ServeMux + explicit per-route
// handler methods + a logging middleware careful never to wrap
// http.ResponseWriter, since that would break http.Flusher for SSE) rather
// than the teacher's own services, which are Goa-generated from a design
// DSL with no hand-written net/http counterpart in the retrieved pack.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/insight-edu/pageflow/internal/apperr"
	"github.com/insight-edu/pageflow/internal/executor"
	"github.com/insight-edu/pageflow/internal/gateway"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/planner"
	"github.com/insight-edu/pageflow/internal/telemetry"
)

// API holds every dependency the five handlers need. Unlike the Gateway
// (one long-lived instance) the Executor and Patch Engine are constructed
// per-request, since each owns a sink bound to that request's
// http.ResponseWriter.
type API struct {
	Gateway  *gateway.Gateway
	Planner  *planner.Planner
	Tools    executor.ToolInvoker
	Model    model.Client
	Tel      telemetry.Bundle
}

// NewMux builds the routed handler for every endpoint in §6's table.
func NewMux(api *API) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversation", api.handleConversation)
	mux.HandleFunc("POST /api/page/generate", api.handlePageGenerate)
	mux.HandleFunc("POST /api/page/patch", api.handlePagePatch)
	mux.HandleFunc("POST /api/workflow/generate", api.handleWorkflowGenerate)
	mux.HandleFunc("GET /api/health", api.handleHealth)
	return mux
}

// errorEnvelope is the pre-stream error body of §7's user-visible behavior
// (c): "a 4xx/5xx with {success:false, error}".
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a pre-stream error envelope, mapping the error's
// apperr.Kind (when err itself is an *apperr.Error) to an HTTP status per
// §7's taxonomy: AuthError maps to 401 and EntityNotFoundError to 404;
// every other error, with or without a Kind, is a 502 (ValidationError's
// documented status).
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	}
	if ae != nil {
		switch ae.Kind {
		case apperr.KindAuth:
			status = http.StatusUnauthorized
		case apperr.KindValidation:
			status = http.StatusBadGateway
		case apperr.KindEntityNotFound:
			status = http.StatusNotFound
		case apperr.KindAI, apperr.KindDataFetch, apperr.KindTool, apperr.KindCircuitOpen:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, errorEnvelope{Success: false, Error: err.Error()})
}

// decodeBody decodes r's JSON body into v, writing a 400 error envelope and
// returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Success: false, Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// handleHealth answers GET /api/health per §6's liveness probe contract.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleConversation answers POST /api/conversation: the single non-streaming
// entry point into the Gateway.
func (a *API) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req gateway.ConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := a.Gateway.Handle(ctx, req)
	if err != nil {
		a.Tel.Logger.Error(ctx, "httpapi: conversation failed", "err", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// workflowGenerateRequest is the body of the optional direct-Planner
// endpoint of §6.
type workflowGenerateRequest struct {
	Message         string         `json:"message"`
	Language        string         `json:"language,omitempty"`
	ResolvedContext map[string]any `json:"resolvedContext,omitempty"`
}

// handleWorkflowGenerate answers POST /api/workflow/generate: a direct
// Planner.Build call bypassing the Gateway's Router/Resolver dispatch,
// useful for clients that have already resolved their own entities.
func (a *API) handleWorkflowGenerate(w http.ResponseWriter, r *http.Request) {
	var req workflowGenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	bp, err := a.Planner.Build(ctx, req.Message, req.Language, req.ResolvedContext)
	if err != nil {
		a.Tel.Logger.Error(ctx, "httpapi: workflow generate failed", "err", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

// requestTimeout bounds the non-streaming endpoints; the streaming
// endpoints are bounded only by the client connection since a Blueprint run
// may legitimately take minutes across several AI blocks.
const requestTimeout = 30 * time.Second

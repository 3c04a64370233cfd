// Package planner implements the Blueprint generator of §4.5: an LLM call
// constrained by the Blueprint JSON Schema, a system prompt enumerating the
// component registry and Tool Registry, bounded retries on schema failure,
// and unconditional sourcePrompt enforcement.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/insight-edu/pageflow/internal/apperr"
	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/telemetry"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// maxGenerateRetries is §4.5's "up to two automatic retries on
// schema-validation failure" — three attempts total.
const maxGenerateRetries = 2

// ToolDescription is the minimal shape the Planner needs from the Tool
// Registry's Describe() output: enough to render the system prompt's tool
// catalog without depending on internal/tools directly (narrow interface,
// same pattern as internal/resolver.Catalog).
type ToolDescription struct {
	Name        string
	Description string
}

// Planner generates and validates Blueprints per §4.5.
type Planner struct {
	client     model.Client
	schema     *jsonschema.Schema
	knownTools map[string]bool
	tools      []ToolDescription
	tel        telemetry.Bundle
}

// New constructs a Planner. tools is the Tool Registry's advertised catalog,
// used both for the system prompt and for blueprint.Validate's knownTools
// check.
func New(client model.Client, tools []ToolDescription, tel telemetry.Bundle) *Planner {
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal([]byte(blueprintSchema), &doc); err != nil {
		panic(fmt.Sprintf("planner: invalid embedded schema: %v", err))
	}
	if err := c.AddResource("blueprint.json", doc); err != nil {
		panic(fmt.Sprintf("planner: add schema resource: %v", err))
	}
	schema, err := c.Compile("blueprint.json")
	if err != nil {
		panic(fmt.Sprintf("planner: compile schema: %v", err))
	}

	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}

	return &Planner{client: client, schema: schema, knownTools: known, tools: tools, tel: tel.WithDefaults()}
}

// Build generates a new Blueprint from a user request.
func (p *Planner) Build(ctx context.Context, userPrompt, language string, resolvedContext map[string]any) (blueprint.Blueprint, error) {
	return p.generate(ctx, BuildPrompt(p.tools), userPrompt, language, resolvedContext)
}

// Refine generates an updated Blueprint that minimizes structural change
// relative to current.
func (p *Planner) Refine(ctx context.Context, current blueprint.Blueprint, userPrompt, language string, resolvedContext map[string]any) (blueprint.Blueprint, error) {
	return p.generate(ctx, RefinePrompt(p.tools, current), userPrompt, language, resolvedContext)
}

// Rebuild generates a replacement Blueprint, allowed to restructure
// arbitrarily relative to current.
func (p *Planner) Rebuild(ctx context.Context, current blueprint.Blueprint, userPrompt, language string, resolvedContext map[string]any) (blueprint.Blueprint, error) {
	return p.generate(ctx, RebuildPrompt(p.tools, current), userPrompt, language, resolvedContext)
}

func (p *Planner) generate(ctx context.Context, systemPrompt, userPrompt, language string, resolvedContext map[string]any) (blueprint.Blueprint, error) {
	req := model.Request{
		ModelClass: model.ClassHighReasoning,
		System:     systemPrompt,
		Messages:   []model.Message{model.UserMessage(userMessage(userPrompt, language, resolvedContext))},
		Format: model.ResponseFormat{
			Type:   model.FormatJSON,
			Schema: json.RawMessage(blueprintSchema),
			Name:   "blueprint",
		},
		Cache: &model.CacheOptions{AfterSystem: true},
	}

	var lastErr error
	for attempt := 0; attempt <= maxGenerateRetries; attempt++ {
		resp, err := p.client.Complete(ctx, req)
		if err != nil {
			lastErr = err
			p.tel.Logger.Warn(ctx, "planner: model call failed", "attempt", attempt, "err", err.Error())
			continue
		}

		b, err := p.decode(resp.Message.Text())
		if err != nil {
			lastErr = err
			p.tel.Logger.Warn(ctx, "planner: schema validation failed", "attempt", attempt, "err", err.Error())
			continue
		}

		p.finalize(ctx, &b, userPrompt)
		return b, nil
	}

	return blueprint.Blueprint{}, apperr.Wrap(apperr.KindValidation, "planner: exhausted retries generating Blueprint", lastErr)
}

// decode validates raw against blueprintSchema and blueprint.Validate's
// semantic checks (known tools, registered components, acyclic dependsOn).
func (p *Planner) decode(raw string) (blueprint.Blueprint, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("planner: unmarshal model output: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("planner: schema validation: %w", err)
	}

	var b blueprint.Blueprint
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("planner: unmarshal into Blueprint: %w", err)
	}
	if err := blueprint.Validate(b, p.knownTools); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("planner: %w", err)
	}
	return b, nil
}

// finalize applies §4.5's auto-fill and invariant-enforcement steps.
func (p *Planner) finalize(ctx context.Context, b *blueprint.Blueprint, userPrompt string) {
	b.ID = "bp-" + uuid.NewString()
	b.CreatedAt = time.Now().UTC()
	if diverged := blueprint.EnforceSourcePrompt(b, userPrompt); diverged {
		p.tel.Logger.Warn(ctx, "planner: LLM output diverged from caller-supplied sourcePrompt, overwritten")
	}
}

package planner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/insight-edu/pageflow/internal/blueprint"
)

// componentRegistryList renders blueprint.ComponentRegistry as a sorted,
// human-readable bullet list for the system prompt.
func componentRegistryList() string {
	names := make([]string, 0, len(blueprint.ComponentRegistry))
	for c := range blueprint.ComponentRegistry {
		names = append(names, string(c))
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String()
}

// toolCatalogList renders the Tool Registry's descriptions for the system
// prompt so the Planner only ever emits tool names the Gateway can execute.
func toolCatalogList(tools []ToolDescription) string {
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

const basePromptTemplate = `You are the Blueprint planner for a teacher-facing analytics assistant.
A Blueprint is a three-layer structured plan: a dataContract (inputs + tool bindings), a computeGraph
(tool and AI compute nodes), and a uiComposition (a tabbed or single-page layout of typed slots).

Available component types for uiComposition slots:
%s
Available tools (use only these names for toolName fields):
%s
Rules:
- Every binding.toolName and computeGraph node.toolName MUST be one of the tools listed above.
- Reference values inside paramMapping/toolArgs using the "$prefix.path" grammar, where prefix is one
  of context, input, data, or compute.
- dependsOn edges must form a DAG; never reference a binding or node that doesn't exist.
- Only set aiContentSlot=true for slots that genuinely need generated prose or suggestions; prefer
  deterministic projections from dataBinding otherwise.
- Respond with a single JSON object matching the Blueprint schema. Do not include id, createdAt, or
  sourcePrompt; the caller fills those in.

%s`

// BuildPrompt assembles the initial-build system prompt.
func BuildPrompt(tools []ToolDescription) string {
	return fmt.Sprintf(basePromptTemplate, componentRegistryList(), toolCatalogList(tools), "Generate a new Blueprint from the user's request.")
}

// RefinePrompt assembles the refine system prompt: the current Blueprint is
// included in context with a directive to minimize structural change.
func RefinePrompt(tools []ToolDescription, current blueprint.Blueprint) string {
	currentJSON, _ := json.Marshal(current)
	directive := fmt.Sprintf(
		"The user is refining an existing Blueprint. Minimize structural change: keep existing ids, "+
			"bindings, and compute nodes where possible, and change only what the request requires.\n"+
			"Current Blueprint:\n%s", currentJSON)
	return fmt.Sprintf(basePromptTemplate, componentRegistryList(), toolCatalogList(tools), directive)
}

// RebuildPrompt assembles the rebuild system prompt: the current Blueprint
// is included for context but arbitrary restructuring is allowed.
func RebuildPrompt(tools []ToolDescription, current blueprint.Blueprint) string {
	currentJSON, _ := json.Marshal(current)
	directive := fmt.Sprintf(
		"The user wants a substantially different analysis. The existing Blueprint below is context "+
			"only; feel free to restructure arbitrarily rather than preserve its shape.\n"+
			"Current Blueprint:\n%s", currentJSON)
	return fmt.Sprintf(basePromptTemplate, componentRegistryList(), toolCatalogList(tools), directive)
}

func userMessage(userPrompt, language string, resolvedContext map[string]any) string {
	ctxJSON, _ := json.Marshal(resolvedContext)
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf("Request: %s\nResponse language: %s\nResolved context: %s", userPrompt, language, ctxJSON)
}

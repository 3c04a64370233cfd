package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/sse"
	"github.com/insight-edu/pageflow/internal/telemetry"
)

// outputFormatFor derives §4.6 Phase C's outputFormat from a component
// type: markdown streams raw text; suggestion_list and question_generator
// are buffered-then-parsed structured JSON.
func outputFormatFor(componentType blueprint.ComponentType) model.ResponseFormatType {
	switch componentType {
	case blueprint.ComponentSuggestionList, blueprint.ComponentQuestionGenerator:
		return model.FormatJSON
	default:
		return model.FormatText
	}
}

// BuildBlockPrompt assembles the per-block prompt: the compute node's
// template plus a JSON summary of the data and compute scopes accumulated
// so far, per §4.6's "includes a summary of the relevant data and compute
// scopes." Exported so internal/patch's patch_compose path (§4.7) builds
// its recompose prompt identically against cached dataContext/computeResults
// rather than reimplementing this.
func BuildBlockPrompt(template string, data, compute map[string]any) string {
	summary, _ := json.Marshal(map[string]any{"data": data, "compute": compute})
	return fmt.Sprintf("%s\n\nContext:\n%s", template, summary)
}

// RunAIBlock streams one AI content slot's generation onto sink, emitting
// SLOT_DELTA per chunk, and returns the final text (for markdown) or parsed
// structured value (for suggestion_list/question_generator) plus the raw
// concatenated text for the legacy MESSAGE event. Exported (alongside
// BuildBlockPrompt) so internal/patch's patch_compose recompose path reruns
// the exact same per-block generation §4.7 calls for, rather than a forked
// copy of it.
func RunAIBlock(ctx context.Context, client model.Client, sink sse.Sink, tel telemetry.Bundle, blockID, slotKey string, componentType blueprint.ComponentType, promptText string) (rendered any, rawText string, err error) {
	format := outputFormatFor(componentType)
	req := model.Request{
		ModelClass: model.ClassDefault,
		Messages:   []model.Message{model.UserMessage(promptText)},
		Format:     model.ResponseFormat{Type: format},
		Stream:     true,
	}

	stream, err := client.Stream(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("executor: ai stream failed: %w", err)
	}
	defer stream.Close()

	var buf strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if recvErr != nil {
			break
		}
		if chunk.Type == model.ChunkText {
			buf.WriteString(chunk.Delta)
			if sendErr := sink.Send(sse.SlotDeltaEvent(blockID, slotKey, chunk.Delta)); sendErr != nil {
				return nil, "", sendErr
			}
		}
		if chunk.Type == model.ChunkStop {
			break
		}
	}

	rawText = buf.String()
	if format == model.FormatText {
		return rawText, rawText, nil
	}

	parsed, parseErr := parseStructuredOutput(rawText)
	if parseErr != nil {
		tel.WithDefaults().Logger.Warn(ctx, "executor: structured ai output failed to parse", "blockId", blockID, "err", parseErr.Error())
		return nil, rawText, nil
	}
	return parsed, rawText, nil
}

// runAIBlock is the Engine-bound convenience wrapper composeSlot uses.
func (e *Engine) runAIBlock(ctx context.Context, blockID, slotKey string, componentType blueprint.ComponentType, promptText string) (rendered any, rawText string, err error) {
	return RunAIBlock(ctx, e.model, e.sink, e.tel, blockID, slotKey, componentType, promptText)
}

// parseStructuredOutput tolerates a response wrapped in a ```json fenced
// code block, per §4.6's "tolerating enclosing code fences."
func parseStructuredOutput(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, fmt.Errorf("executor: parse structured ai output: %w", err)
	}
	return v, nil
}

package patch

import (
	"context"
	"fmt"

	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/executor"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/sse"
	"github.com/insight-edu/pageflow/internal/telemetry"
)

// applyRecompose reruns one AI content slot's generation per §4.7's
// patch_compose scope: locate the slot, rebuild its prompt from the cached
// dataContext/computeResults the request carried (not freshly fetched —
// patch_compose never re-enters Phase A/B), and stream its replacement
// content the same way internal/executor's Phase C does.
func applyRecompose(ctx context.Context, client model.Client, sink sse.Sink, tel telemetry.Bundle, page executor.Page, instr Instruction, dataContext, computeResults map[string]any) (executor.Page, error) {
	ti, bi, block, err := findBlock(page, instr.BlockID)
	if err != nil {
		return page, err
	}

	componentType := blueprint.ComponentType(instr.ComponentType)
	if componentType == "" {
		componentType = blueprint.ComponentType(block.ComponentType)
	}

	if err := sink.Send(sse.BlockStartEvent(instr.BlockID, string(componentType))); err != nil {
		return page, err
	}

	prompt := executor.BuildBlockPrompt(instr.PromptTemplate, dataContext, computeResults)
	rendered, _, err := executor.RunAIBlock(ctx, client, sink, tel, instr.BlockID, instr.BlockID, componentType, prompt)
	if err != nil {
		return page, err
	}

	if err := sink.Send(sse.BlockCompleteEvent(instr.BlockID)); err != nil {
		return page, err
	}

	props := make(map[string]any, len(block.Props)+1)
	for k, v := range block.Props {
		props[k] = v
	}
	switch componentType {
	case blueprint.ComponentMarkdown:
		props["content"] = rendered
	default:
		props["value"] = rendered
	}
	page.Tabs[ti].Blocks[bi].Props = props
	return page, nil
}

func findBlock(page executor.Page, blockID string) (tabIdx, blockIdx int, block executor.PageBlock, err error) {
	for ti, tab := range page.Tabs {
		for bi, b := range tab.Blocks {
			if b.ID == blockID {
				return ti, bi, b, nil
			}
		}
	}
	return 0, 0, executor.PageBlock{}, fmt.Errorf("patch: recompose: block %q not found", blockID)
}

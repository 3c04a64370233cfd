package patch

import (
	"fmt"

	"github.com/insight-edu/pageflow/internal/executor"
)

// applyLayout executes a single patch_layout instruction against page,
// returning the updated page and, for instructions that touch a block, the
// touched block's ID (so the caller can emit BLOCK_COMPLETE for it once the
// whole instruction list has applied cleanly).
func applyLayout(page executor.Page, instr Instruction) (executor.Page, string, error) {
	switch instr.Type {
	case InstructionUpdateProps:
		return updateProps(page, instr.BlockID, instr.Props)
	case InstructionReorder:
		return reorderBlocks(page, instr.TabID, instr.Order)
	case InstructionAddBlock:
		return addBlock(page, instr.TabID, instr.Block)
	case InstructionRemoveBlock:
		return removeBlock(page, instr.BlockID)
	default:
		return page, "", fmt.Errorf("patch: instruction type %q is not valid in patch_layout scope", instr.Type)
	}
}

func updateProps(page executor.Page, blockID string, props map[string]any) (executor.Page, string, error) {
	for ti, tab := range page.Tabs {
		for bi, block := range tab.Blocks {
			if block.ID != blockID {
				continue
			}
			merged := make(map[string]any, len(block.Props)+len(props))
			for k, v := range block.Props {
				merged[k] = v
			}
			for k, v := range props {
				merged[k] = v
			}
			page.Tabs[ti].Blocks[bi].Props = merged
			return page, blockID, nil
		}
	}
	return page, "", fmt.Errorf("patch: update_props: block %q not found", blockID)
}

func reorderBlocks(page executor.Page, tabID string, order []string) (executor.Page, string, error) {
	for ti, tab := range page.Tabs {
		if tab.ID != tabID {
			continue
		}
		byID := make(map[string]executor.PageBlock, len(tab.Blocks))
		for _, b := range tab.Blocks {
			byID[b.ID] = b
		}
		reordered := make([]executor.PageBlock, 0, len(order))
		for _, id := range order {
			b, ok := byID[id]
			if !ok {
				return page, "", fmt.Errorf("patch: reorder: tab %q has no block %q", tabID, id)
			}
			reordered = append(reordered, b)
		}
		page.Tabs[ti].Blocks = reordered
		return page, "", nil
	}
	return page, "", fmt.Errorf("patch: reorder: tab %q not found", tabID)
}

func addBlock(page executor.Page, tabID string, block *executor.PageBlock) (executor.Page, string, error) {
	if block == nil {
		return page, "", fmt.Errorf("patch: add_block: instruction carries no block")
	}
	for ti, tab := range page.Tabs {
		if tab.ID != tabID {
			continue
		}
		page.Tabs[ti].Blocks = append(page.Tabs[ti].Blocks, *block)
		return page, block.ID, nil
	}
	return page, "", fmt.Errorf("patch: add_block: tab %q not found", tabID)
}

func removeBlock(page executor.Page, blockID string) (executor.Page, string, error) {
	for ti, tab := range page.Tabs {
		for bi, block := range tab.Blocks {
			if block.ID != blockID {
				continue
			}
			page.Tabs[ti].Blocks = append(tab.Blocks[:bi:bi], tab.Blocks[bi+1:]...)
			return page, blockID, nil
		}
	}
	return page, "", fmt.Errorf("patch: remove_block: block %q not found", blockID)
}

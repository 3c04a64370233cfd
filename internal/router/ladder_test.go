package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyLadderKeepsHighConfidence(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentBuildWorkflow, Confidence: 0.7})
	assert.Equal(t, IntentBuildWorkflow, out.Intent)
	assert.Equal(t, PathBlueprint, out.Path)
}

func TestApplyLadderDowngradesMidConfidenceToClarify(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentBuildWorkflow, Confidence: 0.55, ClarifyingQuestion: "which class?"})
	assert.Equal(t, IntentClarify, out.Intent)
	assert.Equal(t, "which class?", out.ClarifyingQuestion)
	assert.Equal(t, PathAgent, out.Path)
}

// TestScenarioEConfidenceDowngrade mirrors §8 Scenario E exactly.
func TestScenarioEConfidenceDowngrade(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentBuildWorkflow, Confidence: 0.55})
	assert.Equal(t, IntentClarify, out.Intent)
}

// A clarify downgrade must preserve the pre-ladder intent so a later short
// reply can reclassify back to it instead of looping on clarify forever.
func TestApplyLadderClarifyDowngradePreservesOriginalIntent(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentBuildWorkflow, Confidence: 0.55})
	assert.Equal(t, IntentClarify, out.Intent)
	assert.Equal(t, IntentBuildWorkflow, out.PreLadderIntent)
}

func TestApplyLadderKeepsHighConfidenceLeavesPreLadderIntentUnset(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentBuildWorkflow, Confidence: 0.9})
	assert.Empty(t, out.PreLadderIntent)
}

func TestApplyLadderChatQAPassesThroughAtMidConfidence(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentChatQA, Confidence: 0.5})
	assert.Equal(t, IntentChatQA, out.Intent)
}

func TestApplyLadderDowngradesLowConfidenceToSmalltalk(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentBuildWorkflow, Confidence: 0.2, ClarifyingQuestion: "x"})
	assert.Equal(t, IntentChatSmalltalk, out.Intent)
	assert.Empty(t, out.ClarifyingQuestion)
	assert.Equal(t, PathChat, out.Path)
}

func TestApplyLadderLowConfidenceChatPassesThrough(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentChat, Confidence: 0.1})
	assert.Equal(t, IntentChat, out.Intent)
}

func TestApplyLadderBoundaryAtExactly0_7(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentRefine, Confidence: 0.7})
	assert.Equal(t, IntentRefine, out.Intent, "0.7 is inclusive of the keep band")
}

func TestApplyLadderBoundaryAtExactly0_4(t *testing.T) {
	out := ApplyLadder(Result{Intent: IntentRebuild, Confidence: 0.4})
	assert.Equal(t, IntentClarify, out.Intent, "0.4 is inclusive of the downgrade-to-clarify band")
}

func TestIsShortParameterReply(t *testing.T) {
	assert.True(t, IsShortParameterReply("1A 班"))
	assert.True(t, IsShortParameterReply("Form 1A"))
	assert.False(t, IsShortParameterReply("Actually, can you also compare it against last term's results?"))
	assert.False(t, IsShortParameterReply(""))
}

func TestReclassifyAfterClarifyRewritesShortReply(t *testing.T) {
	llmResult := Result{Intent: IntentChatSmalltalk, Confidence: 0.9}
	out := ReclassifyAfterClarify(string(IntentClarify), IntentBuildWorkflow, "1A 班", llmResult)
	assert.Equal(t, IntentBuildWorkflow, out.Intent)
	assert.Equal(t, 0.95, out.Confidence)
}

func TestReclassifyAfterClarifyIgnoresLongReply(t *testing.T) {
	llmResult := Result{Intent: IntentChatQA, Confidence: 0.9}
	out := ReclassifyAfterClarify(string(IntentClarify), IntentBuildWorkflow, "can you tell me more about how this works", llmResult)
	assert.Equal(t, llmResult, out)
}

func TestReclassifyAfterClarifyIgnoresWhenLastActionWasNotClarify(t *testing.T) {
	llmResult := Result{Intent: IntentChatSmalltalk, Confidence: 0.9}
	out := ReclassifyAfterClarify(string(IntentBuildWorkflow), IntentBuildWorkflow, "1A", llmResult)
	assert.Equal(t, llmResult, out)
}

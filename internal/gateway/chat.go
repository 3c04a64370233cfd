package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/insight-edu/pageflow/internal/blueprint"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/session"
)

const smalltalkSystemPrompt = `You are a friendly assistant embedded in a teacher-facing analytics product.
The user's message is smalltalk (a greeting, thanks, or similar) with no analytical ask. Reply briefly
and warmly in at most two sentences; do not offer to build an analysis unless asked.`

const qaSystemPrompt = `You are a helpful assistant embedded in a teacher-facing analytics product.
The user is asking a question about how the product works, not requesting an analysis. Answer concisely
and, if you genuinely don't know, say so rather than guessing at product behavior.`

// pageChatSystemPrompt builds the follow-up-mode "PageChat" system prompt:
// the user has an existing analysis page open and is asking about it
// without requesting a change (§4.8's follow-up chat branch).
func pageChatSystemPrompt(bp *blueprint.Blueprint) string {
	name := "the current analysis page"
	if bp != nil && bp.Name != "" {
		name = bp.Name
	}
	return fmt.Sprintf(`You are chatting with a teacher about %q, a page they already have open in a
teacher-facing analytics product. Answer their question about the existing page; do not propose
restructuring it (that is handled by a separate refine/rebuild flow).`, name)
}

// chatReply runs a single non-streaming chat completion against recent
// session history plus the current message. Used by both the entry-mode
// smalltalk/qa branches and the follow-up-mode page-chat branch.
func (g *Gateway) chatReply(ctx context.Context, systemPrompt string, sess session.Session, message string) (string, error) {
	history := renderChatHistory(sess.RecentTurns(maxChatHistoryTurns, false))
	req := model.Request{
		ModelClass: model.ClassSmall,
		System:     systemPrompt,
		Messages:   []model.Message{model.UserMessage(fmt.Sprintf("Conversation so far:\n%s\nCurrent message: %s", history, message))},
		Format:     model.ResponseFormat{Type: model.FormatText},
	}
	resp, err := g.chat.Complete(ctx, req)
	if err != nil {
		return "", wrapAIErr("gateway: chat completion failed", err)
	}
	return resp.Message.Text(), nil
}

func renderChatHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return "(no prior turns)"
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

package ai

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/yun-ni-2024/ai-assistant-app/internal/model/chat"
	"github.com/yun-ni-2024/ai-assistant-app/internal/tool"
)

// Assembler builds the ordered message list fed to the provider, folding in
// tool output and truncating history to a character budget.
type Assembler struct {
	defaultSystemPrompt string
	budget              int
}

// NewAssembler 创建上下文组装器。
func NewAssembler(defaultSystemPrompt string, budget int) *Assembler {
	return &Assembler{defaultSystemPrompt: defaultSystemPrompt, budget: budget}
}

// Assemble returns system prompt, trimmed history, optional grounding entry
// and the current user turn, in that order. The system prompt, grounding and
// current turn are never truncated; history is dropped oldest first.
func (a *Assembler) Assemble(systemPrompt string, history []chat.Message, toolResult *tool.Result, userMessage string) []*schema.Message {
	if systemPrompt == "" {
		systemPrompt = a.defaultSystemPrompt
	}

	var grounding *schema.Message
	if toolResult != nil && toolResult.Success && toolResult.Content != "" {
		grounding = schema.SystemMessage(fmt.Sprintf(
			"Context retrieved by the %s tool. Use it when answering the next message:\n\n%s",
			toolResult.ToolName, toolResult.Content))
	}

	// The protected region is everything outside prior history.
	used := len(systemPrompt) + len(userMessage)
	if grounding != nil {
		used += len(grounding.Content)
	}

	trimmed := trimHistory(history, a.budget-used)

	out := make([]*schema.Message, 0, len(trimmed)+3)
	out = append(out, schema.SystemMessage(systemPrompt))
	out = append(out, trimmed...)
	if grounding != nil {
		out = append(out, grounding)
	}
	out = append(out, schema.UserMessage(userMessage))
	return out
}

// trimHistory keeps the newest messages fitting in the remaining budget.
func trimHistory(history []chat.Message, remaining int) []*schema.Message {
	converted := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		if msg.Content == "" {
			// Unfinalized placeholders carry no signal.
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			converted = append(converted, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			converted = append(converted, schema.AssistantMessage(msg.Content, nil))
		}
	}

	start := len(converted)
	for i := len(converted) - 1; i >= 0; i-- {
		remaining -= len(converted[i].Content)
		if remaining < 0 {
			break
		}
		start = i
	}
	return converted[start:]
}

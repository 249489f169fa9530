package ai

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// EchoProvider is the credential-less fallback: it streams the latest user
// message back word by word. Deterministic, so the whole pipeline is
// testable without network access.
type EchoProvider struct{}

// NewEchoProvider 创建本地回显提供方。
func NewEchoProvider() *EchoProvider {
	return &EchoProvider{}
}

// Name identifies the provider in logs.
func (p *EchoProvider) Name() string { return "echo" }

// Stream yields the last user message split into word-sized deltas, joined
// with a single leading space so the concatenation reproduces the input.
func (p *EchoProvider) Stream(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == schema.User {
			text = messages[i].Content
			break
		}
	}

	words := strings.Fields(text)
	chunks := make([]*schema.Message, 0, len(words))
	for i, word := range words {
		chunk := word
		if i > 0 {
			chunk = " " + word
		}
		chunks = append(chunks, schema.AssistantMessage(chunk, nil))
	}

	return schema.StreamReaderFromArray(chunks), nil
}

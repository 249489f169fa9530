// Package ai abstracts streaming text generation and the assembly of the
// provider-facing context.
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/yun-ni-2024/ai-assistant-app/internal/config"
)

// Provider streams generated text for an assembled message list. The
// returned reader is lazy, finite and non-restartable; a failure on the
// first Recv means no partial content was produced.
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// ArkProvider is the network-backed provider over the Ark chat model.
type ArkProvider struct {
	chatModel model.ChatModel
	modelName string
}

// NewArkProvider 使用配置创建 Ark 流式模型提供方。
func NewArkProvider(ctx context.Context, cfg config.AIConfig) (*ArkProvider, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &ArkProvider{chatModel: chatModel, modelName: cfg.Model}, nil
}

// Name identifies the provider in logs.
func (p *ArkProvider) Name() string { return "ark" }

// Stream opens a streaming generation over the chat model.
func (p *ArkProvider) Stream(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	stream, err := p.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to open model stream: %w", err)
	}
	log.Printf("[ai] opened %s stream, model=%s, context=%d messages", p.Name(), p.modelName, len(messages))
	return stream, nil
}

// Package stream implements the two-phase conversation protocol: a cheap
// local accept step handing out a single-use stream id, and a streaming step
// that drives tool selection, context assembly and provider generation.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yun-ni-2024/ai-assistant-app/internal/model/chat"
	"github.com/yun-ni-2024/ai-assistant-app/internal/service/ai"
	chatservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/chat"
	"github.com/yun-ni-2024/ai-assistant-app/internal/tool"
)

// ErrStreamNotFound covers unknown, expired and already-consumed stream ids.
var ErrStreamNotFound = errors.New("invalid or expired stream id")

// finalizeTimeout bounds the guaranteed persistence step; it runs on a fresh
// context because the request context is usually gone by then.
const finalizeTimeout = 5 * time.Second

// Frame is one wire event of the output stream.
type Frame struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// EmitFunc delivers one frame to the client. An error means the client is
// no longer reachable.
type EmitFunc func(Frame) error

// CreateResult is the accept-turn response.
type CreateResult struct {
	StreamID  string `json:"stream_id"`
	SessionID string `json:"session_id"`
}

// Turn is a claimed stream handle: the only ticket allowing generation and
// the single finalize write for its assistant message.
type Turn struct {
	streamID           string
	sessionID          string
	assistantMessageID string
	userMessageID      string
	userMessage        string
	systemPrompt       string
	createdAt          time.Time
}

// Orchestrator owns the pending-stream table and drives the generation
// pipeline for claimed turns.
type Orchestrator struct {
	chatSvc   *chatservice.Service
	registry  *tool.Registry
	selector  tool.Selector
	assembler *ai.Assembler
	provider  ai.Provider

	ttl             time.Duration
	providerTimeout time.Duration

	mu      sync.Mutex
	handles map[string]Turn
}

// New 创建流式会话编排器。
func New(chatSvc *chatservice.Service, registry *tool.Registry, selector tool.Selector, assembler *ai.Assembler, provider ai.Provider, ttl, providerTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		chatSvc:         chatSvc,
		registry:        registry,
		selector:        selector,
		assembler:       assembler,
		provider:        provider,
		ttl:             ttl,
		providerTimeout: providerTimeout,
		handles:         make(map[string]Turn),
	}
}

// Create accepts a turn: it ensures a session, persists the user message and
// an empty assistant placeholder, and registers a stream handle. No network
// call happens here.
func (o *Orchestrator) Create(ctx context.Context, sessionID, userMessage, systemPrompt string) (CreateResult, error) {
	// Validation precedes every side effect, including lazy session creation.
	if strings.TrimSpace(userMessage) == "" {
		return CreateResult{}, chatservice.ErrEmptyMessage
	}

	session, err := o.chatSvc.EnsureSession(ctx, sessionID, userMessage)
	if err != nil {
		return CreateResult{}, err
	}

	userMsg, placeholder, err := o.chatSvc.RecordTurn(ctx, session.ID, userMessage)
	if err != nil {
		return CreateResult{}, err
	}

	turn := Turn{
		streamID:           uuid.NewString(),
		sessionID:          session.ID,
		assistantMessageID: placeholder.ID,
		userMessageID:      userMsg.ID,
		userMessage:        userMessage,
		systemPrompt:       systemPrompt,
		createdAt:          time.Now(),
	}

	o.mu.Lock()
	o.handles[turn.streamID] = turn
	o.mu.Unlock()

	return CreateResult{StreamID: turn.streamID, SessionID: session.ID}, nil
}

// Claim atomically looks up and removes the handle. A second claim of the
// same id, or a claim past the TTL, yields ErrStreamNotFound with no side
// effects.
func (o *Orchestrator) Claim(streamID string) (Turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	turn, ok := o.handles[streamID]
	if !ok {
		return Turn{}, ErrStreamNotFound
	}
	delete(o.handles, streamID)

	if time.Since(turn.createdAt) > o.ttl {
		return Turn{}, ErrStreamNotFound
	}
	return turn, nil
}

// Stream claims the handle and runs generation over it.
func (o *Orchestrator) Stream(ctx context.Context, streamID string, emit EmitFunc) error {
	turn, err := o.Claim(streamID)
	if err != nil {
		return err
	}
	return o.Run(ctx, turn, emit)
}

// Run drives one claimed turn to its terminal frame. Whatever happens after
// the first delta — provider failure, client cancellation — the accumulated
// text is persisted into the placeholder before the terminal frame goes out.
func (o *Orchestrator) Run(ctx context.Context, turn Turn, emit EmitFunc) error {
	history, err := o.chatSvc.LoadTranscript(ctx, turn.sessionID)
	if err != nil {
		log.Printf("[stream] failed to load transcript for session=%s: %v", turn.sessionID, err)
		emit(Frame{Done: true, Error: "failed to load conversation history"})
		return err
	}
	prior := priorHistory(history, turn)

	toolResult := o.runSelectedTool(ctx, turn, prior)

	messages := o.assembler.Assemble(turn.systemPrompt, prior, toolResult, turn.userMessage)

	providerCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	reader, err := o.provider.Stream(providerCtx, messages)
	if err != nil {
		// Fail-fast path: nothing was generated, the placeholder stays empty.
		log.Printf("[stream] provider failed before first delta, stream=%s: %v", turn.streamID, err)
		emit(Frame{Done: true, Error: fmt.Sprintf("generation failed: %v", err)})
		return err
	}
	defer reader.Close()

	var accumulated string
	var streamErr error
	for {
		chunk, recvErr := reader.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			streamErr = recvErr
			break
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		accumulated += chunk.Content
		if emitErr := emit(Frame{Delta: chunk.Content}); emitErr != nil {
			// Client disconnected; stop generating but still finalize.
			log.Printf("[stream] client gone, stream=%s: %v", turn.streamID, emitErr)
			break
		}
	}

	// Guaranteed finalize. Zero deltas leave the placeholder empty rather
	// than overwriting it with a partial value.
	if accumulated != "" {
		finalizeCtx, cancelFinalize := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancelFinalize()
		if err := o.chatSvc.FinalizeAssistant(finalizeCtx, turn.assistantMessageID, accumulated); err != nil {
			log.Printf("[stream] failed to persist assistant message %s: %v", turn.assistantMessageID, err)
			emit(Frame{Done: true, Error: "failed to persist assistant message"})
			return err
		}
	}

	if streamErr != nil {
		log.Printf("[stream] provider failed mid-stream, stream=%s: %v", turn.streamID, streamErr)
		emit(Frame{Done: true, Error: fmt.Sprintf("generation interrupted: %v", streamErr)})
		return streamErr
	}

	emit(Frame{Done: true})
	log.Printf("[stream] completed stream=%s, session=%s, chars=%d", turn.streamID, turn.sessionID, len(accumulated))
	return nil
}

// runSelectedTool runs at most one tool for the turn. A failed or timed-out
// tool degrades the turn to ungrounded generation, never aborts it.
func (o *Orchestrator) runSelectedTool(ctx context.Context, turn Turn, prior []chat.Message) *tool.Result {
	selection, ok := o.selector.Select(turn.userMessage, prior)
	if !ok {
		return nil
	}

	executor, ok := o.registry.Executor(selection.Tool)
	if !ok {
		log.Printf("[stream] selector chose unavailable tool %q, proceeding ungrounded", selection.Tool)
		return nil
	}

	result := executor.Execute(ctx, selection.Params)
	if !result.Success {
		log.Printf("[stream] tool %s failed after %s: %s", selection.Tool, result.Elapsed, result.Error)
	} else {
		log.Printf("[stream] tool %s succeeded in %s, %d chars", selection.Tool, result.Elapsed, len(result.Content))
	}
	return &result
}

// StartSweeper garbage-collects unconsumed handles past their TTL.
func (o *Orchestrator) StartSweeper(ctx context.Context) {
	interval := o.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if swept := o.sweep(time.Now()); swept > 0 {
					log.Printf("[stream] swept %d expired stream handle(s)", swept)
				}
			}
		}
	}()
}

func (o *Orchestrator) sweep(now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	swept := 0
	for id, turn := range o.handles {
		if now.Sub(turn.createdAt) > o.ttl {
			delete(o.handles, id)
			swept++
		}
	}
	return swept
}

// priorHistory drops the just-recorded user message and placeholder so the
// assembler sees only earlier turns.
func priorHistory(history []chat.Message, turn Turn) []chat.Message {
	prior := make([]chat.Message, 0, len(history))
	for _, msg := range history {
		if msg.ID == turn.userMessageID || msg.ID == turn.assistantMessageID {
			continue
		}
		prior = append(prior, msg)
	}
	return prior
}

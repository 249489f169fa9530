package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/yun-ni-2024/ai-assistant-app/internal/model/chat"
	"github.com/yun-ni-2024/ai-assistant-app/internal/service/ai"
	chatservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/chat"
	"github.com/yun-ni-2024/ai-assistant-app/internal/store"
	"github.com/yun-ni-2024/ai-assistant-app/internal/tool"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]chat.Session
	messages []chat.Message
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]chat.Session)}
}

func (m *memStore) CreateSession(_ context.Context, session chat.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (chat.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return chat.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (m *memStore) ListSessions(_ context.Context) ([]chat.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chat.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session)
	}
	return out, nil
}

func (m *memStore) AppendMessage(_ context.Context, message chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *memStore) UpdateMessageContent(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Content = content
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) ListMessagesOrdered(_ context.Context, sessionID string) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Message
	for _, message := range m.messages {
		if message.SessionID == sessionID {
			out = append(out, message)
		}
	}
	return out, nil
}

func (m *memStore) assistantContent(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, message := range m.messages {
		if message.SessionID == sessionID && message.Role == chat.RoleAssistant {
			return message.Content
		}
	}
	return ""
}

// failingProvider errors before producing any delta.
type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Stream(context.Context, []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("connection refused")
}

// partialProvider produces the configured deltas, then fails mid-stream.
type partialProvider struct {
	deltas []string
}

func (partialProvider) Name() string { return "partial" }

func (p partialProvider) Stream(context.Context, []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	reader, writer := schema.Pipe[*schema.Message](len(p.deltas) + 1)
	go func() {
		defer writer.Close()
		for _, delta := range p.deltas {
			writer.Send(schema.AssistantMessage(delta, nil), nil)
		}
		writer.Send(nil, errors.New("upstream reset"))
	}()
	return reader, nil
}

// noopSelector never chooses a tool.
type noopSelector struct{}

func (noopSelector) Select(string, []chat.Message) (tool.Selection, bool) {
	return tool.Selection{}, false
}

// fixedSelector always chooses the given tool.
type fixedSelector struct {
	selection tool.Selection
}

func (s fixedSelector) Select(string, []chat.Message) (tool.Selection, bool) {
	return s.selection, true
}

func emptyRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	registry, err := tool.NewRegistry(nil, tool.Deps{})
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}
	return registry
}

func newOrchestrator(t *testing.T, st store.Store, selector tool.Selector, registry *tool.Registry, provider ai.Provider, ttl time.Duration) *Orchestrator {
	t.Helper()
	chatSvc := chatservice.NewService(st)
	assembler := ai.NewAssembler("You are a helpful assistant.", 12000)
	return New(chatSvc, registry, selector, assembler, provider, ttl, 30*time.Second)
}

type frameCollector struct {
	mu     sync.Mutex
	frames []Frame
}

func (c *frameCollector) emit(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *frameCollector) all() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

func TestCreateReturnsUniqueStreamIDs(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), time.Minute)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		result, err := orch.Create(ctx, "", fmt.Sprintf("message %d", i), "")
		if err != nil {
			t.Fatalf("Create err: %v", err)
		}
		if seen[result.StreamID] {
			t.Fatalf("duplicate stream id %s", result.StreamID)
		}
		seen[result.StreamID] = true
	}
}

func TestStreamEchoHelloScenario(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), time.Minute)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "Hello", "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	collector := &frameCollector{}
	if err := orch.Stream(ctx, result.StreamID, collector.emit); err != nil {
		t.Fatalf("Stream err: %v", err)
	}

	frames := collector.all()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %+v", len(frames), frames)
	}
	if frames[0].Delta != "Hello" || frames[0].Done {
		t.Fatalf("unexpected first frame: %+v", frames[0])
	}
	if !frames[1].Done || frames[1].Error != "" {
		t.Fatalf("unexpected terminal frame: %+v", frames[1])
	}

	if got := st.assistantContent(result.SessionID); got != "Hello" {
		t.Fatalf("persisted assistant content = %q, want %q", got, "Hello")
	}
}

func TestUserMessagePersistedVerbatim(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), time.Minute)

	const text = "  exact text,  with   spacing & 中文 ️and symbols!  "
	result, err := orch.Create(context.Background(), "", text, "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	messages, err := st.ListMessagesOrdered(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("ListMessagesOrdered err: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user message and placeholder, got %d messages", len(messages))
	}
	if messages[0].Role != chat.RoleUser || messages[0].Content != text {
		t.Fatalf("user message not persisted verbatim: %+v", messages[0])
	}
	if messages[1].Role != chat.RoleAssistant || messages[1].Content != "" {
		t.Fatalf("placeholder not empty: %+v", messages[1])
	}
}

func TestSecondClaimReturnsNotFound(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), time.Minute)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "Hello", "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	collector := &frameCollector{}
	if err := orch.Stream(ctx, result.StreamID, collector.emit); err != nil {
		t.Fatalf("first Stream err: %v", err)
	}

	err = orch.Stream(ctx, result.StreamID, collector.emit)
	if !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("second Stream err = %v, want ErrStreamNotFound", err)
	}
}

func TestExpiredHandleReturnsNotFound(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), 10*time.Millisecond)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "Hello", "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := orch.Claim(result.StreamID); !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("Claim err = %v, want ErrStreamNotFound", err)
	}
}

func TestSweepRemovesExpiredHandles(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), time.Minute)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "Hello", "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	if swept := orch.sweep(time.Now().Add(2 * time.Minute)); swept != 1 {
		t.Fatalf("sweep removed %d handles, want 1", swept)
	}
	if _, err := orch.Claim(result.StreamID); !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("Claim after sweep err = %v, want ErrStreamNotFound", err)
	}
}

func TestFailBeforeFirstDeltaLeavesPlaceholderEmpty(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), failingProvider{}, time.Minute)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "Hello", "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	collector := &frameCollector{}
	if err := orch.Stream(ctx, result.StreamID, collector.emit); err == nil {
		t.Fatal("expected stream error")
	}

	frames := collector.all()
	if len(frames) != 1 || !frames[0].Done || frames[0].Error == "" {
		t.Fatalf("expected single terminal error frame, got %+v", frames)
	}
	if got := st.assistantContent(result.SessionID); got != "" {
		t.Fatalf("placeholder was overwritten with %q", got)
	}
}

func TestMidStreamFailurePersistsPartialText(t *testing.T) {
	st := newMemStore()
	provider := partialProvider{deltas: []string{"partial ", "answer"}}
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), provider, time.Minute)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "Hello", "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	collector := &frameCollector{}
	if err := orch.Stream(ctx, result.StreamID, collector.emit); err == nil {
		t.Fatal("expected mid-stream error")
	}

	frames := collector.all()
	last := frames[len(frames)-1]
	if !last.Done || last.Error == "" {
		t.Fatalf("expected terminal error frame, got %+v", last)
	}
	if got := st.assistantContent(result.SessionID); got != "partial answer" {
		t.Fatalf("persisted partial = %q, want %q", got, "partial answer")
	}
}

func TestClientDisconnectStillFinalizes(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), time.Minute)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "one two three", "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	emitted := 0
	emit := func(Frame) error {
		emitted++
		if emitted >= 2 {
			return errors.New("client gone")
		}
		return nil
	}
	if err := orch.Stream(ctx, result.StreamID, emit); err != nil {
		t.Fatalf("Stream err: %v", err)
	}

	// The first two deltas were accumulated before the write failure.
	if got := st.assistantContent(result.SessionID); got != "one two" {
		t.Fatalf("persisted partial = %q, want %q", got, "one two")
	}
}

func TestToolTimeoutDegradesToUngroundedTurn(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer slow.Close()

	descriptors := []tool.Descriptor{{
		Name:        tool.NameFetch,
		Description: "fetch",
		Enabled:     true,
		Timeout:     1,
	}}
	registry, err := tool.NewRegistry(descriptors, tool.Deps{Client: slow.Client()})
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}

	selector := fixedSelector{selection: tool.Selection{
		Tool:   tool.NameFetch,
		Params: map[string]string{"url": slow.URL},
	}}

	st := newMemStore()
	orch := newOrchestrator(t, st, selector, registry, ai.NewEchoProvider(), time.Minute)
	ctx := context.Background()

	result, err := orch.Create(ctx, "", "Analyze "+slow.URL, "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	collector := &frameCollector{}
	if err := orch.Stream(ctx, result.StreamID, collector.emit); err != nil {
		t.Fatalf("Stream err: %v", err)
	}

	frames := collector.all()
	last := frames[len(frames)-1]
	if !last.Done || last.Error != "" {
		t.Fatalf("expected clean terminal frame, got %+v", last)
	}
	if got := st.assistantContent(result.SessionID); got == "" {
		t.Fatal("expected non-empty assistant response on degraded turn")
	}
}

func TestCreateRejectsEmptyMessage(t *testing.T) {
	st := newMemStore()
	orch := newOrchestrator(t, st, noopSelector{}, emptyRegistry(t), ai.NewEchoProvider(), time.Minute)

	_, err := orch.Create(context.Background(), "", "   ", "")
	if !errors.Is(err, chatservice.ErrEmptyMessage) {
		t.Fatalf("Create err = %v, want ErrEmptyMessage", err)
	}
	if len(st.messages) != 0 {
		t.Fatalf("expected no side effects, found %d messages", len(st.messages))
	}
}

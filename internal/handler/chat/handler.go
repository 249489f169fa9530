package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/chat"
	"github.com/yun-ni-2024/ai-assistant-app/internal/service/stream"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	orchestrator *stream.Orchestrator
	chatSvc      *chatservice.Service
}

// New 创建聊天处理器
func New(orchestrator *stream.Orchestrator, chatSvc *chatservice.Service) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		chatSvc:      chatSvc,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/create", h.handleCreate)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}/messages", h.handleListMessages)
}

// handleCreate accepts a turn and returns the stream id for SSE consumption.
// No generation happens here; the caller opens the stream separately.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID    string `json:"session_id"`
		UserMessage  string `json:"user_message"`
		SystemPrompt string `json:"system_prompt"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.Create(r.Context(), payload.SessionID, payload.UserMessage, payload.SystemPrompt)
	if err != nil {
		switch {
		case errors.Is(err, chatservice.ErrEmptyMessage):
			respondError(w, http.StatusBadRequest, "user_message is required")
		case errors.Is(err, chatservice.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "session not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to accept turn")
		}
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleListSessions 列出所有会话
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// handleListMessages 列出指定会话的消息
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// respondJSON 发送JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

package stream

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	streamservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/stream"
	"github.com/yun-ni-2024/ai-assistant-app/pkg/utils"
)

// Handler serves the open-stream operation over Server-Sent Events.
type Handler struct {
	orchestrator *streamservice.Orchestrator
}

// New 创建流式响应处理器
func New(orchestrator *streamservice.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// RegisterRoutes 注册流式相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream/{streamID}", h.handleStream)
}

// handleStream claims the stream handle, then streams frames until the
// terminal one. The claim happens before any SSE header goes out so an
// unknown or expired id can still answer with a plain 404.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")

	turn, err := h.orchestrator.Claim(streamID)
	if err != nil {
		if errors.Is(err, streamservice.ErrStreamNotFound) {
			utils.RespondError(w, http.StatusNotFound, "invalid or expired stream_id")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}

	encoder, err := utils.NewSSEEncoder(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	emit := func(frame streamservice.Frame) error {
		return encoder.Send(frame)
	}

	if err := h.orchestrator.Run(r.Context(), turn, emit); err != nil {
		// The error frame already went out; nothing more to send here.
		log.Printf("[stream] run finished with error, stream=%s: %v", streamID, err)
	}
}

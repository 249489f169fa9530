package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/yun-ni-2024/ai-assistant-app/internal/handler/chat"
	streamhandler "github.com/yun-ni-2024/ai-assistant-app/internal/handler/stream"
	toolshandler "github.com/yun-ni-2024/ai-assistant-app/internal/handler/tools"
	uploadhandler "github.com/yun-ni-2024/ai-assistant-app/internal/handler/upload"
	"github.com/yun-ni-2024/ai-assistant-app/internal/middleware"
	chatservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/chat"
	streamservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/stream"
	"github.com/yun-ni-2024/ai-assistant-app/internal/tool"
	"github.com/yun-ni-2024/ai-assistant-app/internal/upload"
	"github.com/yun-ni-2024/ai-assistant-app/pkg/utils"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Orchestrator  *streamservice.Orchestrator
	ChatSvc       *chatservice.Service
	Registry      *tool.Registry
	Uploads       *upload.Store
	MaxUploadSize int64
	CORSOrigins   []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(deps.CORSOrigins))

	chatHandler := chathandler.New(deps.Orchestrator, deps.ChatSvc)
	streamHandler := streamhandler.New(deps.Orchestrator)
	toolsHandler := toolshandler.New(deps.Registry)
	uploadHandler := uploadhandler.New(deps.Uploads, deps.MaxUploadSize)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		toolsHandler.RegisterRoutes(api)
		uploadHandler.RegisterRoutes(api)
	})

	return r
}

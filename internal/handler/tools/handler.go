package tools

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yun-ni-2024/ai-assistant-app/internal/tool"
	"github.com/yun-ni-2024/ai-assistant-app/pkg/utils"
)

// Handler exposes the tool catalog for clients.
type Handler struct {
	registry *tool.Registry
}

// New 创建工具目录处理器
func New(registry *tool.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes 注册工具相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tools", h.handleListTools)
}

// handleListTools 列出所有启用的工具
func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"tools": h.registry.Enabled(),
	})
}

package upload

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yun-ni-2024/ai-assistant-app/internal/upload"
	"github.com/yun-ni-2024/ai-assistant-app/pkg/utils"
)

// Handler accepts file uploads consumed later by the file tool.
type Handler struct {
	store   *upload.Store
	maxSize int64
}

// New 创建上传处理器
func New(store *upload.Store, maxSize int64) *Handler {
	return &Handler{store: store, maxSize: maxSize}
}

// RegisterRoutes 注册上传相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.handleUpload)
}

// handleUpload stores one multipart file and returns its file id.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	info, err := h.store.Save(header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrBadExtension):
			utils.RespondError(w, http.StatusBadRequest, "file type not allowed")
		case errors.Is(err, upload.ErrFileTooLarge):
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "file too large")
		default:
			utils.RespondError(w, http.StatusInternalServerError, "failed to store file")
		}
		return
	}

	utils.RespondJSON(w, http.StatusCreated, info)
}

package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/model/persona"
	"github.com/sparkforge/spark-os/backend/pkg/utils"
)

// Handler 角色目录的HTTP处理器
type Handler struct {
	personas persona.Store
	logger   *zap.Logger
}

// New 创建角色处理器
func New(personas persona.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{personas: personas, logger: logger}
}

// RegisterRoutes 注册角色相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	if err := utils.RespondJSON(w, http.StatusOK, h.personas.List()); err != nil {
		h.logger.Warn("failed to encode persona list", zap.Error(err))
	}
}

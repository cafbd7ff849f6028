package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/middleware"
	"github.com/sparkforge/spark-os/backend/internal/model/persona"
	chatservice "github.com/sparkforge/spark-os/backend/internal/service/chat"
	"github.com/sparkforge/spark-os/backend/internal/service/orchestrator"
	"github.com/sparkforge/spark-os/backend/pkg/utils"
)

// Handler 对话、切换角色、重置与会话状态的HTTP处理器
type Handler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// New 创建聊天处理器
func New(orch *orchestrator.Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orch: orch, logger: logger}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/switch", h.handleSwitch)
	r.Post("/reset", h.handleReset)
	r.Get("/admin/session", h.handleStatus)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.orch.SubmitTurn(r.Context(), middleware.SessionKey(r.Context()), payload.Message)
	if err != nil {
		h.respondError(w, StatusFor(err), err.Error())
		return
	}
	h.respond(w, http.StatusOK, outcome)
}

func (h *Handler) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.PersonaID == "" {
		h.respondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	p, err := h.orch.SwitchPersona(r.Context(), middleware.SessionKey(r.Context()), payload.PersonaID)
	if err != nil {
		h.respondError(w, StatusFor(err), err.Error())
		return
	}
	h.respond(w, http.StatusOK, map[string]string{
		"currentPersona": p.ID,
		"displayName":    p.Name,
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.orch.Reset(r.Context(), middleware.SessionKey(r.Context()))
	h.respond(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.orch.Status(r.Context(), middleware.SessionKey(r.Context()))
	if err != nil {
		h.respondError(w, StatusFor(err), err.Error())
		return
	}
	h.respond(w, http.StatusOK, status)
}

// StatusFor 将业务错误映射为HTTP状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput),
		errors.Is(err, persona.ErrUnknownPersona),
		errors.Is(err, chatservice.ErrSessionKeyRequired):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload interface{}) {
	if err := utils.RespondJSON(w, status, payload); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	if err := utils.RespondError(w, status, message); err != nil {
		h.logger.Warn("failed to encode error response", zap.Error(err))
	}
}

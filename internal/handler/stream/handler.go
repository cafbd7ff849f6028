package stream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/middleware"
	"github.com/sparkforge/spark-os/backend/internal/service/orchestrator"
	"github.com/sparkforge/spark-os/backend/pkg/utils"
)

// Handler 以 SSE 推送对话结果，转接提示先于危机角色的回复到达客户端。
type Handler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// New 创建流式处理器
func New(orch *orchestrator.Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orch: orch, logger: logger}
}

// Event SSE 事件负载
type Event struct {
	SessionID string `json:"sessionId,omitempty"`
	PersonaID string `json:"personaId,omitempty"`
	Content   string `json:"content,omitempty"`
	Alerts    int    `json:"safetyAlerts,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		_ = utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, middleware.SessionKey(r.Context()), message); err != nil {
		h.logger.Warn("stream request failed", zap.Error(err))
	}
}

// HandleStreamRequest 处理一轮对话并写出事件
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, key, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	outcome, err := h.orch.SubmitTurn(ctx, key, message)
	if err != nil {
		h.send(w, flusher, "error", Event{Error: err.Error()})
		return err
	}

	if outcome.Routed {
		h.send(w, flusher, "routing", Event{
			SessionID: outcome.SessionID,
			PersonaID: outcome.PersonaID,
			Content:   outcome.RoutingNotice,
			Alerts:    outcome.EscalationCount,
		})
	}

	h.send(w, flusher, "message", Event{
		SessionID: outcome.SessionID,
		PersonaID: outcome.PersonaID,
		Content:   outcome.Reply,
		Alerts:    outcome.EscalationCount,
	})
	h.send(w, flusher, "end", Event{SessionID: outcome.SessionID, Finished: true})

	h.logger.Debug("stream completed",
		zap.String("session_id", outcome.SessionID),
		zap.String("persona", outcome.PersonaID))
	return nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, event string, payload Event) {
	if err := utils.SendSSEEvent(w, flusher, event, payload); err != nil {
		h.logger.Warn("failed to send sse event", zap.String("event", event), zap.Error(err))
	}
}

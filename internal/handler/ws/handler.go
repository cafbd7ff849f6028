package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/middleware"
	"github.com/sparkforge/spark-os/backend/internal/service/orchestrator"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket对话处理器。每个连接绑定升级请求的会话键，消息逐条处理。
type Handler struct {
	orch     *orchestrator.Orchestrator
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器，仅接受同源、非浏览器客户端以及白名单来源的升级请求
func New(orch *orchestrator.Orchestrator, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		orch:   orch,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// Inbound 客户端消息，Type 取值为 turn、switch 或 reset
type Inbound struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	PersonaID string `json:"personaId,omitempty"`
}

// Outbound 服务端消息
type Outbound struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	key := middleware.SessionKey(r.Context())

	// 握手响应由 upgrader 写出，新签发的会话 Cookie 必须放在其响应头中
	var respHeader http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		respHeader = http.Header{"Set-Cookie": cookies}
	}

	conn, err := h.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	status, err := h.orch.Status(ctx, key)
	if err != nil {
		h.sendError(conn, err)
		return
	}
	h.send(conn, Outbound{Type: "connected", Data: status})

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, key, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, key string, msg Inbound) {
	switch msg.Type {
	case "turn":
		outcome, err := h.orch.SubmitTurn(ctx, key, msg.Message)
		if err != nil {
			h.sendError(conn, err)
			return
		}
		if outcome.Routed {
			h.send(conn, Outbound{Type: "routing", Data: map[string]any{
				"message":        outcome.RoutingNotice,
				"currentPersona": outcome.PersonaID,
				"safetyAlerts":   outcome.EscalationCount,
			}})
		}
		h.send(conn, Outbound{Type: "reply", Data: outcome})
	case "switch":
		p, err := h.orch.SwitchPersona(ctx, key, msg.PersonaID)
		if err != nil {
			h.sendError(conn, err)
			return
		}
		h.send(conn, Outbound{Type: "switched", Data: map[string]string{
			"currentPersona": p.ID,
			"displayName":    p.Name,
		}})
	case "reset":
		h.orch.Reset(ctx, key)
		h.send(conn, Outbound{Type: "reset", Data: map[string]bool{"success": true}})
	default:
		h.sendError(conn, errors.New("unsupported message type: "+msg.Type))
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Outbound) {
	msg.Timestamp = time.Now().UnixMilli()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (h *Handler) sendError(conn *websocket.Conn, err error) {
	h.send(conn, Outbound{Type: "error", Error: err.Error()})
}


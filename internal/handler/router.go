package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/handler/chat"
	"github.com/sparkforge/spark-os/backend/internal/handler/persona"
	"github.com/sparkforge/spark-os/backend/internal/handler/stream"
	"github.com/sparkforge/spark-os/backend/internal/handler/ws"
	middlewarePkg "github.com/sparkforge/spark-os/backend/internal/middleware"
	personaModel "github.com/sparkforge/spark-os/backend/internal/model/persona"
	"github.com/sparkforge/spark-os/backend/internal/service/orchestrator"
)

// NewRouter 组装 HTTP 路由。allowedOrigins 限定可携带会话 Cookie 调用接口的浏览器来源。
func NewRouter(personas personaModel.Store, orch *orchestrator.Orchestrator, allowedOrigins []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(personas, logger).RegisterRoutes(api)

		api.Group(func(sessioned chi.Router) {
			sessioned.Use(middlewarePkg.Session)
			chat.New(orch, logger).RegisterRoutes(sessioned)
			stream.New(orch, logger).RegisterRoutes(sessioned)
			ws.New(orch, allowedOrigins, logger).RegisterRoutes(sessioned)
		})
	})

	return r
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-pharmacy/backend/internal/handler/chat"
	"github.com/zhouzirui/z-pharmacy/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-pharmacy/backend/internal/middleware"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/z-pharmacy/backend/internal/service/chat"
	"github.com/zhouzirui/z-pharmacy/backend/pkg/utils"
)

// Deps 汇总路由需要的服务。
type Deps struct {
	Engine         *assistant.Engine
	Cart           catalog.Cart
	Transcripts    *chatService.Service
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	chatHandler := chat.New(deps.Engine, deps.Cart, deps.Transcripts, deps.Logger)
	wsHandler := ws.New(deps.Engine, deps.Transcripts, deps.Logger)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}

package handler

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/handler/chat"
	"github.com/zhouzirui/crossview/backend/internal/handler/debug"
	"github.com/zhouzirui/crossview/backend/internal/handler/survey"
	"github.com/zhouzirui/crossview/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/crossview/backend/internal/middleware"
	chatService "github.com/zhouzirui/crossview/backend/internal/service/chat"
	surveyService "github.com/zhouzirui/crossview/backend/internal/service/survey"
	"github.com/zhouzirui/crossview/backend/internal/store"
	"github.com/zhouzirui/crossview/backend/internal/transport"
	"github.com/zhouzirui/crossview/backend/pkg/utils"
)

// Deps 路由所需的服务与配置。
type Deps struct {
	ChatSvc     *chatService.Service
	SurveySvc   *surveyService.Service
	Hub         *transport.WSHub
	Store       store.Store
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Limits      chat.Limits
	StaticDir   string
	CORSOrigins []string
	Logger      *zap.Logger
}

// pages maps page routes to the HTML file served for them.
var pages = map[string]string{
	"/":                 "index.html",
	"/consent":          "consent.html",
	"/survey":           "survey.html",
	"/waiting":          "waiting.html",
	"/chat/{sessionID}": "chat.html",
	"/exit-survey":      "exit-survey.html",
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(d.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	survey.New(d.SurveySvc).RegisterRoutes(r)
	debug.New(d.Store, nil).RegisterRoutes(r)
	chat.New(d.ChatSvc, d.Hub, d.Limits, d.Metrics, d.Logger).RegisterRoutes(r)

	if d.StaticDir != "" {
		registerPages(r, d.StaticDir)
	}

	return r
}

// registerPages serves the study pages and the rest of the static directory.
func registerPages(r chi.Router, dir string) {
	for route, file := range pages {
		path := filepath.Join(dir, file)
		r.Get(route, func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, path)
		})
	}
	r.Handle("/*", http.FileServer(http.Dir(dir)))
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/paper-verify/internal/handler/chat"
	"github.com/zhouzirui/paper-verify/internal/handler/submission"
	middlewarePkg "github.com/zhouzirui/paper-verify/internal/middleware"
	aiService "github.com/zhouzirui/paper-verify/internal/service/ai"
	chatService "github.com/zhouzirui/paper-verify/internal/service/chat"
	submissionService "github.com/zhouzirui/paper-verify/internal/service/submission"
	"github.com/zhouzirui/paper-verify/pkg/utils"
)

// NewRouter wires HTTP routes to core services. The submission API lives under
// /api and the assistant routes at the root, matching the two base URLs the
// clients are configured with.
func NewRouter(submissionSvc *submissionService.Service, chatSvc *chatService.Service, aiSvc *aiService.Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chat.New(chatSvc, aiSvc, logger.Named("assistant")).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		submission.New(submissionSvc, logger.Named("submission")).RegisterRoutes(api)
	})

	return r
}

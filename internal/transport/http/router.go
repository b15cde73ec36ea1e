package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/internal/platform/middleware"
)

// NewRouter assembles the full API surface: public ban checks, authenticated
// self-service appeals, and the admin surface behind the capability check.
func NewRouter(h *Handler, validator middleware.JWTValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/bans/{username}", h.handlePublicBanStatus)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		r.Post("/appeals", h.handleSubmitAppeal)
		r.Get("/appeals", h.handleMyAppeals)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		r.Use(middleware.RequireAdmin(logger))
		r.Post("/users/{userID}/ban", h.handleBan)
		r.Post("/users/{userID}/unban", h.handleUnban)
		r.Get("/users/banned", h.handleListBanned)
		r.Get("/users/{userID}", h.handleUserDetail)
		r.Post("/moderation/actions", h.handleModerationAction)
		r.Get("/appeals", h.handleListAppeals)
		r.Post("/appeals/{appealID}/review", h.handleReviewAppeal)
		r.Post("/archive/reports", h.handleArchiveReports)
	})

	return r
}

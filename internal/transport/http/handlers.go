// Package httptransport is the thin HTTP boundary: decode, delegate to a
// lifecycle service, encode. Business rules live in the services; this layer
// only maps between JSON and domain types.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"warden/internal/appeal"
	"warden/internal/archive"
	"warden/internal/ban"
	"warden/internal/moderation"
	"warden/internal/profile"
	"warden/internal/ratelimit"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

// HealthCheck probes one dependency for the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler holds the lifecycle services behind the API surface.
type Handler struct {
	bans     *ban.Service
	mod      *moderation.Service
	appeals  *appeal.Service
	archiver *archive.ReportArchiver
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	health   []HealthCheck
}

func NewHandler(
	bans *ban.Service,
	mod *moderation.Service,
	appeals *appeal.Service,
	archiver *archive.ReportArchiver,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
	health []HealthCheck,
) *Handler {
	return &Handler{
		bans:     bans,
		mod:      mod,
		appeals:  appeals,
		archiver: archiver,
		limiter:  limiter,
		logger:   logger,
		health:   health,
	}
}

type profileResponse struct {
	UserID          id.UserID  `json:"userId"`
	AccountName     string     `json:"accountName"`
	CreatedAt       time.Time  `json:"createdAt"`
	IsBanned        bool       `json:"isBanned"`
	BanReason       string     `json:"banReason,omitempty"`
	BannedAt        *time.Time `json:"bannedAt,omitempty"`
	BannedBy        id.UserID  `json:"bannedBy,omitempty"`
	BanDuration     int        `json:"banDuration,omitempty"`
	BanDurationUnit string     `json:"banDurationUnit,omitempty"`
	BanExpiresAt    *time.Time `json:"banExpiresAt,omitempty"`
	ViolationCount  int        `json:"violationCount"`
}

func toProfileResponse(p *profile.Profile) profileResponse {
	return profileResponse{
		UserID:          p.UserID,
		AccountName:     p.AccountName,
		CreatedAt:       p.CreatedAt,
		IsBanned:        p.IsBanned,
		BanReason:       p.BanReason,
		BannedAt:        p.BannedAt,
		BannedBy:        p.BannedBy,
		BanDuration:     p.BanDuration,
		BanDurationUnit: string(p.BanDurationUnit),
		BanExpiresAt:    p.BanExpiresAt,
		ViolationCount:  p.ViolationCount,
	}
}

// allow consumes one admin action from the caller's rate budget.
func (h *Handler) allow(ctx context.Context) error {
	if h.limiter == nil {
		return nil
	}
	return h.limiter.Check(ctx, requestcontext.UserID(ctx).String())
}

type banRequest struct {
	Reason   string `json:"reason"`
	Duration int    `json:"duration"`
	Unit     string `json:"unit"`
}

func (h *Handler) handleBan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.allow(ctx); err != nil {
		writeError(w, err)
		return
	}
	targetID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req banRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.bans.BanUser(ctx, ban.Request{
		AdminID:  requestcontext.UserID(ctx),
		TargetID: targetID,
		Reason:   req.Reason,
		Duration: req.Duration,
		Unit:     req.Unit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleUnban(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.allow(ctx); err != nil {
		writeError(w, err)
		return
	}
	targetID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.bans.UnbanUser(ctx, targetID, ban.SourceManual)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *Handler) handleListBanned(w http.ResponseWriter, r *http.Request) {
	banned, err := h.bans.ListBanned(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]profileResponse, 0, len(banned))
	for _, p := range banned {
		out = append(out, toProfileResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

type userDetailResponse struct {
	Profile    profileResponse        `json:"profile"`
	Violations []moderation.Violation `json:"violations"`
	Appeals    []*appeal.Appeal       `json:"appeals"`
}

func (h *Handler) handleUserDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.bans.Status(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	violations, err := h.mod.ViolationHistory(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	appeals, err := h.appeals.ListForUser(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if violations == nil {
		violations = []moderation.Violation{}
	}
	if appeals == nil {
		appeals = []*appeal.Appeal{}
	}
	writeJSON(w, http.StatusOK, userDetailResponse{
		Profile:    toProfileResponse(p),
		Violations: violations,
		Appeals:    appeals,
	})
}

type moderationRequest struct {
	Action      string `json:"action"`
	ContentType string `json:"contentType"`
	ContentID   string `json:"contentId"`
	Reason      string `json:"reason"`
	BanDuration int    `json:"banDuration"`
	BanUnit     string `json:"banUnit"`
}

func (h *Handler) handleModerationAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.allow(ctx); err != nil {
		writeError(w, err)
		return
	}
	var req moderationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.mod.TakeAction(ctx, moderation.Request{
		AdminID:     requestcontext.UserID(ctx),
		Action:      moderation.Action(req.Action),
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      req.Reason,
		BanDuration: req.BanDuration,
		BanUnit:     req.BanUnit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type appealSubmitRequest struct {
	AppealType  string `json:"appealType"`
	Reason      string `json:"reason"`
	ContentType string `json:"contentType,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
}

func (h *Handler) handleSubmitAppeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req appealSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.appeals.Submit(ctx, appeal.SubmitRequest{
		UserID:      requestcontext.UserID(ctx),
		Type:        appeal.Type(req.AppealType),
		Reason:      req.Reason,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleMyAppeals(w http.ResponseWriter, r *http.Request) {
	appeals, err := h.appeals.ListForUser(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if appeals == nil {
		appeals = []*appeal.Appeal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appeals": appeals})
}

const defaultListLimit = 100

func (h *Handler) handleListAppeals(w http.ResponseWriter, r *http.Request) {
	status := appeal.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = appeal.StatusPending
	}
	switch status {
	case appeal.StatusPending, appeal.StatusApproved, appeal.StatusRejected, appeal.StatusAutoResolved:
	default:
		writeError(w, dErrors.New(dErrors.CodeValidation, "unknown appeal status"))
		return
	}

	appeals, err := h.appeals.ListByStatus(r.Context(), status, defaultListLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	if appeals == nil {
		appeals = []*appeal.Appeal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appeals": appeals})
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (h *Handler) handleReviewAppeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.allow(ctx); err != nil {
		writeError(w, err)
		return
	}
	appealID, err := id.ParseAppealID(chi.URLParam(r, "appealID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.appeals.Review(ctx, requestcontext.UserID(ctx), appealID, appeal.Decision(req.Decision), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type archiveRequest struct {
	Limit int `json:"limit"`
}

func (h *Handler) handleArchiveReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.allow(ctx); err != nil {
		writeError(w, err)
		return
	}
	var req archiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	moved, err := h.archiver.ArchiveResolved(ctx, requestcontext.UserID(ctx), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"archived": moved})
}

type banStatusResponse struct {
	Username         string     `json:"username"`
	Banned           bool       `json:"banned"`
	Permanent        bool       `json:"permanent,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RemainingSeconds int64      `json:"remainingSeconds,omitempty"`
}

// handlePublicBanStatus is the read-only public check. The read applies lazy
// expiry, so asking about a lapsed ban unbans as a side effect.
func (h *Handler) handlePublicBanStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")

	p, err := h.bans.StatusByAccountName(ctx, username)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := banStatusResponse{Username: p.AccountName, Banned: p.IsBanned}
	if p.IsBanned {
		if p.BanExpiresAt == nil {
			resp.Permanent = true
		} else {
			resp.ExpiresAt = p.BanExpiresAt
			if remaining := p.BanExpiresAt.Sub(requestcontext.Now(ctx)); remaining > 0 {
				resp.RemainingSeconds = int64(remaining.Seconds())
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for _, hc := range h.health {
		if err := hc.Check(ctx); err != nil {
			checks[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[hc.Name] = "ok"
	}
	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

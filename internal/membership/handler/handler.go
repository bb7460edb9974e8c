package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trellis/internal/membership/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/httputil"
	"trellis/pkg/requestcontext"
)

// Service defines the membership mutations the handler exposes.
type Service interface {
	Add(ctx context.Context, callerID id.UserID, projectID id.ProjectID, userID id.UserID, role id.Role) (*models.Membership, error)
	ChangeRole(ctx context.Context, callerID id.UserID, membershipID id.MembershipID, role id.Role) (*models.Membership, error)
	Remove(ctx context.Context, callerID id.UserID, membershipID id.MembershipID) (*models.Membership, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts membership routes and the role catalog. The caller must
// already be authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Get("/roles", h.handleListRoles)
	r.Post("/projects/{id}/members", h.handleAdd)
	r.Patch("/members/{id}", h.handleChangeRole)
	r.Delete("/members/{id}", h.handleRemove)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AddMemberRequest](w, r, h.logger)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	m, err := h.svc.Add(ctx, callerID, projectID, userID, role)
	if err != nil {
		h.logError(ctx, "add member failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.ToMembershipResponse(m))
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	membershipID, ok := httputil.PathID(w, r, "id", id.ParseMembershipID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ChangeRoleRequest](w, r, h.logger)
	if !ok {
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	m, err := h.svc.ChangeRole(ctx, callerID, membershipID, role)
	if err != nil {
		h.logError(ctx, "change role failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToMembershipResponse(m))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	membershipID, ok := httputil.PathID(w, r, "id", id.ParseMembershipID)
	if !ok {
		return
	}

	m, err := h.svc.Remove(ctx, callerID, membershipID)
	if err != nil {
		h.logError(ctx, "remove member failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToMembershipResponse(m))
}

func (h *Handler) handleListRoles(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.RoleCatalog())
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

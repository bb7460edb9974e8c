package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trellis/internal/status/models"
	"trellis/pkg/platform/httputil"
	"trellis/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context) ([]models.Status, error)
	Create(ctx context.Context, name string) (*models.Status, error)
}

// Handler exposes the status catalog. Reads need a signed-in user; creation
// is guarded by the operator token.
type Handler struct {
	svc          Service
	logger       *slog.Logger
	requireAuth  func(http.Handler) http.Handler
	requireAdmin func(http.Handler) http.Handler
}

func New(svc Service, logger *slog.Logger, requireAuth, requireAdmin func(http.Handler) http.Handler) *Handler {
	return &Handler{svc: svc, logger: logger, requireAuth: requireAuth, requireAdmin: requireAdmin}
}

func (h *Handler) Register(r chi.Router) {
	r.With(h.requireAuth).Get("/statuses", h.handleList)
	r.With(h.requireAdmin).Post("/admin/statuses", h.handleCreate)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.svc.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list statuses failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	if list == nil {
		list = []models.Status{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"statuses": list})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateStatusRequest](w, r, h.logger)
	if !ok {
		return
	}
	st, err := h.svc.Create(ctx, req.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "create status failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, st)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trellis/internal/identity/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/httputil"
	"trellis/pkg/requestcontext"
)

// Service defines the identity operations the handler needs.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// Handler serves registration, login, the caller's own profile and the
// user directory.
type Handler struct {
	svc         Service
	logger      *slog.Logger
	requireAuth func(http.Handler) http.Handler
}

func New(svc Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{svc: svc, logger: logger, requireAuth: requireAuth}
}

// Register mounts the public auth routes and the authenticated /auth/me route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.With(h.requireAuth).Get("/auth/me", h.handleMe)
}

// RegisterDirectory mounts the user directory. The caller must already be
// authenticated.
func (h *Handler) RegisterDirectory(r chi.Router) {
	r.Get("/users", h.handleListUsers)
	r.Get("/users/{username}", h.handleGetUser)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}
	u, err := h.svc.Register(ctx, req)
	if err != nil {
		h.logError(ctx, "register failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.ToUserResponse(u))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.svc.Login(ctx, req)
	if err != nil {
		h.logError(ctx, "login failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	u, err := h.svc.GetUser(ctx, userID)
	if err != nil {
		h.logError(ctx, "load profile failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToUserResponse(u))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.svc.List(ctx)
	if err != nil {
		h.logError(ctx, "list users failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]models.DirectoryEntry, len(users))
	for i := range users {
		out[i] = models.ToDirectoryEntry(&users[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := h.svc.FindByUsername(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.logError(ctx, "find user failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToDirectoryEntry(u))
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

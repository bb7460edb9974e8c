package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	membershipmodels "trellis/internal/membership/models"
	"trellis/internal/project/models"
	"trellis/internal/view"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/httputil"
	"trellis/pkg/requestcontext"
)

// Service defines the project operations the handler exposes.
type Service interface {
	Create(ctx context.Context, callerID id.UserID, in models.Input) (*models.Project, id.Role, error)
	Get(ctx context.Context, callerID id.UserID, projectID id.ProjectID) (*models.Project, id.Role, error)
	ListMine(ctx context.Context, callerID id.UserID) ([]models.Project, map[id.ProjectID]id.Role, error)
	Members(ctx context.Context, callerID id.UserID, projectID id.ProjectID) ([]membershipmodels.Membership, id.Role, error)
	Update(ctx context.Context, callerID id.UserID, projectID id.ProjectID, patch models.Patch) (*models.Project, id.Role, error)
	ChangeStatus(ctx context.Context, callerID id.UserID, projectID id.ProjectID, statusID id.StatusID) (*models.Project, id.Role, error)
	Delete(ctx context.Context, callerID id.UserID, projectID id.ProjectID) (*models.Project, id.Role, error)
}

// Renderer builds the read views of projects.
type Renderer interface {
	Project(ctx context.Context, p *models.Project, role id.Role) (*view.ProjectView, error)
	Projects(ctx context.Context, projects []models.Project, roles map[id.ProjectID]id.Role) ([]view.ProjectSummary, error)
	Members(ctx context.Context, members []membershipmodels.Membership) ([]view.MemberView, error)
}

type Handler struct {
	svc    Service
	views  Renderer
	logger *slog.Logger
}

func New(svc Service, views Renderer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, views: views, logger: logger}
}

type projectListResponse struct {
	Projects []view.ProjectSummary `json:"projects"`
}

type memberListResponse struct {
	Members []view.MemberView `json:"members"`
	MyRole  string            `json:"my_role"`
}

// Register mounts project routes. The caller must already be authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Post("/projects", h.handleCreate)
	r.Get("/projects", h.handleList)
	r.Get("/projects/{id}", h.handleGet)
	r.Patch("/projects/{id}", h.handleUpdate)
	r.Delete("/projects/{id}", h.handleDelete)
	r.Put("/projects/{id}/status", h.handleChangeStatus)
	r.Get("/projects/{id}/members", h.handleMembers)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateProjectRequest](w, r, h.logger)
	if !ok {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, role, err := h.svc.Create(ctx, callerID, in)
	if err != nil {
		h.logError(ctx, "create project failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view.ToProjectResponse(p, role))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}

	projects, roles, err := h.svc.ListMine(ctx, callerID)
	if err != nil {
		h.logError(ctx, "list projects failed", err)
		httputil.WriteError(w, err)
		return
	}
	summaries, err := h.views.Projects(ctx, projects, roles)
	if err != nil {
		h.logError(ctx, "render projects failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, projectListResponse{Projects: summaries})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}

	p, role, err := h.svc.Get(ctx, callerID, projectID)
	if err != nil {
		h.logError(ctx, "get project failed", err)
		httputil.WriteError(w, err)
		return
	}
	v, err := h.views.Project(ctx, p, role)
	if err != nil {
		h.logError(ctx, "render project failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}

	members, role, err := h.svc.Members(ctx, callerID, projectID)
	if err != nil {
		h.logError(ctx, "list members failed", err)
		httputil.WriteError(w, err)
		return
	}
	views, err := h.views.Members(ctx, members)
	if err != nil {
		h.logError(ctx, "render members failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, memberListResponse{Members: views, MyRole: role.String()})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateProjectRequest](w, r, h.logger)
	if !ok {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, role, err := h.svc.Update(ctx, callerID, projectID, patch)
	if err != nil {
		h.logError(ctx, "update project failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view.ToProjectResponse(p, role))
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ChangeStatusRequest](w, r, h.logger)
	if !ok {
		return
	}
	statusID, err := id.ParseStatusID(req.StatusID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, role, err := h.svc.ChangeStatus(ctx, callerID, projectID, statusID)
	if err != nil {
		h.logError(ctx, "change project status failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view.ToProjectResponse(p, role))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}

	p, role, err := h.svc.Delete(ctx, callerID, projectID)
	if err != nil {
		h.logError(ctx, "delete project failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view.ToProjectResponse(p, role))
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

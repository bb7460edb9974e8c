package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trellis/internal/audit"
	"trellis/internal/task/models"
	"trellis/internal/view"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/httputil"
	"trellis/pkg/requestcontext"
)

// Service defines the task operations the handler exposes.
type Service interface {
	Create(ctx context.Context, callerID id.UserID, projectID id.ProjectID, in models.Input) (*models.Task, id.Role, error)
	Update(ctx context.Context, callerID id.UserID, taskID id.TaskID, patch models.Patch) (*models.Task, id.Role, error)
	ChangeStatus(ctx context.Context, callerID id.UserID, taskID id.TaskID, statusID id.StatusID) (*models.Task, id.Role, error)
	Delete(ctx context.Context, callerID id.UserID, taskID id.TaskID) (*models.Task, id.Role, error)
	Get(ctx context.Context, callerID id.UserID, taskID id.TaskID) (*models.Task, id.Role, error)
	ListByProject(ctx context.Context, callerID id.UserID, projectID id.ProjectID, statusFilter *id.StatusID) ([]models.Task, id.Role, error)
	ListEvents(ctx context.Context, callerID id.UserID, taskID id.TaskID) ([]audit.Event, id.Role, error)
}

// Renderer builds the read views of tasks.
type Renderer interface {
	Task(ctx context.Context, t *models.Task, role id.Role) (*view.TaskView, error)
	Tasks(ctx context.Context, projectID id.ProjectID, tasks []models.Task) ([]view.TaskSummary, error)
}

type Handler struct {
	svc    Service
	views  Renderer
	logger *slog.Logger
}

func New(svc Service, views Renderer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, views: views, logger: logger}
}

type taskListResponse struct {
	Tasks  []view.TaskSummary `json:"tasks"`
	MyRole string             `json:"my_role"`
}

type eventListResponse struct {
	Events []audit.EventResponse `json:"events"`
}

// Register mounts task routes. The caller must already be authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Post("/projects/{id}/tasks", h.handleCreate)
	r.Get("/projects/{id}/tasks", h.handleList)
	r.Route("/tasks/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Put("/status", h.handleChangeStatus)
		r.Get("/events", h.handleEvents)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateTaskRequest](w, r, h.logger)
	if !ok {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	t, role, err := h.svc.Create(ctx, callerID, projectID, in)
	if err != nil {
		h.logError(ctx, "create task failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view.ToTaskResponse(t, role))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	projectID, ok := httputil.PathID(w, r, "id", id.ParseProjectID)
	if !ok {
		return
	}
	var filter *id.StatusID
	if raw := r.URL.Query().Get("status_id"); raw != "" {
		statusID, err := id.ParseStatusID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter = &statusID
	}

	tasks, role, err := h.svc.ListByProject(ctx, callerID, projectID, filter)
	if err != nil {
		h.logError(ctx, "list tasks failed", err)
		httputil.WriteError(w, err)
		return
	}
	summaries, err := h.views.Tasks(ctx, projectID, tasks)
	if err != nil {
		h.logError(ctx, "render tasks failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, taskListResponse{Tasks: summaries, MyRole: role.String()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.PathID(w, r, "id", id.ParseTaskID)
	if !ok {
		return
	}

	t, role, err := h.svc.Get(ctx, callerID, taskID)
	if err != nil {
		h.logError(ctx, "get task failed", err)
		httputil.WriteError(w, err)
		return
	}
	v, err := h.views.Task(ctx, t, role)
	if err != nil {
		h.logError(ctx, "render task failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.PathID(w, r, "id", id.ParseTaskID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateTaskRequest](w, r, h.logger)
	if !ok {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	t, role, err := h.svc.Update(ctx, callerID, taskID, patch)
	if err != nil {
		h.logError(ctx, "update task failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view.ToTaskResponse(t, role))
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.PathID(w, r, "id", id.ParseTaskID)
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

	t, role, err := h.svc.ChangeStatus(ctx, callerID, taskID, statusID)
	if err != nil {
		h.logError(ctx, "change task status failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view.ToTaskResponse(t, role))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.PathID(w, r, "id", id.ParseTaskID)
	if !ok {
		return
	}

	t, role, err := h.svc.Delete(ctx, callerID, taskID)
	if err != nil {
		h.logError(ctx, "delete task failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view.ToTaskResponse(t, role))
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, ok := httputil.Caller(w, r)
	if !ok {
		return
	}
	taskID, ok := httputil.PathID(w, r, "id", id.ParseTaskID)
	if !ok {
		return
	}

	events, _, err := h.svc.ListEvents(ctx, callerID, taskID)
	if err != nil {
		h.logError(ctx, "list task events failed", err)
		httputil.WriteError(w, err)
		return
	}
	resp := eventListResponse{Events: make([]audit.EventResponse, len(events))}
	for i, e := range events {
		resp.Events[i] = audit.ToEventResponse(e)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
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

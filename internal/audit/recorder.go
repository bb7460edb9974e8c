// Package audit records the human-readable history of each task.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/sentinel"
	"trellis/pkg/requestcontext"
)

// Store persists events. Append assigns Seq.
type Store interface {
	Append(ctx context.Context, e *Event) error
	Latest(ctx context.Context, taskID id.TaskID) (*Event, error)
	ListByTask(ctx context.Context, taskID id.TaskID) ([]Event, error)
	DeleteByTask(ctx context.Context, taskID id.TaskID) (int, error)
	DeleteByTasks(ctx context.Context, taskIDs []id.TaskID) (int, error)
}

// Outbox receives every recorded event in the same unit of work, for
// relaying to the event feed after commit.
type Outbox interface {
	Enqueue(ctx context.Context, e Event) error
}

// Recorder appends task history. It never decides what changed; callers
// pass the finished description.
type Recorder struct {
	store  Store
	outbox Outbox
	logger *slog.Logger
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithOutbox mirrors recorded events into the feed outbox.
func WithOutbox(outbox Outbox) Option {
	return func(r *Recorder) {
		r.outbox = outbox
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an event to the task's history. A zero at means the request
// time. Timestamps never go backwards within a task: an earlier at is raised
// to the latest recorded timestamp.
func (r *Recorder) Record(ctx context.Context, taskID id.TaskID, description string, at time.Time) (*Event, error) {
	if description == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit event requires a description")
	}
	if at.IsZero() {
		at = requestcontext.Now(ctx)
	}

	latest, err := r.store.Latest(ctx, taskID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		// first event for this task
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load task history")
	case at.Before(latest.OccurredAt):
		at = latest.OccurredAt
	}

	e := &Event{
		ID:          id.EventID(uuid.New()),
		TaskID:      taskID,
		Description: description,
		OccurredAt:  at,
	}
	if err := r.store.Append(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record task event")
	}
	if r.outbox != nil {
		if err := r.outbox.Enqueue(ctx, *e); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue task event")
		}
	}
	if r.logger != nil {
		r.logger.DebugContext(ctx, "task event recorded",
			"task_id", taskID.String(),
			"event_id", e.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return e, nil
}

// EventsOf returns the task's history, oldest first. An unknown task has no history.
func (r *Recorder) EventsOf(ctx context.Context, taskID id.TaskID) ([]Event, error) {
	events, err := r.store.ListByTask(ctx, taskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load task history")
	}
	return events, nil
}

// DeleteAllOf drops a task's history. Only task deletion calls it.
func (r *Recorder) DeleteAllOf(ctx context.Context, taskID id.TaskID) (int, error) {
	n, err := r.store.DeleteByTask(ctx, taskID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete task history")
	}
	return n, nil
}

// DeleteAllOfTasks drops the history of several tasks at once, for project deletion.
func (r *Recorder) DeleteAllOfTasks(ctx context.Context, taskIDs []id.TaskID) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	n, err := r.store.DeleteByTasks(ctx, taskIDs)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete task history")
	}
	return n, nil
}

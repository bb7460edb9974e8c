package audit

import (
	"time"

	id "trellis/pkg/domain"
)

// Event is one line of a task's history. Events are append-only and ordered
// by OccurredAt, then Seq.
type Event struct {
	ID          id.EventID
	TaskID      id.TaskID
	Description string
	OccurredAt  time.Time
	Seq         int64
}

// EventResponse is the wire form of an Event.
type EventResponse struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func ToEventResponse(e Event) EventResponse {
	return EventResponse{
		ID:          e.ID.String(),
		TaskID:      e.TaskID.String(),
		Description: e.Description,
		OccurredAt:  e.OccurredAt,
	}
}

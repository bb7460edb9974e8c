package models

import (
	"strings"
	"time"

	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
)

const (
	MinNameLen = 1
	MaxNameLen = 50
)

// Status is a named workflow state shared by projects and tasks.
type Status struct {
	ID        id.StatusID `json:"id"`
	Name      string      `json:"name"`
	Position  int         `json:"position"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewStatus(statusID id.StatusID, name string, position int, now time.Time) (*Status, error) {
	name = strings.TrimSpace(name)
	if len(name) < MinNameLen || len(name) > MaxNameLen {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "status name must be between 1 and 50 characters")
	}
	if position < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "status position must not be negative")
	}
	return &Status{ID: statusID, Name: name, Position: position, CreatedAt: now}, nil
}

type CreateStatusRequest struct {
	Name string `json:"name"`
}

func (r *CreateStatusRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *CreateStatusRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > MaxNameLen {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 50 characters")
	}
	return nil
}

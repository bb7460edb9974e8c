package models

import (
	"time"
	"unicode/utf8"

	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
)

const (
	MinNameLen        = 3
	MaxNameLen        = 100
	MaxDescriptionLen = 500
)

// Task is a unit of work inside one project. ProjectID never changes after
// creation; AssigneeID, when set, names a membership of the same project.
type Task struct {
	ID          id.TaskID
	ProjectID   id.ProjectID
	Name        string
	Description string
	DueDate     *time.Time
	Priority    int
	AssigneeID  *id.MembershipID
	StatusID    id.StatusID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input carries the caller-supplied fields of a new task. A nil StatusID
// selects the catalog default.
type Input struct {
	Name        string
	Description string
	DueDate     *time.Time
	Priority    int
	StatusID    *id.StatusID
	AssigneeID  *id.MembershipID
}

// Patch is a partial update. Nil fields are left unchanged. ClearAssignee
// and ClearDueDate win over the corresponding value fields.
type Patch struct {
	Name          *string
	Description   *string
	DueDate       *time.Time
	ClearDueDate  bool
	Priority      *int
	StatusID      *id.StatusID
	AssigneeID    *id.MembershipID
	ClearAssignee bool
}

func NewTask(taskID id.TaskID, projectID id.ProjectID, in Input, statusID id.StatusID, now time.Time) (*Task, error) {
	t := &Task{
		ID:          taskID,
		ProjectID:   projectID,
		Name:        in.Name,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		StatusID:    statusID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the field invariants of t.
func (t *Task) Validate() error {
	if t.ProjectID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "task requires a project")
	}
	if n := utf8.RuneCountInString(t.Name); n < MinNameLen || n > MaxNameLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "task name must be between 3 and 100 characters")
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "task description must be at most 500 characters")
	}
	if t.Priority < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "task priority must not be negative")
	}
	if t.StatusID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "task requires a status")
	}
	return nil
}

// SameAssignee reports whether two optional assignees are equal.
func SameAssignee(a, b *id.MembershipID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

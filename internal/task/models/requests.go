package models

import (
	"strings"

	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/httputil"
)

type CreateTaskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Priority    int    `json:"priority"`
	StatusID    string `json:"status_id"`
	AssigneeID  string `json:"assignee_id"`
}

func (r *CreateTaskRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateTaskRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Priority < 0 {
		return dErrors.New(dErrors.CodeValidation, "priority must not be negative")
	}
	return nil
}

// ToInput parses the identifiers and dates of the request.
func (r *CreateTaskRequest) ToInput() (Input, error) {
	in := Input{Name: r.Name, Description: r.Description, Priority: r.Priority}
	if r.DueDate != "" {
		d, err := httputil.ParseDate("due_date", r.DueDate)
		if err != nil {
			return in, err
		}
		in.DueDate = &d
	}
	if r.StatusID != "" {
		statusID, err := id.ParseStatusID(r.StatusID)
		if err != nil {
			return in, err
		}
		in.StatusID = &statusID
	}
	if r.AssigneeID != "" {
		assigneeID, err := id.ParseMembershipID(r.AssigneeID)
		if err != nil {
			return in, err
		}
		in.AssigneeID = &assigneeID
	}
	return in, nil
}

// UpdateTaskRequest is a partial update. "assignee_id": null or
// "clear_assignee": true removes the assignee; "due_date": null clears the date.
type UpdateTaskRequest struct {
	Name          *string                   `json:"name"`
	Description   *string                   `json:"description"`
	DueDate       httputil.Optional[string] `json:"due_date"`
	Priority      *int                      `json:"priority"`
	StatusID      *string                   `json:"status_id"`
	AssigneeID    httputil.Optional[string] `json:"assignee_id"`
	ClearAssignee bool                      `json:"clear_assignee"`
}

func (r *UpdateTaskRequest) Normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
	}
}

func (r *UpdateTaskRequest) Validate() error {
	if r.Priority != nil && *r.Priority < 0 {
		return dErrors.New(dErrors.CodeValidation, "priority must not be negative")
	}
	if r.ClearAssignee && r.AssigneeID.Set && !r.AssigneeID.Null {
		return dErrors.New(dErrors.CodeValidation, "assignee_id and clear_assignee are mutually exclusive")
	}
	return nil
}

func (r *UpdateTaskRequest) ToPatch() (Patch, error) {
	p := Patch{
		Name:          r.Name,
		Description:   r.Description,
		Priority:      r.Priority,
		ClearAssignee: r.ClearAssignee,
	}
	if r.DueDate.Set {
		if r.DueDate.Null || r.DueDate.Value == "" {
			p.ClearDueDate = true
		} else {
			d, err := httputil.ParseDate("due_date", r.DueDate.Value)
			if err != nil {
				return p, err
			}
			p.DueDate = &d
		}
	}
	if r.StatusID != nil {
		statusID, err := id.ParseStatusID(*r.StatusID)
		if err != nil {
			return p, err
		}
		p.StatusID = &statusID
	}
	if r.AssigneeID.Set {
		if r.AssigneeID.Null || r.AssigneeID.Value == "" {
			p.ClearAssignee = true
		} else {
			assigneeID, err := id.ParseMembershipID(r.AssigneeID.Value)
			if err != nil {
				return p, err
			}
			p.AssigneeID = &assigneeID
		}
	}
	return p, nil
}

type ChangeStatusRequest struct {
	StatusID string `json:"status_id"`
}

func (r *ChangeStatusRequest) Validate() error {
	if r.StatusID == "" {
		return dErrors.New(dErrors.CodeValidation, "status_id is required")
	}
	return nil
}

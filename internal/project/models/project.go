package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/httputil"
)

const (
	MinNameLen        = 3
	MaxNameLen        = 100
	MaxDescriptionLen = 500
)

// Project groups members and tasks. Dates are calendar dates at midnight UTC.
type Project struct {
	ID          id.ProjectID
	Name        string
	Description string
	StartDate   time.Time
	EndDate     *time.Time
	StatusID    id.StatusID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input carries the fields of a new project. A nil StatusID selects the
// catalog default.
type Input struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     *time.Time
	StatusID    *id.StatusID
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Name         *string
	Description  *string
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
}

func NewProject(projectID id.ProjectID, in Input, statusID id.StatusID, now time.Time) (*Project, error) {
	p := &Project{
		ID:          projectID,
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		StatusID:    statusID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) Validate() error {
	if n := utf8.RuneCountInString(p.Name); n < MinNameLen || n > MaxNameLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "project name must be between 3 and 100 characters")
	}
	if utf8.RuneCountInString(p.Description) > MaxDescriptionLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "project description must be at most 500 characters")
	}
	if p.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "project start date is required")
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return dErrors.New(dErrors.CodeInvariantViolation, "project end date must not precede its start date")
	}
	if p.StatusID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "project requires a status")
	}
	return nil
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	StatusID    string `json:"status_id"`
}

func (r *CreateProjectRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateProjectRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.StartDate == "" {
		return dErrors.New(dErrors.CodeValidation, "start_date is required")
	}
	return nil
}

func (r *CreateProjectRequest) ToInput() (Input, error) {
	in := Input{Name: r.Name, Description: r.Description}
	start, err := httputil.ParseDate("start_date", r.StartDate)
	if err != nil {
		return in, err
	}
	in.StartDate = start
	if r.EndDate != "" {
		end, err := httputil.ParseDate("end_date", r.EndDate)
		if err != nil {
			return in, err
		}
		in.EndDate = &end
	}
	if r.StatusID != "" {
		statusID, err := id.ParseStatusID(r.StatusID)
		if err != nil {
			return in, err
		}
		in.StatusID = &statusID
	}
	return in, nil
}

// UpdateProjectRequest is a partial update. "end_date": null clears the end date.
type UpdateProjectRequest struct {
	Name        *string                   `json:"name"`
	Description *string                   `json:"description"`
	StartDate   *string                   `json:"start_date"`
	EndDate     httputil.Optional[string] `json:"end_date"`
}

func (r *UpdateProjectRequest) Normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
	}
}

func (r *UpdateProjectRequest) ToPatch() (Patch, error) {
	p := Patch{Name: r.Name, Description: r.Description}
	if r.StartDate != nil {
		start, err := httputil.ParseDate("start_date", *r.StartDate)
		if err != nil {
			return p, err
		}
		p.StartDate = &start
	}
	if r.EndDate.Set {
		if r.EndDate.Null || r.EndDate.Value == "" {
			p.ClearEndDate = true
		} else {
			end, err := httputil.ParseDate("end_date", r.EndDate.Value)
			if err != nil {
				return p, err
			}
			p.EndDate = &end
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

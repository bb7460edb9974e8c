package models

import (
	"time"

	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
)

// Membership grants a user one role within one project.
type Membership struct {
	ID        id.MembershipID
	ProjectID id.ProjectID
	UserID    id.UserID
	Role      id.Role
	CreatedAt time.Time
}

func NewMembership(membershipID id.MembershipID, projectID id.ProjectID, userID id.UserID, role id.Role, now time.Time) (*Membership, error) {
	if projectID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "membership requires a project and a user")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "membership role is invalid")
	}
	return &Membership{
		ID:        membershipID,
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
	}, nil
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (r *AddMemberRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if r.Role == "" {
		return dErrors.New(dErrors.CodeValidation, "role is required")
	}
	return nil
}

type ChangeRoleRequest struct {
	Role string `json:"role"`
}

func (r *ChangeRoleRequest) Validate() error {
	if r.Role == "" {
		return dErrors.New(dErrors.CodeValidation, "role is required")
	}
	return nil
}

// MembershipResponse is the wire form of a membership.
type MembershipResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func ToMembershipResponse(m *Membership) MembershipResponse {
	return MembershipResponse{
		ID:        m.ID.String(),
		ProjectID: m.ProjectID.String(),
		UserID:    m.UserID.String(),
		Role:      m.Role.String(),
		CreatedAt: m.CreatedAt,
	}
}

// RoleResponse describes one role of the hierarchy. Higher ranks include the
// permissions of lower ones.
type RoleResponse struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// RoleCatalog lists every role, lowest rank first.
func RoleCatalog() []RoleResponse {
	roles := id.Roles()
	out := make([]RoleResponse, len(roles))
	for i, r := range roles {
		out[i] = RoleResponse{Name: r.String(), Rank: r.Rank()}
	}
	return out
}

package service

import (
	"context"
	"errors"

	"trellis/internal/membership/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/sentinel"
)

// Store persists memberships.
type Store interface {
	Create(ctx context.Context, m *models.Membership) error
	FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
	FindByProjectAndUser(ctx context.Context, projectID id.ProjectID, userID id.UserID) (*models.Membership, error)
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]models.Membership, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]models.Membership, error)
	UpdateRole(ctx context.Context, membershipID id.MembershipID, role id.Role) error
	Delete(ctx context.Context, membershipID id.MembershipID) error
	DeleteByProject(ctx context.Context, projectID id.ProjectID) (int, error)
}

// Directory answers membership questions without authorizing the caller.
// It is the role source for the authorization gate.
type Directory struct {
	store Store
}

func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// RoleOf returns the user's role in the project. found is false when the
// user has no membership there.
func (d *Directory) RoleOf(ctx context.Context, projectID id.ProjectID, userID id.UserID) (id.Role, bool, error) {
	m, err := d.store.FindByProjectAndUser(ctx, projectID, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return m.Role, true, nil
}

// MembersOf lists a project's memberships in the order they were added.
func (d *Directory) MembersOf(ctx context.Context, projectID id.ProjectID) ([]models.Membership, error) {
	list, err := d.store.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	return list, nil
}

// MembershipsOf lists every membership a user holds.
func (d *Directory) MembershipsOf(ctx context.Context, userID id.UserID) ([]models.Membership, error) {
	list, err := d.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}
	return list, nil
}

func (d *Directory) Get(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	m, err := d.store.FindByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "membership not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return m, nil
}

package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trellis/internal/membership/models"
	"trellis/internal/storage/postgres"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

const pairConstraint = "memberships_project_user_key"

// PostgresStore persists memberships. Insertion order is the seq column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const membershipColumns = `id, project_id, user_id, role, created_at`

func (s *PostgresStore) Create(ctx context.Context, m *models.Membership) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(m.ID), uuid.UUID(m.ProjectID), uuid.UUID(m.UserID), m.Role.String(), m.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, pairConstraint) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	m, err := scanMembership(postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, uuid.UUID(membershipID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) FindByProjectAndUser(ctx context.Context, projectID id.ProjectID, userID id.UserID) (*models.Membership, error) {
	m, err := scanMembership(postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE project_id = $1 AND user_id = $2`,
		uuid.UUID(projectID), uuid.UUID(userID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID id.ProjectID) ([]models.Membership, error) {
	return s.list(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE project_id = $1 ORDER BY seq`, uuid.UUID(projectID))
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]models.Membership, error) {
	return s.list(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY seq`, uuid.UUID(userID))
}

func (s *PostgresStore) UpdateRole(ctx context.Context, membershipID id.MembershipID, role id.Role) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE memberships SET role = $2 WHERE id = $1`, uuid.UUID(membershipID), role.String())
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, membershipID id.MembershipID) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, uuid.UUID(membershipID))
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteByProject(ctx context.Context, projectID id.ProjectID) (int, error) {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM memberships WHERE project_id = $1`, uuid.UUID(projectID))
	if err != nil {
		return 0, fmt.Errorf("delete project memberships: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]models.Membership, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()
	var out []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMembership(row scanner) (*models.Membership, error) {
	var (
		m                      models.Membership
		rowID, project, member uuid.UUID
		role                   string
	)
	if err := row.Scan(&rowID, &project, &member, &role, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	parsed, err := id.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	m.ID = id.MembershipID(rowID)
	m.ProjectID = id.ProjectID(project)
	m.UserID = id.UserID(member)
	m.Role = parsed
	return &m, nil
}

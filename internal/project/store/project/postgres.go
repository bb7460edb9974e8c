package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trellis/internal/project/models"
	"trellis/internal/storage/postgres"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const projectColumns = `id, name, description, start_date, end_date, status_id, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Project) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(p.ID), p.Name, p.Description, p.StartDate, postgres.NullTime(p.EndDate),
		uuid.UUID(p.StatusID), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	p, err := scanProject(postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, uuid.UUID(projectID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

// FindByIDs returns the projects that exist among ids, in the order given.
func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.ProjectID) ([]models.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, projectID := range ids {
		raw[i] = projectID.String()
	}
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects
		WHERE id = ANY($1::uuid[])
		ORDER BY array_position($1::uuid[], id)`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Exists(ctx context.Context, projectID id.ProjectID) (bool, error) {
	var exists bool
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, uuid.UUID(projectID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check project: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Project) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE projects SET name = $2, description = $3, start_date = $4, end_date = $5,
			status_id = $6, updated_at = $7
		WHERE id = $1`,
		uuid.UUID(p.ID), p.Name, p.Description, p.StartDate, postgres.NullTime(p.EndDate),
		uuid.UUID(p.StatusID), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, projectID id.ProjectID) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, uuid.UUID(projectID))
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*models.Project, error) {
	var (
		p                 models.Project
		projectID, status uuid.UUID
		end               sql.NullTime
	)
	err := row.Scan(&projectID, &p.Name, &p.Description, &p.StartDate, &end, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.ID = id.ProjectID(projectID)
	p.StatusID = id.StatusID(status)
	p.EndDate = postgres.TimePtr(end)
	return &p, nil
}

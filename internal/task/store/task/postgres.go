package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trellis/internal/storage/postgres"
	"trellis/internal/task/models"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// PostgresStore persists tasks. Creation order is the seq column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const taskColumns = `id, project_id, name, description, due_date, priority, assignee_id, status_id, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, t *models.Task) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(t.ID), uuid.UUID(t.ProjectID), t.Name, t.Description, postgres.NullTime(t.DueDate),
		t.Priority, nullMembership(t.AssigneeID), uuid.UUID(t.StatusID), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, taskID id.TaskID) (*models.Task, error) {
	return s.find(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
}

// FindByIDForUpdate takes the row lock. Outside a transaction the lock only
// lasts for the statement.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, taskID id.TaskID) (*models.Task, error) {
	return s.find(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, taskID)
}

func (s *PostgresStore) find(ctx context.Context, query string, taskID id.TaskID) (*models.Task, error) {
	t, err := scanTask(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(taskID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return t, err
}

// Update writes every mutable column. project_id is never rewritten.
func (s *PostgresStore) Update(ctx context.Context, t *models.Task) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE tasks SET name = $2, description = $3, due_date = $4, priority = $5,
			assignee_id = $6, status_id = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(t.ID), t.Name, t.Description, postgres.NullTime(t.DueDate), t.Priority,
		nullMembership(t.AssigneeID), uuid.UUID(t.StatusID), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, taskID id.TaskID) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, uuid.UUID(taskID))
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID id.ProjectID) ([]models.Task, error) {
	return s.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY seq`, uuid.UUID(projectID))
}

// ListByAssignee locks the returned rows; its only caller clears them.
func (s *PostgresStore) ListByAssignee(ctx context.Context, membershipID id.MembershipID) ([]models.Task, error) {
	return s.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assignee_id = $1 ORDER BY seq FOR UPDATE`, uuid.UUID(membershipID))
}

func (s *PostgresStore) DeleteByProject(ctx context.Context, projectID id.ProjectID) (int, error) {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM tasks WHERE project_id = $1`, uuid.UUID(projectID))
	if err != nil {
		return 0, fmt.Errorf("delete project tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]models.Task, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()
	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func nullMembership(m *id.MembershipID) uuid.NullUUID {
	if m == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*m), Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		t                       models.Task
		taskID, project, status uuid.UUID
		due                     sql.NullTime
		assignee                uuid.NullUUID
	)
	err := row.Scan(&taskID, &project, &t.Name, &t.Description, &due, &t.Priority,
		&assignee, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.ID = id.TaskID(taskID)
	t.ProjectID = id.ProjectID(project)
	t.StatusID = id.StatusID(status)
	t.DueDate = postgres.TimePtr(due)
	if assignee.Valid {
		m := id.MembershipID(assignee.UUID)
		t.AssigneeID = &m
	}
	return &t, nil
}

package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trellis/internal/audit"
	"trellis/internal/storage/postgres"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// PostgresStore persists task events. seq comes from a BIGSERIAL column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, task_id, description, occurred_at, seq`

func (s *PostgresStore) Append(ctx context.Context, e *audit.Event) error {
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`INSERT INTO task_events (id, task_id, description, occurred_at) VALUES ($1, $2, $3, $4) RETURNING seq`,
		uuid.UUID(e.ID), uuid.UUID(e.TaskID), e.Description, e.OccurredAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert task event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, taskID id.TaskID) (*audit.Event, error) {
	e, err := scanEvent(postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM task_events WHERE task_id = $1 ORDER BY occurred_at DESC, seq DESC LIMIT 1`,
		uuid.UUID(taskID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return e, err
}

func (s *PostgresStore) ListByTask(ctx context.Context, taskID id.TaskID) ([]audit.Event, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+eventColumns+` FROM task_events WHERE task_id = $1 ORDER BY occurred_at, seq`,
		uuid.UUID(taskID))
	if err != nil {
		return nil, fmt.Errorf("query task events: %w", err)
	}
	defer rows.Close()
	var out []audit.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByTask(ctx context.Context, taskID id.TaskID) (int, error) {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM task_events WHERE task_id = $1`, uuid.UUID(taskID))
	if err != nil {
		return 0, fmt.Errorf("delete task events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) DeleteByTasks(ctx context.Context, taskIDs []id.TaskID) (int, error) {
	raw := make([]string, len(taskIDs))
	for i, taskID := range taskIDs {
		raw[i] = taskID.String()
	}
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM task_events WHERE task_id = ANY($1::uuid[])`, pq.Array(raw))
	if err != nil {
		return 0, fmt.Errorf("delete task events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*audit.Event, error) {
	var (
		e              audit.Event
		eventID, owner uuid.UUID
	)
	if err := row.Scan(&eventID, &owner, &e.Description, &e.OccurredAt, &e.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task event: %w", err)
	}
	e.ID = id.EventID(eventID)
	e.TaskID = id.TaskID(owner)
	return &e, nil
}

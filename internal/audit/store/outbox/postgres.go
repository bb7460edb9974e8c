package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trellis/internal/audit"
	"trellis/internal/audit/feed"
	"trellis/internal/storage/postgres"
	id "trellis/pkg/domain"
)

// PostgresStore is the task_event_outbox table. Rows are written in the
// same transaction as the task event and claimed by the relay with
// FOR UPDATE SKIP LOCKED, so concurrent relays never publish the same batch.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Enqueue(ctx context.Context, e audit.Event) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO task_event_outbox (event_id, task_id, description, occurred_at) VALUES ($1, $2, $3, $4)`,
		uuid.UUID(e.ID), uuid.UUID(e.TaskID), e.Description, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]feed.Entry, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT seq, event_id, task_id, description, occurred_at
		   FROM task_event_outbox
		  WHERE published_at IS NULL
		  ORDER BY seq
		  LIMIT $1
		  FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []feed.Entry
	for rows.Next() {
		var (
			entry   feed.Entry
			eventID uuid.UUID
			taskID  uuid.UUID
		)
		if err := rows.Scan(&entry.Seq, &eventID, &taskID, &entry.Event.Description, &entry.Event.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entry.Event.ID = id.EventID(eventID)
		entry.Event.TaskID = id.TaskID(taskID)
		entry.Event.OccurredAt = entry.Event.OccurredAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, seqs []int64, at time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE task_event_outbox SET published_at = $1 WHERE seq = ANY($2)`,
		at, pq.Array(seqs))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

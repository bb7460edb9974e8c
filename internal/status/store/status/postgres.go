package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trellis/internal/status/models"
	"trellis/internal/storage/postgres"
	id "trellis/pkg/domain"
	"trellis/pkg/platform/sentinel"
)

// PostgresStore persists statuses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const statusColumns = `id, name, position, created_at`

func (s *PostgresStore) Create(ctx context.Context, st *models.Status) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO statuses (`+statusColumns+`) VALUES ($1, $2, $3, $4)`,
		uuid.UUID(st.ID), st.Name, st.Position, st.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "statuses_name_lower_idx") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, statusID id.StatusID) (*models.Status, error) {
	return s.findOne(ctx, `SELECT `+statusColumns+` FROM statuses WHERE id = $1`, uuid.UUID(statusID))
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Status, error) {
	return s.findOne(ctx, `SELECT `+statusColumns+` FROM statuses WHERE LOWER(name) = LOWER($1)`, name)
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Status, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+statusColumns+` FROM statuses ORDER BY position, LOWER(name)`)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer rows.Close()
	var out []models.Status
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, statusID id.StatusID) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM statuses WHERE id = $1`, uuid.UUID(statusID))
	if err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Status, error) {
	st, err := scanStatus(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return st, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(row scanner) (*models.Status, error) {
	var (
		st       models.Status
		statusID uuid.UUID
	)
	if err := row.Scan(&statusID, &st.Name, &st.Position, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan status: %w", err)
	}
	st.ID = id.StatusID(statusID)
	return &st, nil
}

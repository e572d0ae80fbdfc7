package quiz

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS quiz_answers (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	module     TEXT NOT NULL,
	answers    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS quiz_answers_user_id_idx ON quiz_answers (user_id);
CREATE INDEX IF NOT EXISTS quiz_answers_module_idx ON quiz_answers (module);
`

// PostgresRepository is a Postgres-backed implementation of Repository built
// on a pgx connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to databaseURL and ensures the schema
// exists.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("quiz: connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("quiz: ensure schema: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Save persists a submission.
func (r *PostgresRepository) Save(ctx context.Context, a *Answer) error {
	payload, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("quiz: marshal answers: %w", err)
	}

	const query = `
		INSERT INTO quiz_answers (id, user_id, module, answers, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, a.ID, a.UserID, a.Module, payload, a.CreatedAt); err != nil {
		return fmt.Errorf("quiz: save: %w", err)
	}
	return nil
}

// ListByUser returns a user's submissions sorted by creation time.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID, module string) ([]*Answer, error) {
	query := `
		SELECT id, user_id, module, answers, created_at
		FROM quiz_answers
		WHERE user_id = $1`
	args := []any{userID}
	if module != "" {
		query += " AND module = $2"
		args = append(args, module)
	}
	query += " ORDER BY created_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("quiz: list: %w", err)
	}
	defer rows.Close()

	var out []*Answer
	for rows.Next() {
		var (
			a       Answer
			payload []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Module, &payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("quiz: scan: %w", err)
		}
		if err := json.Unmarshal(payload, &a.Answers); err != nil {
			return nil, fmt.Errorf("quiz: unmarshal answers: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quiz: list: %w", err)
	}
	return out, nil
}

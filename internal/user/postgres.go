package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// schema creates the users table. Asset slots are nullable; a NULL slot
// means the asset has not been produced yet.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                          TEXT PRIMARY KEY,
	name                        TEXT NOT NULL DEFAULT '',
	image_url                   TEXT NOT NULL,
	voice_id                    TEXT NOT NULL,
	gender                      TEXT NOT NULL,
	lottery_faceswap_url        TEXT,
	crime_faceswap_url          TEXT,
	lottery_video_url           TEXT,
	crime_video_url             TEXT,
	investment_call_audio_url   TEXT,
	accident_call_audio_url     TEXT,
	face_opts                   TEXT,
	current_page                TEXT,
	current_step                INTEGER NOT NULL DEFAULT 0,
	completed_modules           TEXT[] NOT NULL DEFAULT '{}',
	pre_generation_status       TEXT NOT NULL DEFAULT 'pending',
	pre_generation_started_at   TIMESTAMPTZ,
	pre_generation_completed_at TIMESTAMPTZ,
	pre_generation_error        TEXT,
	created_at                  TIMESTAMPTZ NOT NULL,
	updated_at                  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS users_voice_id_idx ON users (voice_id);
`

const selectColumns = `id, name, image_url, voice_id, gender,
	lottery_faceswap_url, crime_faceswap_url,
	lottery_video_url, crime_video_url,
	investment_call_audio_url, accident_call_audio_url,
	face_opts, current_page, current_step, completed_modules,
	pre_generation_status, pre_generation_started_at,
	pre_generation_completed_at, pre_generation_error,
	created_at, updated_at`

// PostgresStore is a Postgres-backed implementation of Store built on a
// pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("user: connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("user: ensure schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Create persists a new user.
func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	const query = `
		INSERT INTO users (id, name, image_url, voice_id, gender,
			pre_generation_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Name, rec.ImageURL, rec.VoiceID, string(rec.Gender),
		string(rec.PreGenerationStatus), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("user: create: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", selectColumns)
	return s.queryOne(ctx, query, id)
}

// GetByVoiceID retrieves a user by cloned voice ID. When several users
// share a voice the most recently created one wins.
func (s *PostgresStore) GetByVoiceID(ctx context.Context, voiceID string) (*Record, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM users WHERE voice_id = $1 ORDER BY created_at DESC LIMIT 1",
		selectColumns)
	return s.queryOne(ctx, query, voiceID)
}

// Patch applies a partial update to the named columns.
func (s *PostgresStore) Patch(ctx context.Context, id string, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}

	sets := make([]string, 0, len(patch)+1)
	args := make([]any, 0, len(patch)+2)
	args = append(args, id)

	for col, val := range patch {
		args = append(args, normalizeValue(val))
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("user: patch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkInProgress atomically claims the user for a pre-generation run.
// The claim succeeds when no run is active, or when the active run
// started before cutoff and is therefore considered stuck.
func (s *PostgresStore) MarkInProgress(ctx context.Context, id string, startedAt, cutoff time.Time) (bool, error) {
	const query = `
		UPDATE users
		SET pre_generation_status = 'in_progress',
			pre_generation_started_at = $2,
			pre_generation_completed_at = NULL,
			pre_generation_error = NULL,
			updated_at = $2
		WHERE id = $1
			AND (pre_generation_status != 'in_progress'
				OR (pre_generation_started_at IS NOT NULL AND pre_generation_started_at < $3))`

	tag, err := s.pool.Exec(ctx, query, id, startedAt, cutoff)
	if err != nil {
		return false, fmt.Errorf("user: mark in progress: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish a lost claim from a missing user.
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// queryOne runs a single-row query and scans the record.
func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*Record, error) {
	row := s.pool.QueryRow(ctx, query, args...)

	var (
		rec         Record
		gender      string
		status      string
		lotteryImg  *string
		crimeImg    *string
		lotteryVid  *string
		crimeVid    *string
		investAudio *string
		accidAudio  *string
		faceOpts    *string
		currentPage *string
		genErr      *string
	)

	err := row.Scan(&rec.ID, &rec.Name, &rec.ImageURL, &rec.VoiceID, &gender,
		&lotteryImg, &crimeImg, &lotteryVid, &crimeVid,
		&investAudio, &accidAudio, &faceOpts, &currentPage,
		&rec.CurrentStep, &rec.CompletedModules,
		&status, &rec.PreGenerationStartedAt, &rec.PreGenerationCompletedAt,
		&genErr, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user: scan: %w", err)
	}

	rec.Gender = Gender(gender)
	rec.PreGenerationStatus = Status(status)
	rec.LotteryFaceSwapURL = deref(lotteryImg)
	rec.CrimeFaceSwapURL = deref(crimeImg)
	rec.LotteryVideoURL = deref(lotteryVid)
	rec.CrimeVideoURL = deref(crimeVid)
	rec.InvestmentCallAudioURL = deref(investAudio)
	rec.AccidentCallAudioURL = deref(accidAudio)
	rec.FaceOpts = deref(faceOpts)
	rec.CurrentPage = deref(currentPage)
	rec.PreGenerationError = deref(genErr)
	return &rec, nil
}

// normalizeValue maps Go zero conventions to SQL. Empty strings are stored
// as NULL so an unfilled asset slot reads back as absent.
func normalizeValue(val any) any {
	switch v := val.(type) {
	case Status:
		return string(v)
	case string:
		if v == "" {
			return nil
		}
		return v
	default:
		return val
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/easy-language-api/internal/database"
	"github.com/easy-language-api/internal/models"
)

// runMarkerRepo is the concrete implementation of RunMarkerRepository
type runMarkerRepo struct {
	db *database.DB
}

// NewRunMarkerRepo creates a new run marker repository
func NewRunMarkerRepo(db *database.DB) RunMarkerRepository {
	return &runMarkerRepo{db: db}
}

// Get retrieves the run marker for an object hash
func (r *runMarkerRepo) Get(ctx context.Context, objectHash string) (*models.RunMarker, error) {
	query := `SELECT object_hash, running_at, max_count, count, result, updated_at FROM run_markers WHERE object_hash = $1`

	var m models.RunMarker
	var result []byte
	err := r.db.QueryRowContext(ctx, query, objectHash).Scan(
		&m.ObjectHash, &m.RunningAt, &m.Max, &m.Count, &result, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		var res models.RunResult
		if err := json.Unmarshal(result, &res); err == nil {
			m.Result = &res
		}
	}
	return &m, nil
}

// TryStart atomically claims the run slot for an object. The update
// only matches when running_at is 0, so concurrent callers cannot both
// win; the loser sees false and reports AlreadyRunning.
func (r *runMarkerRepo) TryStart(ctx context.Context, objectHash string, startedAt time.Time, max int) (bool, error) {
	query := `
		INSERT INTO run_markers (object_hash, running_at, max_count, count, updated_at)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (object_hash) DO UPDATE SET
			running_at = EXCLUDED.running_at,
			max_count = EXCLUDED.max_count,
			count = 0,
			updated_at = EXCLUDED.updated_at
		WHERE run_markers.running_at = 0
	`
	result, err := r.db.ExecContext(ctx, query, objectHash, startedAt.Unix(), max, time.Now())
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// SetCount updates the progress counter of the current run
func (r *runMarkerRepo) SetCount(ctx context.Context, objectHash string, count int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE run_markers SET count = $1, updated_at = $2 WHERE object_hash = $3`,
		count, time.Now(), objectHash,
	)
	return err
}

// ClearRunning releases the run slot
func (r *runMarkerRepo) ClearRunning(ctx context.Context, objectHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE run_markers SET running_at = 0, updated_at = $1 WHERE object_hash = $2`,
		time.Now(), objectHash,
	)
	return err
}

// SetResult stores the terminal outcome payload for caller polling
func (r *runMarkerRepo) SetResult(ctx context.Context, objectHash string, result *models.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO run_markers (object_hash, result, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (object_hash) DO UPDATE SET
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query, objectHash, payload, time.Now())
	return err
}

// ClearResult drops a stale result payload before a new run
func (r *runMarkerRepo) ClearResult(ctx context.Context, objectHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE run_markers SET result = NULL, updated_at = $1 WHERE object_hash = $2`,
		time.Now(), objectHash,
	)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/easy-language-api/internal/database"
	"github.com/easy-language-api/internal/models"
)

// simplificationRepo is the concrete implementation of SimplificationRepository
type simplificationRepo struct {
	db *database.DB
}

// NewSimplificationRepo creates a new simplification repository
func NewSimplificationRepo(db *database.DB) SimplificationRepository {
	return &simplificationRepo{db: db}
}

const simplificationColumns = "id, text_id, simplified_text, hash, language, used_api, jobid, user_id, created_at"

// Create inserts a new simplification
func (r *simplificationRepo) Create(ctx context.Context, s *models.Simplification) error {
	query := `
		INSERT INTO simplifications (text_id, simplified_text, hash, language, used_api, jobid, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return r.db.QueryRowContext(ctx, query,
		s.TextID, s.SimplifiedText, s.Hash, s.TargetLanguage,
		s.UsedAPI, s.JobID, s.UserID, s.CreatedAt,
	).Scan(&s.ID)
}

// GetByText retrieves all simplifications of an original
func (r *simplificationRepo) GetByText(ctx context.Context, textID int64) ([]*models.Simplification, error) {
	query := `SELECT ` + simplificationColumns + ` FROM simplifications WHERE text_id = $1 ORDER BY language`
	rows, err := r.db.QueryContext(ctx, query, textID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sims []*models.Simplification
	for rows.Next() {
		var s models.Simplification
		err := rows.Scan(
			&s.ID, &s.TextID, &s.SimplifiedText, &s.Hash, &s.TargetLanguage,
			&s.UsedAPI, &s.JobID, &s.UserID, &s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		sims = append(sims, &s)
	}
	return sims, rows.Err()
}

// GetByTextAndLanguage retrieves the simplification of an original for
// one target language.
func (r *simplificationRepo) GetByTextAndLanguage(ctx context.Context, textID int64, language string) (*models.Simplification, error) {
	query := `SELECT ` + simplificationColumns + ` FROM simplifications WHERE text_id = $1 AND language = $2`

	var s models.Simplification
	err := r.db.QueryRowContext(ctx, query, textID, language).Scan(
		&s.ID, &s.TextID, &s.SimplifiedText, &s.Hash, &s.TargetLanguage,
		&s.UsedAPI, &s.JobID, &s.UserID, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetTextIDByHash finds the original whose simplification in the given
// language has the given content hash. Used to avoid re-importing text
// that is itself already a simplification.
func (r *simplificationRepo) GetTextIDByHash(ctx context.Context, hash, language string) (int64, error) {
	var textID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT text_id FROM simplifications WHERE hash = $1 AND language = $2 LIMIT 1`,
		hash, language,
	).Scan(&textID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return textID, nil
}

// DeleteByText removes all simplifications of an original
func (r *simplificationRepo) DeleteByText(ctx context.Context, textID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM simplifications WHERE text_id = $1`, textID)
	return err
}

// ResetAll clears the simplifications table. Irreversible.
func (r *simplificationRepo) ResetAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `TRUNCATE simplifications`)
	return err
}

// Count returns the total number of simplifications
func (r *simplificationRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM simplifications`).Scan(&count)
	return count, err
}

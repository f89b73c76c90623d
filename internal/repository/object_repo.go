package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/easy-language-api/internal/database"
	"github.com/easy-language-api/internal/models"
)

// objectRepo is the concrete implementation of ObjectRepository
type objectRepo struct {
	db *database.DB
}

// NewObjectRepo creates a new content object repository
func NewObjectRepo(db *database.DB) ObjectRepository {
	return &objectRepo{db: db}
}

const objectColumns = "id, type, title, body, language, original_id, automatic_mode_prevented, locked, state, created_at, updated_at"

// Create inserts a new content object
func (r *objectRepo) Create(ctx context.Context, obj *models.ContentObject) error {
	query := `
		INSERT INTO content_objects (type, title, body, language, original_id, automatic_mode_prevented, locked, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	now := time.Now()
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	obj.UpdatedAt = now
	if obj.State == "" {
		obj.State = models.ObjectStatePublished
	}
	return r.db.QueryRowContext(ctx, query,
		obj.Type, obj.Title, obj.Body, obj.Language, nullInt64(obj.OriginalID),
		obj.AutomaticModePrevented, obj.Locked, obj.State, obj.CreatedAt, obj.UpdatedAt,
	).Scan(&obj.ID)
}

// Update writes back an edited content object
func (r *objectRepo) Update(ctx context.Context, obj *models.ContentObject) error {
	query := `
		UPDATE content_objects SET
			title = $1, body = $2, language = $3, automatic_mode_prevented = $4,
			locked = $5, state = $6, updated_at = $7
		WHERE id = $8 AND type = $9
	`
	obj.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		obj.Title, obj.Body, obj.Language, obj.AutomaticModePrevented,
		obj.Locked, obj.State, obj.UpdatedAt, obj.ID, obj.Type,
	)
	return err
}

// GetByID retrieves a content object by id and type
func (r *objectRepo) GetByID(ctx context.Context, id int64, objectType string) (*models.ContentObject, error) {
	query := `SELECT ` + objectColumns + ` FROM content_objects WHERE id = $1 AND type = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, objectType))
}

// GetSimplifiedCopy retrieves the derived copy of an object for one
// target language, if it exists.
func (r *objectRepo) GetSimplifiedCopy(ctx context.Context, originalID int64, objectType, language string) (*models.ContentObject, error) {
	query := `SELECT ` + objectColumns + ` FROM content_objects WHERE original_id = $1 AND type = $2 AND language = $3`
	return r.scanOne(r.db.QueryRowContext(ctx, query, originalID, objectType, language))
}

// ListSimplifiable retrieves all source-language objects eligible for
// the automatic run: not derived copies, not trashed.
func (r *objectRepo) ListSimplifiable(ctx context.Context) ([]*models.ContentObject, error) {
	query := `SELECT ` + objectColumns + ` FROM content_objects WHERE original_id IS NULL AND state <> 'trash' ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []*models.ContentObject
	for rows.Next() {
		obj, err := scanObject(rows.Scan)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

func (r *objectRepo) scanOne(row *sql.Row) (*models.ContentObject, error) {
	obj, err := scanObject(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func scanObject(scan func(dest ...interface{}) error) (*models.ContentObject, error) {
	var obj models.ContentObject
	var originalID sql.NullInt64
	err := scan(
		&obj.ID, &obj.Type, &obj.Title, &obj.Body, &obj.Language, &originalID,
		&obj.AutomaticModePrevented, &obj.Locked, &obj.State,
		&obj.CreatedAt, &obj.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if originalID.Valid {
		obj.OriginalID = &originalID.Int64
	}
	return &obj, nil
}

// helper to convert a nil pointer to NULL
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/easy-language-api/internal/database"
	"github.com/easy-language-api/internal/models"
)

// textRepo is the concrete implementation of TextRepository
type textRepo struct {
	db *database.DB
}

// NewTextRepo creates a new text repository
func NewTextRepo(db *database.DB) TextRepository {
	return &textRepo{db: db}
}

const textColumns = "id, original, field, html, hash, lang, state, created_at"

// Create inserts a new original text
func (r *textRepo) Create(ctx context.Context, text *models.TextRecord) error {
	query := `
		INSERT INTO originals (original, field, html, hash, lang, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if text.CreatedAt.IsZero() {
		text.CreatedAt = time.Now()
	}
	return r.db.QueryRowContext(ctx, query,
		text.Original, text.Field, text.IsHTML, text.Hash,
		text.SourceLanguage, text.State, text.CreatedAt,
	).Scan(&text.ID)
}

// GetByID retrieves an original text by ID
func (r *textRepo) GetByID(ctx context.Context, id int64) (*models.TextRecord, error) {
	query := `SELECT ` + textColumns + ` FROM originals WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByHash retrieves an original text by content hash and source language
func (r *textRepo) GetByHash(ctx context.Context, hash, sourceLanguage string) (*models.TextRecord, error) {
	query := `SELECT ` + textColumns + ` FROM originals WHERE hash = $1 AND lang = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, hash, sourceLanguage))
}

// UpdateState sets the state of an original text
func (r *textRepo) UpdateState(ctx context.Context, id int64, state models.TextState) error {
	_, err := r.db.ExecContext(ctx, `UPDATE originals SET state = $1 WHERE id = $2`, state, id)
	return err
}

// Query retrieves original texts matching the filter
func (r *textRepo) Query(ctx context.Context, filter *models.TextFilter) ([]*models.TextRecord, error) {
	if filter == nil {
		filter = &models.TextFilter{}
	}

	var (
		conditions []string
		joins      []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ID != 0 {
		conditions = append(conditions, "t.id = "+arg(filter.ID))
	}
	if filter.Hash != "" {
		conditions = append(conditions, "t.hash = "+arg(filter.Hash))
	}
	if filter.Original != "" {
		conditions = append(conditions, "t.original = "+arg(filter.Original))
	}
	if filter.Field != "" {
		conditions = append(conditions, "t.field = "+arg(filter.Field))
	}
	if filter.State != "" {
		conditions = append(conditions, "t.state = "+arg(filter.State))
	}
	if filter.SourceLanguage != "" {
		conditions = append(conditions, "t.lang = "+arg(filter.SourceLanguage))
	}
	if filter.TargetLanguage != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM simplifications s WHERE s.text_id = t.id AND s.language = "+arg(filter.TargetLanguage)+")")
	}
	if filter.HasSimplification {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM simplifications s2 WHERE s2.text_id = t.id)")
	}

	needObjects := filter.NotLocked || filter.NotPrevented || filter.ObjectState != "" || filter.ObjectNotState != ""
	if filter.ObjectID != 0 || filter.ObjectType != "" || needObjects {
		joins = append(joins, "JOIN text_usages u ON u.text_id = t.id")
		if filter.ObjectID != 0 {
			conditions = append(conditions, "u.object_id = "+arg(filter.ObjectID))
		}
		if filter.ObjectType != "" {
			conditions = append(conditions, "u.object_type = "+arg(filter.ObjectType))
		}
	}
	if needObjects {
		joins = append(joins, "JOIN content_objects o ON o.id = u.object_id AND o.type = u.object_type")
		if filter.NotLocked {
			conditions = append(conditions, "o.locked = FALSE")
		}
		if filter.NotPrevented {
			conditions = append(conditions, "o.automatic_mode_prevented = FALSE")
		}
		if filter.ObjectState != "" {
			conditions = append(conditions, "o.state = "+arg(filter.ObjectState))
		}
		if filter.ObjectNotState != "" {
			conditions = append(conditions, "o.state <> "+arg(filter.ObjectNotState))
		}
	}

	query := "SELECT DISTINCT t.id, t.original, t.field, t.html, t.hash, t.lang, t.state, t.created_at"
	var orderBy string
	hasTitleCol := false
	switch filter.Order {
	case models.TextOrderCreatedAsc:
		orderBy = "t.created_at ASC, t.id ASC"
	case models.TextOrderCreatedDesc:
		orderBy = "t.created_at DESC, t.id DESC"
	default:
		// Title texts first: they are short, so the cheap work happens
		// before long body fragments.
		query += ", (t.field = 'title') AS is_title"
		orderBy = "is_title DESC, t.created_at ASC, t.id ASC"
		hasTitleCol = true
	}
	query += " FROM originals t"
	if len(joins) > 0 {
		query += " " + strings.Join(joins, " ")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + orderBy
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []*models.TextRecord
	for rows.Next() {
		var t models.TextRecord
		var isTitle bool
		dest := []interface{}{
			&t.ID, &t.Original, &t.Field, &t.IsHTML, &t.Hash,
			&t.SourceLanguage, &t.State, &t.CreatedAt,
		}
		if hasTitleCol {
			dest = append(dest, &isTitle)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		texts = append(texts, &t)
	}
	return texts, rows.Err()
}

// Delete removes an original text; simplifications and usages cascade
func (r *textRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM originals WHERE id = $1`, id)
	return err
}

// CountForObject counts all texts linked to a content object
func (r *textRepo) CountForObject(ctx context.Context, objectID int64, objectType string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT t.id) FROM originals t
		JOIN text_usages u ON u.text_id = t.id
		WHERE u.object_id = $1 AND u.object_type = $2
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, objectID, objectType).Scan(&count)
	return count, err
}

// Count returns the total number of stored originals
func (r *textRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM originals`).Scan(&count)
	return count, err
}

func (r *textRepo) scanOne(row *sql.Row) (*models.TextRecord, error) {
	var t models.TextRecord
	err := row.Scan(
		&t.ID, &t.Original, &t.Field, &t.IsHTML, &t.Hash,
		&t.SourceLanguage, &t.State, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

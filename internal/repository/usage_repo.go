package repository

import (
	"context"
	"time"

	"github.com/easy-language-api/internal/database"
	"github.com/easy-language-api/internal/models"
)

// usageRepo is the concrete implementation of UsageRepository
type usageRepo struct {
	db *database.DB
}

// NewUsageRepo creates a new usage repository
func NewUsageRepo(db *database.DB) UsageRepository {
	return &usageRepo{db: db}
}

// Upsert creates or refreshes the link between a text and an object
func (r *usageRepo) Upsert(ctx context.Context, usage *models.TextUsage) error {
	query := `
		INSERT INTO text_usages (text_id, object_id, object_type, tenant_id, position, page_builder, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (text_id, object_id, object_type, tenant_id) DO UPDATE SET
			position = EXCLUDED.position,
			page_builder = EXCLUDED.page_builder
		RETURNING id
	`
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now()
	}
	return r.db.QueryRowContext(ctx, query,
		usage.TextID, usage.ObjectID, usage.ObjectType, usage.TenantID,
		usage.Position, usage.PageBuilder, usage.CreatedAt,
	).Scan(&usage.ID)
}

// GetByText retrieves all usage links of a text
func (r *usageRepo) GetByText(ctx context.Context, textID int64) ([]*models.TextUsage, error) {
	query := `
		SELECT id, text_id, object_id, object_type, tenant_id, position, page_builder, created_at
		FROM text_usages WHERE text_id = $1 ORDER BY object_id, position
	`
	return r.queryUsages(ctx, query, textID)
}

// GetByObject retrieves all usage links of a content object in splice order
func (r *usageRepo) GetByObject(ctx context.Context, objectID int64, objectType string) ([]*models.TextUsage, error) {
	query := `
		SELECT id, text_id, object_id, object_type, tenant_id, position, page_builder, created_at
		FROM text_usages WHERE object_id = $1 AND object_type = $2 ORDER BY position
	`
	return r.queryUsages(ctx, query, objectID, objectType)
}

// Delete removes the link between a text and one object
func (r *usageRepo) Delete(ctx context.Context, textID, objectID int64, objectType string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM text_usages WHERE text_id = $1 AND object_id = $2 AND object_type = $3`,
		textID, objectID, objectType,
	)
	return err
}

// DeleteByText removes all links of a text
func (r *usageRepo) DeleteByText(ctx context.Context, textID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM text_usages WHERE text_id = $1`, textID)
	return err
}

// CountByText counts the objects still referencing a text
func (r *usageRepo) CountByText(ctx context.Context, textID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM text_usages WHERE text_id = $1`, textID).Scan(&count)
	return count, err
}

func (r *usageRepo) queryUsages(ctx context.Context, query string, args ...interface{}) ([]*models.TextUsage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []*models.TextUsage
	for rows.Next() {
		var u models.TextUsage
		err := rows.Scan(
			&u.ID, &u.TextID, &u.ObjectID, &u.ObjectType, &u.TenantID,
			&u.Position, &u.PageBuilder, &u.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		usages = append(usages, &u)
	}
	return usages, rows.Err()
}

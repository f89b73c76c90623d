package repository

import (
	"context"
	"time"

	"github.com/easy-language-api/internal/database"
	"github.com/easy-language-api/internal/models"
)

// TextRepository defines the interface for original-text data operations
type TextRepository interface {
	Create(ctx context.Context, text *models.TextRecord) error
	GetByID(ctx context.Context, id int64) (*models.TextRecord, error)
	GetByHash(ctx context.Context, hash, sourceLanguage string) (*models.TextRecord, error)
	UpdateState(ctx context.Context, id int64, state models.TextState) error
	Query(ctx context.Context, filter *models.TextFilter) ([]*models.TextRecord, error)
	Delete(ctx context.Context, id int64) error
	CountForObject(ctx context.Context, objectID int64, objectType string) (int, error)
	Count(ctx context.Context) (int, error)
}

// SimplificationRepository defines the interface for simplification data operations
type SimplificationRepository interface {
	Create(ctx context.Context, s *models.Simplification) error
	GetByText(ctx context.Context, textID int64) ([]*models.Simplification, error)
	GetByTextAndLanguage(ctx context.Context, textID int64, language string) (*models.Simplification, error)
	GetTextIDByHash(ctx context.Context, hash, language string) (int64, error)
	DeleteByText(ctx context.Context, textID int64) error
	ResetAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// UsageRepository defines the interface for text-to-object link operations
type UsageRepository interface {
	Upsert(ctx context.Context, usage *models.TextUsage) error
	GetByText(ctx context.Context, textID int64) ([]*models.TextUsage, error)
	GetByObject(ctx context.Context, objectID int64, objectType string) ([]*models.TextUsage, error)
	Delete(ctx context.Context, textID, objectID int64, objectType string) error
	DeleteByText(ctx context.Context, textID int64) error
	CountByText(ctx context.Context, textID int64) (int, error)
}

// ObjectRepository defines the interface for content object operations
type ObjectRepository interface {
	Create(ctx context.Context, obj *models.ContentObject) error
	Update(ctx context.Context, obj *models.ContentObject) error
	GetByID(ctx context.Context, id int64, objectType string) (*models.ContentObject, error)
	GetSimplifiedCopy(ctx context.Context, originalID int64, objectType, language string) (*models.ContentObject, error)
	ListSimplifiable(ctx context.Context) ([]*models.ContentObject, error)
}

// RunMarkerRepository defines the interface for per-object run state.
// TryStart is a compare-and-swap: it only succeeds when no run is in
// flight for the hash, closing the check-then-set race window.
type RunMarkerRepository interface {
	Get(ctx context.Context, objectHash string) (*models.RunMarker, error)
	TryStart(ctx context.Context, objectHash string, startedAt time.Time, max int) (bool, error)
	SetCount(ctx context.Context, objectHash string, count int) error
	ClearRunning(ctx context.Context, objectHash string) error
	SetResult(ctx context.Context, objectHash string, result *models.RunResult) error
	ClearResult(ctx context.Context, objectHash string) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	Text           TextRepository
	Simplification SimplificationRepository
	Usage          UsageRepository
	Object         ObjectRepository
	RunMarker      RunMarkerRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Text:           NewTextRepo(db),
		Simplification: NewSimplificationRepo(db),
		Usage:          NewUsageRepo(db),
		Object:         NewObjectRepo(db),
		RunMarker:      NewRunMarkerRepo(db),
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/parser"
	"github.com/easy-language-api/internal/repository"
	"github.com/easy-language-api/internal/textstore"
	"github.com/rs/zerolog"
)

// Intake turns a content object into stored originals: it extracts
// fragments through the object's format adapter, dedupes them against
// the store and keeps the usage links in sync with the object's
// current content.
type Intake struct {
	store   *textstore.Store
	repos   *repository.Repositories
	parsers *parser.Registry
	cfg     *config.SimplifyConfig
	log     zerolog.Logger
}

// NewIntake creates an intake service
func NewIntake(store *textstore.Store, repos *repository.Repositories, parsers *parser.Registry, cfg *config.SimplifyConfig, log zerolog.Logger) *Intake {
	return &Intake{
		store:   store,
		repos:   repos,
		parsers: parsers,
		cfg:     cfg,
		log:     log.With().Str("service", "intake").Logger(),
	}
}

// MakeSimplifiable extracts the object's fragments into the store and
// diffs its usage links: new fragments get links in document order,
// links to fragments no longer present are removed. Returns how many
// fragments the object now carries.
func (i *Intake) MakeSimplifiable(ctx context.Context, obj *models.ContentObject) (int, error) {
	if obj.IsSimplified() {
		return 0, fmt.Errorf("object %d/%s is a simplified copy, not a source", obj.ID, obj.Type)
	}

	p := i.parsers.Resolve(obj)
	if p == nil {
		return 0, fmt.Errorf("no parser claims object %d/%s", obj.ID, obj.Type)
	}

	fragments := p.ParsedTexts(obj)
	seen := make(map[int64]bool, len(fragments))
	linked := 0

	for position, fragment := range fragments {
		record, err := i.intakeFragment(ctx, obj, fragment)
		if err != nil {
			if errors.Is(err, textstore.ErrEmptyText) {
				continue
			}
			return linked, err
		}
		if record == nil {
			continue // already a simplification of something else
		}
		if seen[record.ID] {
			continue // repeated fragment within the same object
		}
		seen[record.ID] = true

		usage := &models.TextUsage{
			TextID:      record.ID,
			ObjectID:    obj.ID,
			ObjectType:  obj.Type,
			TenantID:    i.cfg.TenantID,
			Position:    position,
			PageBuilder: p.Name(),
		}
		if err := i.repos.Usage.Upsert(ctx, usage); err != nil {
			return linked, err
		}
		linked++
	}

	// Drop links whose fragment disappeared from the object.
	existing, err := i.repos.Usage.GetByObject(ctx, obj.ID, obj.Type)
	if err != nil {
		return linked, err
	}
	for _, usage := range existing {
		if seen[usage.TextID] {
			continue
		}
		record, err := i.repos.Text.GetByID(ctx, usage.TextID)
		if err != nil || record == nil {
			continue
		}
		if err := i.store.Delete(ctx, record, obj.ID, obj.Type); err != nil {
			i.log.Error().Err(err).
				Int64("text_id", usage.TextID).
				Int64("object_id", obj.ID).
				Msg("Failed to remove stale usage link")
		}
	}

	i.log.Info().
		Int64("object_id", obj.ID).
		Str("object_type", obj.Type).
		Str("parser", p.Name()).
		Int("fragments", linked).
		Msg("Object made simplifiable")

	return linked, nil
}

// intakeFragment resolves one fragment to a stored record, creating it
// when unseen. A nil record means the fragment was skipped.
func (i *Intake) intakeFragment(ctx context.Context, obj *models.ContentObject, fragment parser.Fragment) (*models.TextRecord, error) {
	// A fragment that matches an existing simplification is derived
	// text, not an original; importing it would simplify a
	// simplification.
	for _, target := range i.cfg.TargetsFor(obj.Language) {
		owner, err := i.store.FindBySimplification(ctx, fragment.Text, target)
		if err != nil {
			return nil, err
		}
		if owner != nil {
			return nil, nil
		}
	}

	record, err := i.store.FindByText(ctx, fragment.Text, obj.Language)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}
	return i.store.Add(ctx, fragment.Text, obj.Language, fragment.Field, fragment.HTML)
}

// RemoveObject drops all usage links of a deleted content object,
// cascading to unused originals when the keep-unused policy is off.
func (i *Intake) RemoveObject(ctx context.Context, obj *models.ContentObject) error {
	usages, err := i.repos.Usage.GetByObject(ctx, obj.ID, obj.Type)
	if err != nil {
		return err
	}
	for _, usage := range usages {
		record, err := i.repos.Text.GetByID(ctx, usage.TextID)
		if err != nil || record == nil {
			continue
		}
		if err := i.store.Delete(ctx, record, obj.ID, obj.Type); err != nil {
			return err
		}
	}
	return nil
}

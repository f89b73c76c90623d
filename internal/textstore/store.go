// Package textstore is the single source of truth for original texts,
// their usages, and their per-language simplifications. Identical text
// is stored once per source language and looked up by content hash, so
// it is never re-submitted to the paid API.
package textstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/repository"
	"github.com/rs/zerolog"
)

// ErrEmptyText is returned when an empty original is offered to the store
var ErrEmptyText = errors.New("original text is empty")

// Store provides content-addressable persistence for originals and
// simplifications, with an in-process memo for hash lookups.
type Store struct {
	texts  repository.TextRepository
	simps  repository.SimplificationRepository
	usages repository.UsageRepository
	cfg    *config.SimplifyConfig
	log    zerolog.Logger

	mu     sync.RWMutex
	byHash map[string]*models.TextRecord
}

// New creates a Store over the given repositories
func New(repos *repository.Repositories, cfg *config.SimplifyConfig, log zerolog.Logger) *Store {
	return &Store{
		texts:  repos.Text,
		simps:  repos.Simplification,
		usages: repos.Usage,
		cfg:    cfg,
		log:    log.With().Str("component", "textstore").Logger(),
		byHash: make(map[string]*models.TextRecord),
	}
}

// Hash computes the content address of a text
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Add stores a new original. It always inserts; callers dedupe by
// checking FindByText first. An unset source language resolves to the
// configured default.
func (s *Store) Add(ctx context.Context, text, sourceLanguage, field string, isHTML bool) (*models.TextRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if sourceLanguage == "" {
		sourceLanguage = s.cfg.DefaultSourceLang
	}

	record := &models.TextRecord{
		Original:       text,
		Field:          field,
		IsHTML:         isHTML,
		Hash:           Hash(text),
		SourceLanguage: sourceLanguage,
		State:          models.TextStateToSimplify,
		CreatedAt:      time.Now(),
	}
	if err := s.texts.Create(ctx, record); err != nil {
		return nil, err
	}
	s.memoize(record)

	s.log.Debug().
		Int64("text_id", record.ID).
		Str("field", field).
		Str("lang", sourceLanguage).
		Msg("Original stored")

	return record, nil
}

// FindByText looks up an original by exact content and source language.
// Returns nil when no record exists.
func (s *Store) FindByText(ctx context.Context, text, sourceLanguage string) (*models.TextRecord, error) {
	if sourceLanguage == "" {
		sourceLanguage = s.cfg.DefaultSourceLang
	}
	hash := Hash(text)

	s.mu.RLock()
	cached, ok := s.byHash[memoKey(hash, sourceLanguage)]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	record, err := s.texts.GetByHash(ctx, hash, sourceLanguage)
	if err != nil {
		return nil, err
	}
	if record != nil {
		s.memoize(record)
	}
	return record, nil
}

// FindBySimplification looks up the original whose simplification in
// the given language matches the text. Used to avoid importing text
// that is itself already a simplification.
func (s *Store) FindBySimplification(ctx context.Context, simplifiedText, language string) (*models.TextRecord, error) {
	textID, err := s.simps.GetTextIDByHash(ctx, Hash(simplifiedText), language)
	if err != nil {
		return nil, err
	}
	if textID == 0 {
		return nil, nil
	}
	return s.texts.GetByID(ctx, textID)
}

// Query retrieves originals matching the filter
func (s *Store) Query(ctx context.Context, filter *models.TextFilter) ([]*models.TextRecord, error) {
	return s.texts.Query(ctx, filter)
}

// ResetAllSimplifications bulk-clears the simplifications table.
// Irreversible; meant for a full reset.
func (s *Store) ResetAllSimplifications(ctx context.Context) error {
	s.log.Warn().Msg("Clearing all simplifications")
	return s.simps.ResetAll(ctx)
}

// SetState transitions a record to a new state. Anything outside the
// four legal states is a silent no-op.
func (s *Store) SetState(ctx context.Context, record *models.TextRecord, state models.TextState) error {
	if !models.ValidTextStates[state] {
		return nil
	}
	if err := s.texts.UpdateState(ctx, record.ID, state); err != nil {
		return err
	}
	record.State = state
	s.memoize(record)
	return nil
}

// SetSimplification persists an API result for one target language and
// advances the record to in_use. It does not upsert: callers check
// HasSimplificationInLanguage first, and a duplicate insert is logged
// and treated as a no-op.
func (s *Store) SetSimplification(ctx context.Context, record *models.TextRecord, simplifiedText, targetLanguage, usedAPI, jobID string, userID int64) error {
	sim := &models.Simplification{
		TextID:         record.ID,
		SimplifiedText: simplifiedText,
		Hash:           Hash(simplifiedText),
		TargetLanguage: targetLanguage,
		UsedAPI:        usedAPI,
		JobID:          jobID,
		UserID:         userID,
		CreatedAt:      time.Now(),
	}
	if err := s.simps.Create(ctx, sim); err != nil {
		s.log.Error().Err(err).
			Int64("text_id", record.ID).
			Str("target_lang", targetLanguage).
			Msg("Failed to store simplification")
		return err
	}
	return s.SetState(ctx, record, models.TextStateInUse)
}

// HasSimplificationInLanguage reports whether the record already has a
// simplification for the target language.
func (s *Store) HasSimplificationInLanguage(ctx context.Context, record *models.TextRecord, language string) (bool, error) {
	sim, err := s.simps.GetByTextAndLanguage(ctx, record.ID, language)
	if err != nil {
		return false, err
	}
	return sim != nil, nil
}

// GetSimplification returns the simplified text for the target
// language, or the unmodified original when none exists. Callers must
// not assume translation occurred.
func (s *Store) GetSimplification(ctx context.Context, record *models.TextRecord, language string) (string, error) {
	sim, err := s.simps.GetByTextAndLanguage(ctx, record.ID, language)
	if err != nil {
		return record.Original, err
	}
	if sim == nil {
		return record.Original, nil
	}
	return sim.SimplifiedText, nil
}

// Delete removes the usage link for one object, or all usages when
// objectID is 0. When the last usage is gone and the keep-unused policy
// is off, the original and its simplifications are deleted too.
func (s *Store) Delete(ctx context.Context, record *models.TextRecord, objectID int64, objectType string) error {
	count, err := s.usages.CountByText(ctx, record.ID)
	if err != nil {
		return err
	}

	if objectID == 0 {
		if err := s.usages.DeleteByText(ctx, record.ID); err != nil {
			return err
		}
		count = 0
	} else {
		if err := s.usages.Delete(ctx, record.ID, objectID, objectType); err != nil {
			return err
		}
		count--
	}

	if count <= 0 && !s.cfg.KeepUnusedTexts {
		s.log.Info().Int64("text_id", record.ID).Msg("Deleting unused original")
		if err := s.simps.DeleteByText(ctx, record.ID); err != nil {
			return err
		}
		if err := s.texts.Delete(ctx, record.ID); err != nil {
			return err
		}
		s.forget(record)
	}
	return nil
}

func (s *Store) memoize(record *models.TextRecord) {
	s.mu.Lock()
	s.byHash[memoKey(record.Hash, record.SourceLanguage)] = record
	s.mu.Unlock()
}

func (s *Store) forget(record *models.TextRecord) {
	s.mu.Lock()
	delete(s.byHash, memoKey(record.Hash, record.SourceLanguage))
	s.mu.Unlock()
}

func memoKey(hash, lang string) string {
	return hash + "\x00" + lang
}

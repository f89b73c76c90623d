package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/parser"
	"github.com/easy-language-api/internal/repository"
	"github.com/easy-language-api/internal/simplifier"
	"github.com/easy-language-api/internal/textstore"
	"github.com/rs/zerolog"
)

// RunOptions controls a single RunBatch invocation
type RunOptions struct {
	// Limit caps the records processed in this call; 0 means unlimited
	Limit int
	// Init marks the first call of a user-visible run (as opposed to a
	// continuation page). Only init calls clear stale results, check
	// for crash leftovers, run the quota precheck and claim the slot.
	Init bool
	// Automatic marks an unattended run, which bypasses the quota
	// precheck (the automatic run is what the precheck defers to).
	Automatic bool
	// UserID is who triggered the run; 0 means system
	UserID int64
}

// Orchestrator drives per-object simplification batches: it claims a
// run slot, selects due texts, calls the API per language mapping,
// splices results into the simplified copies and finalizes the run.
// Every outcome is captured as a run-marker result payload; nothing
// escapes the run boundary as an error.
type Orchestrator struct {
	store   *textstore.Store
	repos   *repository.Repositories
	parsers *parser.Registry
	client  simplifier.Client
	cfg     *config.SimplifyConfig
	log     zerolog.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(store *textstore.Store, repos *repository.Repositories, parsers *parser.Registry, client simplifier.Client, cfg *config.SimplifyConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		repos:   repos,
		parsers: parsers,
		client:  client,
		cfg:     cfg,
		log:     log.With().Str("service", "orchestrator").Logger(),
	}
}

// RunBatch processes up to opts.Limit due texts of one object and
// returns the number handled in this call. Callers paginate by calling
// again while the run marker stays running.
func (o *Orchestrator) RunBatch(ctx context.Context, obj *models.ContentObject, opts RunOptions) (int, *models.RunResult, error) {
	hash := obj.RunHash()
	log := o.log.With().Int64("object_id", obj.ID).Str("object_type", obj.Type).Logger()

	if opts.Init {
		if result, err := o.initRun(ctx, obj, hash, opts, log); result != nil || err != nil {
			return 0, result, err
		}
	}

	marker, err := o.repos.RunMarker.Get(ctx, hash)
	if err != nil {
		return 0, nil, err
	}
	if marker == nil {
		marker = &models.RunMarker{ObjectHash: hash}
	}

	due, err := o.store.Query(ctx, &models.TextFilter{
		ObjectID:   obj.ID,
		ObjectType: obj.Type,
		State:      models.TextStateToSimplify,
		Limit:      opts.Limit,
	})
	if err != nil {
		return 0, nil, err
	}

	// Nothing left: either the object was fully simplified before this
	// run ever spent an API call, or earlier pages did the work.
	if len(due) == 0 {
		var result *models.RunResult
		if marker.Count == 0 {
			result = o.finishResult(models.ResultNothingToDo,
				"all texts are already simplified; the API was not used", 0, 0)
		} else {
			result = o.finishResult(models.ResultSuccess,
				fmt.Sprintf("%d texts processed; the rest were already simplified locally", marker.Count), 0, 0)
		}
		o.setResult(ctx, hash, result)
		o.repos.RunMarker.SetCount(ctx, hash, marker.Max)
		o.repos.RunMarker.ClearRunning(ctx, hash)
		return marker.Max, result, nil
	}

	count := marker.Count
	produced := 0
	replaced := 0
	var hardResult *models.RunResult

	for _, record := range due {
		p, r, hard := o.processOne(ctx, obj, record, opts.UserID, log)
		produced += p
		replaced += r
		if hard != nil {
			hardResult = hard
		}
		count++
		if err := o.repos.RunMarker.SetCount(ctx, hash, count); err != nil {
			log.Error().Err(err).Msg("Failed to update run progress")
		}
	}

	result := hardResult
	if result == nil {
		if produced == 0 && replaced > 0 {
			result = o.finishResult(models.ResultSuccess,
				"texts were already simplified locally and re-used without spending quota", produced, replaced)
		} else {
			result = o.finishResult(models.ResultSuccess,
				fmt.Sprintf("%d texts simplified, %d spliced into content", produced, replaced), produced, replaced)
		}
	}

	if count >= marker.Max {
		o.setResult(ctx, hash, result)
		o.repos.RunMarker.ClearRunning(ctx, hash)
		o.finalize(ctx, obj, log)
	} else {
		// Leave the run slot held: the caller is expected to request
		// the next page of work.
		o.setResult(ctx, hash, result)
	}

	log.Info().
		Int("processed", len(due)).
		Int("produced", produced).
		Int("replaced", replaced).
		Int("count", count).
		Int("max", marker.Max).
		Msg("Batch page completed")

	return len(due), result, nil
}

// initRun performs the first-call checks. A non-nil result means the
// run must not proceed.
func (o *Orchestrator) initRun(ctx context.Context, obj *models.ContentObject, hash string, opts RunOptions, log zerolog.Logger) (*models.RunResult, error) {
	if err := o.repos.RunMarker.ClearResult(ctx, hash); err != nil {
		return nil, err
	}

	if obj.IsLocked() {
		result := o.finishResult(models.ResultAlreadyRunning, "the object is locked by another editor", 0, 0)
		o.setResult(ctx, hash, result)
		return result, nil
	}

	// Fast-path single-flight check; the authoritative exclusion is
	// the compare-and-swap below.
	marker, err := o.repos.RunMarker.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if marker.IsRunning() {
		result := o.finishResult(models.ResultAlreadyRunning, "a simplification run is already in progress for this object", 0, 0)
		o.setResult(ctx, hash, result)
		return result, nil
	}

	// Crash recovery: records stuck in processing mean a previous run
	// died mid-flight. Pause until the operator chooses retry or
	// ignore; never silently resume or drop work.
	stale, err := o.store.Query(ctx, &models.TextFilter{
		ObjectID:   obj.ID,
		ObjectType: obj.Type,
		State:      models.TextStateProcessing,
	})
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		ids := make([]int64, len(stale))
		for i, t := range stale {
			ids[i] = t.ID
		}
		result := o.finishResult(models.ResultStaleProcessing,
			fmt.Sprintf("%d texts are stuck in processing from a previous run; choose retry or ignore", len(stale)), 0, 0)
		result.StaleTextIDs = ids
		o.setResult(ctx, hash, result)
		log.Warn().Ints64("text_ids", ids).Msg("Stale processing records block the run")
		return result, nil
	}

	total, err := o.repos.Text.CountForObject(ctx, obj.ID, obj.Type)
	if err != nil {
		return nil, err
	}

	// Quota precheck: a synchronous run doomed to exceed the API's
	// rate budget is deferred to the automatic run instead of started.
	if !opts.Automatic && total > o.client.MaxRequestsPerInterval() {
		msg := fmt.Sprintf("%d texts exceed the API budget of %d per interval; the automatic run will handle them", total, o.client.MaxRequestsPerInterval())
		if obj.IsAutomaticModePrevented() {
			msg = fmt.Sprintf("%d texts exceed the API budget of %d per interval; enable automatic mode for this object to process them", total, o.client.MaxRequestsPerInterval())
		}
		result := o.finishResult(models.ResultQuotaDeferred, msg, 0, 0)
		o.setResult(ctx, hash, result)
		return result, nil
	}

	ok, err := o.repos.RunMarker.TryStart(ctx, hash, time.Now(), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		result := o.finishResult(models.ResultAlreadyRunning, "a simplification run is already in progress for this object", 0, 0)
		o.setResult(ctx, hash, result)
		return result, nil
	}
	return nil, nil
}

// processOne simplifies a single record across all configured language
// pairs and splices the results into the object's simplified copies.
// Returns how many pairs triggered a genuine API call, how many were
// spliced, and a hard-error result when the record failed outright.
func (o *Orchestrator) processOne(ctx context.Context, obj *models.ContentObject, record *models.TextRecord, userID int64, log zerolog.Logger) (produced, replaced int, hard *models.RunResult) {
	if err := o.store.SetState(ctx, record, models.TextStateProcessing); err != nil {
		log.Error().Err(err).Int64("text_id", record.ID).Msg("Failed to mark record processing")
		return 0, 0, nil
	}

	objectTargets := o.cfg.TargetsFor(obj.Language)
	apiError := false
	storeFailed := false

	for source, targets := range o.cfg.LanguageMappings {
		if record.SourceLanguage != source {
			continue
		}
		for _, target := range targets {
			if !contains(objectTargets, target) {
				continue
			}
			has, err := o.store.HasSimplificationInLanguage(ctx, record, target)
			if err != nil {
				log.Error().Err(err).Int64("text_id", record.ID).Msg("Simplification lookup failed")
				continue
			}
			if has {
				continue
			}

			result, err := o.client.Call(ctx, record.Original, source, target)
			if err != nil {
				// Other language pairs may still succeed; the failed
				// pair stays without a simplification and is retried
				// on the next run.
				apiError = true
				log.Error().Err(err).
					Int64("text_id", record.ID).
					Str("source_lang", source).
					Str("target_lang", target).
					Msg("API call failed")
				continue
			}
			if err := o.store.SetSimplification(ctx, record, result.Text, target, o.client.Name(), result.JobID, userID); err != nil {
				// The paid answer was not persisted. The record must not
				// advance to in_use below, or it would never be
				// re-selected.
				storeFailed = true
				continue
			}
			produced++
		}
	}

	for source, targets := range o.cfg.LanguageMappings {
		if record.SourceLanguage != source {
			continue
		}
		for _, target := range targets {
			if !contains(objectTargets, target) {
				continue
			}
			has, err := o.store.HasSimplificationInLanguage(ctx, record, target)
			if err != nil || !has {
				continue
			}
			if o.ReplaceOriginalWithSimplification(ctx, obj, record, target) {
				replaced++
			}
		}
	}

	switch {
	case storeFailed:
		// Leave the record in processing: the next run's recovery check
		// surfaces it for the operator instead of a silent success.
		hard = o.finishResult(models.ResultAPIError,
			"a simplification could not be stored; the record is held for recovery", produced, replaced)
		return produced, replaced, hard
	case apiError && produced == 0:
		hard = o.finishResult(models.ResultAPIError,
			"the API returned no simplification; check the API log", produced, replaced)
	case produced > 0 && replaced == 0:
		hard = o.finishResult(models.ResultSpliceMismatch,
			"the API returned text but it could not be written into the content", produced, replaced)
	}

	// The record ends in_use even when every splice failed; the hard
	// SpliceMismatch result above is what surfaces that condition.
	if err := o.store.SetState(ctx, record, models.TextStateInUse); err != nil {
		log.Error().Err(err).Int64("text_id", record.ID).Msg("Failed to mark record in use")
	}

	return produced, replaced, hard
}

// ReplaceOriginalWithSimplification splices the record's simplification
// for the target language into the object's simplified copy, creating
// the copy on first use. Returns false when no parser claims the object
// or the fragment cannot be located in the copy.
func (o *Orchestrator) ReplaceOriginalWithSimplification(ctx context.Context, obj *models.ContentObject, record *models.TextRecord, targetLanguage string) bool {
	p := o.parsers.Resolve(obj)
	if p == nil {
		o.log.Error().
			Int64("object_id", obj.ID).
			Str("object_type", obj.Type).
			Msg("No parser claims the object")
		return false
	}

	simplified, err := o.store.GetSimplification(ctx, record, targetLanguage)
	if err != nil {
		return false
	}

	copyObj, err := o.repos.Object.GetSimplifiedCopy(ctx, obj.ID, obj.Type, targetLanguage)
	if err != nil {
		return false
	}
	if copyObj == nil {
		copyObj = &models.ContentObject{
			Type:       obj.Type,
			Title:      obj.Title,
			Body:       obj.Body,
			Language:   targetLanguage,
			OriginalID: &obj.ID,
			State:      obj.State,
		}
		if err := o.repos.Object.Create(ctx, copyObj); err != nil {
			o.log.Error().Err(err).Int64("object_id", obj.ID).Msg("Failed to create simplified copy")
			return false
		}
	}

	fragment := parser.Fragment{Text: record.Original, Field: record.Field, HTML: record.IsHTML}
	var whole, updated string
	if record.Field == parser.FieldTitle {
		whole = copyObj.Title
		updated = p.Splice(whole, fragment, simplified)
		copyObj.Title = updated
	} else {
		whole = copyObj.Body
		updated = p.Splice(whole, fragment, simplified)
		copyObj.Body = updated
	}

	// The fragment was neither found nor already replaced: a format
	// bug in the parser, not a transient condition.
	if updated == whole && !containsText(whole, simplified) {
		return false
	}

	if err := o.repos.Object.Update(ctx, copyObj); err != nil {
		o.log.Error().Err(err).Int64("object_id", copyObj.ID).Msg("Failed to update simplified copy")
		return false
	}
	return true
}

// RecoverStale resolves records left in processing by a crashed run.
// Action "retry" puts them back into the queue; "ignore" excludes them.
func (o *Orchestrator) RecoverStale(ctx context.Context, obj *models.ContentObject, action string) (int, error) {
	var target models.TextState
	switch action {
	case "retry":
		target = models.TextStateToSimplify
	case "ignore":
		target = models.TextStateIgnore
	default:
		return 0, fmt.Errorf("unknown recovery action %q (want retry or ignore)", action)
	}

	stale, err := o.store.Query(ctx, &models.TextFilter{
		ObjectID:   obj.ID,
		ObjectType: obj.Type,
		State:      models.TextStateProcessing,
	})
	if err != nil {
		return 0, err
	}
	for _, record := range stale {
		if err := o.store.SetState(ctx, record, target); err != nil {
			return 0, err
		}
	}
	if len(stale) > 0 {
		o.repos.RunMarker.ClearResult(ctx, obj.RunHash())
	}

	o.log.Info().
		Int64("object_id", obj.ID).
		Str("action", action).
		Int("records", len(stale)).
		Msg("Stale processing records resolved")

	return len(stale), nil
}

// Progress returns the caller-facing view of an object's run marker
func (o *Orchestrator) Progress(ctx context.Context, obj *models.ContentObject) (*models.Progress, error) {
	marker, err := o.repos.RunMarker.Get(ctx, obj.RunHash())
	if err != nil {
		return nil, err
	}
	if marker == nil {
		return &models.Progress{}, nil
	}
	return &models.Progress{
		Count:      marker.Count,
		Max:        marker.Max,
		Running:    marker.IsRunning(),
		LastResult: marker.Result,
	}, nil
}

// finalize notifies the format adapter that the object's derived
// content changed.
func (o *Orchestrator) finalize(ctx context.Context, obj *models.ContentObject, log zerolog.Logger) {
	if p := o.parsers.Resolve(obj); p != nil {
		if err := p.UpdateObject(ctx, obj); err != nil {
			log.Error().Err(err).Msg("Post-update hook failed")
		}
	}
}

func (o *Orchestrator) setResult(ctx context.Context, hash string, result *models.RunResult) {
	if err := o.repos.RunMarker.SetResult(ctx, hash, result); err != nil {
		o.log.Error().Err(err).Str("object_hash", hash).Msg("Failed to store run result")
	}
}

func (o *Orchestrator) finishResult(kind models.ResultKind, message string, produced, replaced int) *models.RunResult {
	return &models.RunResult{
		Kind:     kind,
		Message:  message,
		Produced: produced,
		Replaced: replaced,
		At:       time.Now(),
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsText(whole, fragment string) bool {
	return fragment != "" && strings.Contains(whole, fragment)
}

package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/repository"
	"github.com/rs/zerolog"
)

// AutoRunner is the unattended batch trigger: on every tick it scans
// for simplifiable objects with due texts and runs a full batch per
// object, skipping locked objects and those that opted out of
// automatic mode.
type AutoRunner struct {
	orch    *Orchestrator
	repos   *repository.Repositories
	cfg     *config.AutoRunConfig
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
	// Semaphore: buffered channel to limit concurrent object runs
	sem chan struct{}
}

// NewAutoRunner creates the background runner with a worker pool sized
// for I/O-bound work (the runs mostly wait on the external API).
func NewAutoRunner(orch *Orchestrator, repos *repository.Repositories, cfg *config.AutoRunConfig, log zerolog.Logger) *AutoRunner {
	maxWorkers := runtime.NumCPU() * 2
	if maxWorkers < 2 {
		maxWorkers = 2
	}
	if maxWorkers > 16 {
		maxWorkers = 16 // Cap to avoid hammering the external API
	}

	return &AutoRunner{
		orch:  orch,
		repos: repos,
		cfg:   cfg,
		log:   log.With().Str("service", "auto_runner").Logger(),
		sem:   make(chan struct{}, maxWorkers),
	}
}

// Start runs the scan loop until Stop is called or ctx is cancelled
func (r *AutoRunner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.log.Info().Dur("interval", r.cfg.Interval).Msg("Automatic runner started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.log.Info().Msg("Automatic runner stopping")
			return
		case <-ticker.C:
			r.scan()
		}
	}
}

// Stop stops the runner and waits for in-flight runs
func (r *AutoRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.cancel()
	r.wg.Wait()
	r.running = false
	r.log.Info().Msg("Automatic runner stopped")
}

// scan runs one batch per eligible object
func (r *AutoRunner) scan() {
	objects, err := r.repos.Object.ListSimplifiable(r.ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to list simplifiable objects")
		return
	}

	for _, obj := range objects {
		if obj.IsLocked() || obj.IsAutomaticModePrevented() {
			continue
		}

		due, err := r.repos.Text.Query(r.ctx, &models.TextFilter{
			ObjectID:     obj.ID,
			ObjectType:   obj.Type,
			State:        models.TextStateToSimplify,
			NotLocked:    true,
			NotPrevented: true,
			Limit:        1,
		})
		if err != nil || len(due) == 0 {
			continue
		}

		select {
		case r.sem <- struct{}{}:
		case <-r.ctx.Done():
			return
		}

		r.wg.Add(1)
		go func(obj *models.ContentObject) {
			defer r.wg.Done()
			defer func() { <-r.sem }()

			// Panic recovery keeps one bad object from taking the
			// whole runner down.
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().
						Interface("panic", rec).
						Int64("object_id", obj.ID).
						Msg("Automatic run panicked - recovered")
				}
			}()

			processed, result, err := r.orch.RunBatch(r.ctx, obj, RunOptions{
				Init:      true,
				Automatic: true,
			})
			if err != nil {
				r.log.Error().Err(err).Int64("object_id", obj.ID).Msg("Automatic run failed")
				return
			}
			event := r.log.Info()
			if result != nil && (result.Kind == models.ResultAPIError || result.Kind == models.ResultSpliceMismatch) {
				event = r.log.Error()
			}
			event.
				Int64("object_id", obj.ID).
				Int("processed", processed).
				Str("outcome", string(resultKind(result))).
				Msg("Automatic run finished")
		}(obj)
	}
}

func resultKind(result *models.RunResult) models.ResultKind {
	if result == nil {
		return models.ResultSuccess
	}
	return result.Kind
}

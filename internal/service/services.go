package service

import (
	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/parser"
	"github.com/easy-language-api/internal/repository"
	"github.com/easy-language-api/internal/simplifier"
	"github.com/easy-language-api/internal/textstore"
	"github.com/rs/zerolog"
)

// Services holds the simplification core services
type Services struct {
	Store        *textstore.Store
	Intake       *Intake
	Orchestrator *Orchestrator
	Runner       *AutoRunner
}

// NewServices wires the store, intake, orchestrator and background
// runner over shared repositories, the parser registry and the API
// client.
func NewServices(repos *repository.Repositories, parsers *parser.Registry, client simplifier.Client, cfg *config.Config, log zerolog.Logger) *Services {
	store := textstore.New(repos, &cfg.Simplify, log)
	intake := NewIntake(store, repos, parsers, &cfg.Simplify, log)
	orch := NewOrchestrator(store, repos, parsers, client, &cfg.Simplify, log)
	runner := NewAutoRunner(orch, repos, &cfg.AutoRun, log)

	return &Services{
		Store:        store,
		Intake:       intake,
		Orchestrator: orch,
		Runner:       runner,
	}
}

// Package simplifier defines the contract for the external
// simplification API and the clients shipped with the service. The
// core never depends on a concrete provider.
package simplifier

import (
	"context"
)

// Result is a successful simplification of one text
type Result struct {
	Text  string // the simplified text
	JobID string // opaque provider-side request id, kept for audit
}

// Client is a pluggable simplification API
type Client interface {
	// Name identifies the provider (stored on simplifications)
	Name() string
	// Call simplifies one text from sourceLang into targetLang
	Call(ctx context.Context, text, sourceLang, targetLang string) (*Result, error)
	// MaxRequestsPerInterval is the provider's rate budget, used by
	// the orchestrator's quota precheck.
	MaxRequestsPerInterval() int
}

// Package parser defines the contract between the simplification core
// and format-specific content adapters, plus the adapters shipped with
// the service. An adapter flattens an object's native structure into
// text fragments and splices simplified text back in.
package parser

import (
	"context"

	"github.com/easy-language-api/internal/models"
)

// FieldTitle is the semantic slot for an object's title fragment
const FieldTitle = "title"

// FieldBody is the semantic slot for body fragments
const FieldBody = "body"

// Fragment is one extracted text with its semantic slot
type Fragment struct {
	Text  string
	Field string
	HTML  bool // whether splicing must preserve markup
}

// Parser is a format adapter. Exactly one parser claims a given object;
// the registry uses the first match.
type Parser interface {
	// Name identifies the format (stored on usage links)
	Name() string
	// Matches reports whether the adapter handles the object's format
	Matches(obj *models.ContentObject) bool
	// ParsedTexts flattens the object into ordered fragments
	ParsedTexts(obj *models.ContentObject) []Fragment
	// Splice replaces the original fragment inside the whole text with
	// its simplified rendering and returns the updated whole.
	Splice(whole string, original Fragment, simplified string) string
	// UpdateObject runs format-specific post-processing after the
	// object's content changed.
	UpdateObject(ctx context.Context, obj *models.ContentObject) error
}

// Registry is an ordered list of parsers. Resolution is a linear scan,
// first match wins.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry with the given parsers in priority order
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Register appends a parser at the lowest priority
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Resolve returns the first parser claiming the object, or nil
func (r *Registry) Resolve(obj *models.ContentObject) Parser {
	for _, p := range r.parsers {
		if p.Matches(obj) {
			return p
		}
	}
	return nil
}

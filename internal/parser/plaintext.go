package parser

import (
	"context"
	"regexp"
	"strings"

	"github.com/easy-language-api/internal/models"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// PlainText handles objects whose body carries no markup. The title is
// one fragment; the body is split into paragraph fragments on blank
// lines. It matches everything, so it belongs at the end of the
// registry as the fallback.
type PlainText struct{}

// NewPlainText creates the plain text adapter
func NewPlainText() *PlainText {
	return &PlainText{}
}

func (p *PlainText) Name() string {
	return "plaintext"
}

func (p *PlainText) Matches(obj *models.ContentObject) bool {
	return true
}

func (p *PlainText) ParsedTexts(obj *models.ContentObject) []Fragment {
	var fragments []Fragment
	if title := strings.TrimSpace(obj.Title); title != "" {
		fragments = append(fragments, Fragment{Text: title, Field: FieldTitle})
	}
	for _, para := range blankLines.Split(obj.Body, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		fragments = append(fragments, Fragment{Text: para, Field: FieldBody})
	}
	return fragments
}

func (p *PlainText) Splice(whole string, original Fragment, simplified string) string {
	if original.Text == "" || original.Text == simplified {
		return whole
	}
	return strings.Replace(whole, original.Text, simplified, 1)
}

func (p *PlainText) UpdateObject(ctx context.Context, obj *models.ContentObject) error {
	return nil
}

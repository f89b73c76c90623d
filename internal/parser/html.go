package parser

import (
	"context"
	"regexp"
	"strings"

	"github.com/easy-language-api/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

var (
	anyTag    = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	blockTags = regexp.MustCompile(`(?s)<(p|h[1-6]|li|blockquote|figcaption|td)\b[^>]*>(.*?)</(?:p|h[1-6]|li|blockquote|figcaption|td)>`)
)

// HTML handles objects whose body carries markup. Each block element
// becomes one fragment holding its inner HTML, so inline tags survive
// the splice. A strict sanitizer decides whether a block has any
// visible text at all.
type HTML struct {
	strip *bluemonday.Policy
}

// NewHTML creates the HTML adapter
func NewHTML() *HTML {
	return &HTML{strip: bluemonday.StrictPolicy()}
}

func (p *HTML) Name() string {
	return "html"
}

func (p *HTML) Matches(obj *models.ContentObject) bool {
	return anyTag.MatchString(obj.Body)
}

func (p *HTML) ParsedTexts(obj *models.ContentObject) []Fragment {
	var fragments []Fragment
	if title := strings.TrimSpace(obj.Title); title != "" {
		fragments = append(fragments, Fragment{Text: title, Field: FieldTitle})
	}
	for _, match := range blockTags.FindAllStringSubmatch(obj.Body, -1) {
		inner := strings.TrimSpace(match[2])
		if inner == "" {
			continue
		}
		// Blocks that sanitize down to nothing (pure markup, images,
		// whitespace) carry no text worth simplifying.
		if strings.TrimSpace(p.strip.Sanitize(inner)) == "" {
			continue
		}
		fragments = append(fragments, Fragment{Text: inner, Field: FieldBody, HTML: true})
	}
	return fragments
}

func (p *HTML) Splice(whole string, original Fragment, simplified string) string {
	if original.Text == "" || original.Text == simplified {
		return whole
	}
	return strings.Replace(whole, original.Text, simplified, 1)
}

func (p *HTML) UpdateObject(ctx context.Context, obj *models.ContentObject) error {
	return nil
}

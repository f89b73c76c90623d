package parser_test

import (
	"testing"

	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/parser"
)

func TestPlainText_ParsedTexts(t *testing.T) {
	p := parser.NewPlainText()
	obj := &models.ContentObject{
		Title: "  A Title  ",
		Body:  "First paragraph.\n\nSecond paragraph.\n\n   \n\nThird.",
	}

	fragments := p.ParsedTexts(obj)
	if len(fragments) != 4 {
		t.Fatalf("Expected 4 fragments, got %d: %+v", len(fragments), fragments)
	}
	if fragments[0].Field != parser.FieldTitle || fragments[0].Text != "A Title" {
		t.Errorf("First fragment should be the trimmed title, got %+v", fragments[0])
	}
	want := []string{"First paragraph.", "Second paragraph.", "Third."}
	for i, text := range want {
		frag := fragments[i+1]
		if frag.Text != text || frag.Field != parser.FieldBody {
			t.Errorf("Fragment %d: expected body %q, got %+v", i+1, text, frag)
		}
	}
}

func TestPlainText_EmptyTitleSkipped(t *testing.T) {
	p := parser.NewPlainText()
	fragments := p.ParsedTexts(&models.ContentObject{Body: "Only body."})
	if len(fragments) != 1 || fragments[0].Field != parser.FieldBody {
		t.Errorf("Expected a single body fragment, got %+v", fragments)
	}
}

func TestPlainText_SpliceRoundTrip(t *testing.T) {
	p := parser.NewPlainText()
	obj := &models.ContentObject{Body: "Hello there.\n\nGeneral greeting."}

	body := obj.Body
	for _, frag := range p.ParsedTexts(obj) {
		body = p.Splice(body, frag, "[easy] "+frag.Text)
	}
	want := "[easy] Hello there.\n\n[easy] General greeting."
	if body != want {
		t.Errorf("Expected %q, got %q", want, body)
	}
}

func TestPlainText_SpliceReplacesFirstOccurrenceOnly(t *testing.T) {
	p := parser.NewPlainText()
	frag := parser.Fragment{Text: "Hello", Field: parser.FieldBody}
	got := p.Splice("Hello\n\nHello", frag, "Hallo")
	if got != "Hallo\n\nHello" {
		t.Errorf("Expected only the first occurrence replaced, got %q", got)
	}
}

func TestPlainText_SpliceNoOpCases(t *testing.T) {
	p := parser.NewPlainText()
	if got := p.Splice("Hello", parser.Fragment{Text: ""}, "Hallo"); got != "Hello" {
		t.Errorf("Empty fragment must not splice, got %q", got)
	}
	if got := p.Splice("Hello", parser.Fragment{Text: "Hello"}, "Hello"); got != "Hello" {
		t.Errorf("Identical simplification must not splice, got %q", got)
	}
	if got := p.Splice("Hello", parser.Fragment{Text: "Absent"}, "Hallo"); got != "Hello" {
		t.Errorf("Missing fragment must leave the whole unchanged, got %q", got)
	}
}

func TestHTML_Matches(t *testing.T) {
	p := parser.NewHTML()
	if !p.Matches(&models.ContentObject{Body: "<p>Hi</p>"}) {
		t.Error("Markup body should match")
	}
	if p.Matches(&models.ContentObject{Body: "Plain text, 1 < 2"}) {
		t.Error("Plain text should not match")
	}
}

func TestHTML_ParsedTexts(t *testing.T) {
	p := parser.NewHTML()
	obj := &models.ContentObject{
		Title: "Page",
		Body: `<h1>Heading</h1>
<p>A paragraph with <strong>bold</strong> text.</p>
<p><img src="x.png"></p>
<p>   </p>
<ul><li>First item</li><li>Second item</li></ul>`,
	}

	fragments := p.ParsedTexts(obj)
	want := []string{
		"Page",
		"Heading",
		"A paragraph with <strong>bold</strong> text.",
		"First item",
		"Second item",
	}
	if len(fragments) != len(want) {
		t.Fatalf("Expected %d fragments, got %d: %+v", len(want), len(fragments), fragments)
	}
	for i, text := range want {
		if fragments[i].Text != text {
			t.Errorf("Fragment %d: expected %q, got %q", i, text, fragments[i].Text)
		}
	}
	if fragments[0].Field != parser.FieldTitle || fragments[0].HTML {
		t.Errorf("Title fragment mis-tagged: %+v", fragments[0])
	}
	if !fragments[2].HTML {
		t.Error("Body fragments must be marked as HTML")
	}
}

func TestHTML_SpliceKeepsSurroundingMarkup(t *testing.T) {
	p := parser.NewHTML()
	obj := &models.ContentObject{Body: "<p>Old text with <em>emphasis</em>.</p>"}

	fragments := p.ParsedTexts(obj)
	if len(fragments) != 1 {
		t.Fatalf("Expected 1 fragment, got %d", len(fragments))
	}
	got := p.Splice(obj.Body, fragments[0], "New text.")
	if got != "<p>New text.</p>" {
		t.Errorf("Expected block tags preserved, got %q", got)
	}
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	registry := parser.NewRegistry(parser.NewHTML(), parser.NewPlainText())

	p := registry.Resolve(&models.ContentObject{Body: "<p>Hi</p>"})
	if p == nil || p.Name() != "html" {
		t.Errorf("Expected html parser, got %v", p)
	}

	p = registry.Resolve(&models.ContentObject{Body: "Just words."})
	if p == nil || p.Name() != "plaintext" {
		t.Errorf("Expected plaintext fallback, got %v", p)
	}
}

func TestRegistry_Register(t *testing.T) {
	registry := parser.NewRegistry()
	if registry.Resolve(&models.ContentObject{Body: "x"}) != nil {
		t.Error("Empty registry must resolve to nil")
	}
	registry.Register(parser.NewPlainText())
	if p := registry.Resolve(&models.ContentObject{Body: "x"}); p == nil || p.Name() != "plaintext" {
		t.Errorf("Expected registered parser, got %v", p)
	}
}

package textstore_test

import (
	"context"
	"testing"

	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/mocks"
	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/repository"
	"github.com/easy-language-api/internal/textstore"
	"github.com/rs/zerolog"
)

func newStore(keepUnused bool) (*textstore.Store, *mocks.MockTextRepository, *mocks.MockSimplificationRepository, *mocks.MockUsageRepository) {
	texts := mocks.NewMockTextRepository()
	simps := mocks.NewMockSimplificationRepository()
	usages := mocks.NewMockUsageRepository()
	texts.Usages = usages

	repos := &repository.Repositories{
		Text:           texts,
		Simplification: simps,
		Usage:          usages,
	}
	cfg := &config.SimplifyConfig{
		DefaultSourceLang: "en",
		LanguageMappings:  map[string][]string{"en": {"de"}},
		KeepUnusedTexts:   keepUnused,
	}
	return textstore.New(repos, cfg, zerolog.Nop()), texts, simps, usages
}

func TestAdd_RejectsEmptyText(t *testing.T) {
	store, _, _, _ := newStore(true)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := store.Add(ctx, text, "en", "body", false); err != textstore.ErrEmptyText {
			t.Errorf("Add(%q): expected ErrEmptyText, got %v", text, err)
		}
	}
}

func TestAdd_DefaultsSourceLanguage(t *testing.T) {
	store, _, _, _ := newStore(true)
	ctx := context.Background()

	record, err := store.Add(ctx, "Hello", "", "body", false)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if record.SourceLanguage != "en" {
		t.Errorf("Expected default source language en, got %s", record.SourceLanguage)
	}
	if record.State != models.TextStateToSimplify {
		t.Errorf("New record must start in to_simplify, got %s", record.State)
	}
}

func TestFindByText_DedupesByContent(t *testing.T) {
	store, texts, _, _ := newStore(true)
	ctx := context.Background()

	first, err := store.Add(ctx, "Hello World", "en", "body", false)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Identical bytes resolve to the same record, so the API is never
	// paid twice for the same text.
	found, err := store.FindByText(ctx, "Hello World", "en")
	if err != nil {
		t.Fatalf("FindByText failed: %v", err)
	}
	if found == nil || found.ID != first.ID {
		t.Errorf("Expected record %d, got %+v", first.ID, found)
	}
	if len(texts.Texts) != 1 {
		t.Errorf("Expected 1 stored record, got %d", len(texts.Texts))
	}

	// Same bytes in another source language are a distinct record
	other, err := store.FindByText(ctx, "Hello World", "fr")
	if err != nil {
		t.Fatalf("FindByText failed: %v", err)
	}
	if other != nil {
		t.Errorf("Expected no record for fr, got %+v", other)
	}
}

func TestFindBySimplification(t *testing.T) {
	store, _, _, _ := newStore(true)
	ctx := context.Background()

	record, _ := store.Add(ctx, "Hello", "en", "body", false)
	if err := store.SetSimplification(ctx, record, "Hallo", "de", "test", "job-1", 0); err != nil {
		t.Fatalf("SetSimplification failed: %v", err)
	}

	owner, err := store.FindBySimplification(ctx, "Hallo", "de")
	if err != nil {
		t.Fatalf("FindBySimplification failed: %v", err)
	}
	if owner == nil || owner.ID != record.ID {
		t.Errorf("Expected owner %d, got %+v", record.ID, owner)
	}

	none, _ := store.FindBySimplification(ctx, "Hallo", "fr")
	if none != nil {
		t.Errorf("Expected no owner for fr, got %+v", none)
	}
}

func TestSetState_IgnoresIllegalStates(t *testing.T) {
	store, texts, _, _ := newStore(true)
	ctx := context.Background()

	record, _ := store.Add(ctx, "Hello", "en", "body", false)

	if err := store.SetState(ctx, record, models.TextState("exploded")); err != nil {
		t.Fatalf("SetState returned error for illegal state: %v", err)
	}
	stored, _ := texts.GetByID(ctx, record.ID)
	if stored.State != models.TextStateToSimplify {
		t.Errorf("Illegal state must not be applied, got %s", stored.State)
	}

	if err := store.SetState(ctx, record, models.TextStateIgnore); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	stored, _ = texts.GetByID(ctx, record.ID)
	if stored.State != models.TextStateIgnore {
		t.Errorf("Expected ignore, got %s", stored.State)
	}
}

func TestSetSimplification_AdvancesToInUse(t *testing.T) {
	store, texts, simps, _ := newStore(true)
	ctx := context.Background()

	record, _ := store.Add(ctx, "Hello", "en", "body", false)
	if err := store.SetSimplification(ctx, record, "Hallo", "de", "openai", "job-1", 7); err != nil {
		t.Fatalf("SetSimplification failed: %v", err)
	}

	stored, _ := texts.GetByID(ctx, record.ID)
	if stored.State != models.TextStateInUse {
		t.Errorf("Expected in_use after simplification, got %s", stored.State)
	}

	has, _ := store.HasSimplificationInLanguage(ctx, record, "de")
	if !has {
		t.Error("Expected a de simplification")
	}
	has, _ = store.HasSimplificationInLanguage(ctx, record, "fr")
	if has {
		t.Error("Did not expect an fr simplification")
	}

	sim, _ := simps.GetByTextAndLanguage(ctx, record.ID, "de")
	if sim.JobID != "job-1" || sim.UserID != 7 || sim.UsedAPI != "openai" {
		t.Errorf("Simplification metadata not stored: %+v", sim)
	}
}

func TestGetSimplification_FallsBackToOriginal(t *testing.T) {
	store, _, _, _ := newStore(true)
	ctx := context.Background()

	record, _ := store.Add(ctx, "Hello", "en", "body", false)

	text, err := store.GetSimplification(ctx, record, "de")
	if err != nil {
		t.Fatalf("GetSimplification failed: %v", err)
	}
	if text != "Hello" {
		t.Errorf("Expected the original as fallback, got %q", text)
	}

	store.SetSimplification(ctx, record, "Hallo", "de", "test", "", 0)
	text, _ = store.GetSimplification(ctx, record, "de")
	if text != "Hallo" {
		t.Errorf("Expected Hallo, got %q", text)
	}
}

func TestDelete_KeepUnusedPolicy(t *testing.T) {
	store, texts, simps, usages := newStore(true)
	ctx := context.Background()

	record, _ := store.Add(ctx, "Hello", "en", "body", false)
	store.SetSimplification(ctx, record, "Hallo", "de", "test", "", 0)
	usages.Upsert(ctx, &models.TextUsage{TextID: record.ID, ObjectID: 1, ObjectType: "page"})

	if err := store.Delete(ctx, record, 1, "page"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// Policy on: the unused original and its simplification survive
	stored, _ := texts.GetByID(ctx, record.ID)
	if stored == nil {
		t.Error("Original should survive with keep-unused on")
	}
	count, _ := simps.Count(ctx)
	if count != 1 {
		t.Errorf("Simplification should survive, got %d", count)
	}
}

func TestDelete_CascadesWhenUnused(t *testing.T) {
	store, texts, simps, usages := newStore(false)
	ctx := context.Background()

	record, _ := store.Add(ctx, "Hello", "en", "body", false)
	store.SetSimplification(ctx, record, "Hallo", "de", "test", "", 0)
	usages.Upsert(ctx, &models.TextUsage{TextID: record.ID, ObjectID: 1, ObjectType: "page"})
	usages.Upsert(ctx, &models.TextUsage{TextID: record.ID, ObjectID: 2, ObjectType: "page"})

	// Still used by object 2: nothing cascades
	if err := store.Delete(ctx, record, 1, "page"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if stored, _ := texts.GetByID(ctx, record.ID); stored == nil {
		t.Fatal("Original must survive while another object uses it")
	}

	// Last usage gone: the original and its simplifications go too
	if err := store.Delete(ctx, record, 2, "page"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if stored, _ := texts.GetByID(ctx, record.ID); stored != nil {
		t.Error("Original should be deleted once unused")
	}
	count, _ := simps.Count(ctx)
	if count != 0 {
		t.Errorf("Simplifications should cascade, got %d", count)
	}

	// The memo must not resurrect the deleted record
	found, _ := store.FindByText(ctx, "Hello", "en")
	if found != nil {
		t.Errorf("Deleted record must not be found, got %+v", found)
	}
}

func TestResetAllSimplifications(t *testing.T) {
	store, _, simps, _ := newStore(true)
	ctx := context.Background()

	a, _ := store.Add(ctx, "One", "en", "body", false)
	b, _ := store.Add(ctx, "Two", "en", "body", false)
	store.SetSimplification(ctx, a, "Eins", "de", "test", "", 0)
	store.SetSimplification(ctx, b, "Zwei", "de", "test", "", 0)

	if err := store.ResetAllSimplifications(ctx); err != nil {
		t.Fatalf("ResetAllSimplifications failed: %v", err)
	}
	count, _ := simps.Count(ctx)
	if count != 0 {
		t.Errorf("Expected 0 simplifications after reset, got %d", count)
	}
}

func TestHash_IsStable(t *testing.T) {
	if textstore.Hash("Hello") != textstore.Hash("Hello") {
		t.Error("Hash must be deterministic")
	}
	if textstore.Hash("Hello") == textstore.Hash("hello") {
		t.Error("Hash must be content-sensitive")
	}
}

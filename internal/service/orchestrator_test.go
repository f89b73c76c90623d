package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/easy-language-api/internal/config"
	"github.com/easy-language-api/internal/mocks"
	"github.com/easy-language-api/internal/models"
	"github.com/easy-language-api/internal/parser"
	"github.com/easy-language-api/internal/repository"
	"github.com/easy-language-api/internal/service"
	"github.com/easy-language-api/internal/textstore"
	"github.com/rs/zerolog"
)

type fixture struct {
	repos   *repository.Repositories
	texts   *mocks.MockTextRepository
	simps   *mocks.MockSimplificationRepository
	usages  *mocks.MockUsageRepository
	objects *mocks.MockObjectRepository
	markers *mocks.MockRunMarkerRepository
	client  *mocks.MockClient
	store   *textstore.Store
	cfg     *config.SimplifyConfig
	intake  *service.Intake
	orch    *service.Orchestrator
}

func newFixture() *fixture {
	texts := mocks.NewMockTextRepository()
	simps := mocks.NewMockSimplificationRepository()
	usages := mocks.NewMockUsageRepository()
	texts.Usages = usages
	objects := mocks.NewMockObjectRepository()
	markers := mocks.NewMockRunMarkerRepository()

	repos := &repository.Repositories{
		Text:           texts,
		Simplification: simps,
		Usage:          usages,
		Object:         objects,
		RunMarker:      markers,
	}

	cfg := &config.SimplifyConfig{
		DefaultSourceLang: "en",
		LanguageMappings:  map[string][]string{"en": {"de"}},
		KeepUnusedTexts:   true,
		TenantID:          1,
	}

	client := mocks.NewMockClient()
	parsers := parser.NewRegistry(parser.NewHTML(), parser.NewPlainText())
	log := zerolog.Nop()
	store := textstore.New(repos, cfg, log)

	return &fixture{
		repos:   repos,
		texts:   texts,
		simps:   simps,
		usages:  usages,
		objects: objects,
		markers: markers,
		client:  client,
		store:   store,
		cfg:     cfg,
		intake:  service.NewIntake(store, repos, parsers, cfg, log),
		orch:    service.NewOrchestrator(store, repos, parsers, client, cfg, log),
	}
}

func (f *fixture) createObject(t *testing.T, title, body string) *models.ContentObject {
	t.Helper()
	obj := &models.ContentObject{
		Type:     "page",
		Title:    title,
		Body:     body,
		Language: "en",
	}
	if err := f.objects.Create(context.Background(), obj); err != nil {
		t.Fatalf("Create object failed: %v", err)
	}
	return obj
}

func (f *fixture) extract(t *testing.T, obj *models.ContentObject) {
	t.Helper()
	if _, err := f.intake.MakeSimplifiable(context.Background(), obj); err != nil {
		t.Fatalf("MakeSimplifiable failed: %v", err)
	}
}

func TestRunBatch_EndToEnd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello\n\nWorld")
	f.extract(t, obj)
	f.client.Responses["Hello"] = "Hallo"
	f.client.Responses["World"] = "Welt"

	processed, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if processed != 2 {
		t.Errorf("Expected 2 processed, got %d", processed)
	}
	if result.Kind != models.ResultSuccess {
		t.Errorf("Expected success result, got %s: %s", result.Kind, result.Message)
	}
	if f.client.Calls != 2 {
		t.Errorf("Expected 2 API calls, got %d", f.client.Calls)
	}

	// Both records must end in_use with a German simplification each
	for _, record := range f.texts.Texts {
		if record.State != models.TextStateInUse {
			t.Errorf("Record %d: expected in_use, got %s", record.ID, record.State)
		}
	}
	count, _ := f.simps.Count(ctx)
	if count != 2 {
		t.Errorf("Expected 2 simplifications, got %d", count)
	}

	// The German copy must carry the spliced text
	copyObj, _ := f.objects.GetSimplifiedCopy(ctx, obj.ID, obj.Type, "de")
	if copyObj == nil {
		t.Fatal("German copy should exist")
	}
	if !strings.Contains(copyObj.Body, "Hallo") || !strings.Contains(copyObj.Body, "Welt") {
		t.Errorf("Copy body not spliced: %q", copyObj.Body)
	}

	marker, _ := f.markers.Get(ctx, obj.RunHash())
	if marker.Count != 2 || marker.Max != 2 {
		t.Errorf("Expected count==max==2, got count=%d max=%d", marker.Count, marker.Max)
	}
	if marker.IsRunning() {
		t.Error("Run slot should be released")
	}
}

func TestRunBatch_RerunDoesNotCallAPI(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello\n\nWorld")
	f.extract(t, obj)

	if _, _, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	callsAfterFirst := f.client.Calls

	processed, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if f.client.Calls != callsAfterFirst {
		t.Errorf("Second run spent API calls: %d -> %d", callsAfterFirst, f.client.Calls)
	}
	if processed != 2 {
		t.Errorf("Expected previously-recorded max 2, got %d", processed)
	}
	if result.Kind != models.ResultNothingToDo {
		t.Errorf("Expected nothing_to_do, got %s", result.Kind)
	}
}

func TestRunBatch_SingleFlight(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)

	// Simulate a run in flight
	if _, err := f.markers.TryStart(ctx, obj.RunHash(), time.Now(), 1); err != nil {
		t.Fatalf("TryStart failed: %v", err)
	}

	processed, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if processed != 0 {
		t.Errorf("Expected 0 processed, got %d", processed)
	}
	if result.Kind != models.ResultAlreadyRunning {
		t.Errorf("Expected already_running, got %s", result.Kind)
	}
	if f.client.Calls != 0 {
		t.Errorf("Guard must prevent API calls, got %d", f.client.Calls)
	}
}

func TestRunBatch_CrashRecovery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)

	// Leave a record stuck in processing, as a crashed run would
	records, _ := f.store.Query(ctx, &models.TextFilter{ObjectID: obj.ID, ObjectType: obj.Type})
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	f.texts.UpdateState(ctx, records[0].ID, models.TextStateProcessing)

	processed, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if processed != 0 || result.Kind != models.ResultStaleProcessing {
		t.Fatalf("Expected stale_processing with 0 processed, got %d / %s", processed, result.Kind)
	}
	if len(result.StaleTextIDs) != 1 || result.StaleTextIDs[0] != records[0].ID {
		t.Errorf("Expected stale ids [%d], got %v", records[0].ID, result.StaleTextIDs)
	}
	if f.client.Calls != 0 {
		t.Errorf("Blocked run must not call the API, got %d calls", f.client.Calls)
	}

	// Retry resets to to_simplify exactly, not to in_use
	count, err := f.orch.RecoverStale(ctx, obj, "retry")
	if err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 recovered record, got %d", count)
	}
	record, _ := f.texts.GetByID(ctx, records[0].ID)
	if record.State != models.TextStateToSimplify {
		t.Errorf("Expected to_simplify after retry, got %s", record.State)
	}

	// A fresh run now proceeds
	processed, result, err = f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch after recovery failed: %v", err)
	}
	if result.Kind != models.ResultSuccess || processed != 1 {
		t.Errorf("Expected success with 1 processed, got %s / %d", result.Kind, processed)
	}
}

func TestRecoverStale_Ignore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)
	records, _ := f.store.Query(ctx, &models.TextFilter{ObjectID: obj.ID, ObjectType: obj.Type})
	f.texts.UpdateState(ctx, records[0].ID, models.TextStateProcessing)

	if _, err := f.orch.RecoverStale(ctx, obj, "ignore"); err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	record, _ := f.texts.GetByID(ctx, records[0].ID)
	if record.State != models.TextStateIgnore {
		t.Errorf("Expected ignore, got %s", record.State)
	}

	if _, err := f.orch.RecoverStale(ctx, obj, "discard"); err == nil {
		t.Error("Unknown action should be rejected")
	}
}

func TestRunBatch_QuotaGate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.client.MaxRequests = 5

	obj := f.createObject(t, "", "One\n\nTwo\n\nThree\n\nFour\n\nFive\n\nSix")
	f.extract(t, obj)

	processed, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if processed != 0 {
		t.Errorf("Expected 0 processed, got %d", processed)
	}
	if result.Kind != models.ResultQuotaDeferred {
		t.Errorf("Expected quota_deferred, got %s", result.Kind)
	}
	if f.client.Calls != 0 {
		t.Errorf("Quota gate must prevent API calls, got %d", f.client.Calls)
	}

	// The automatic run is what the gate defers to; it proceeds
	processed, result, err = f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true, Automatic: true})
	if err != nil {
		t.Fatalf("Automatic run failed: %v", err)
	}
	if result.Kind != models.ResultSuccess || processed != 6 {
		t.Errorf("Expected automatic success with 6 processed, got %s / %d", result.Kind, processed)
	}

	// An object that opted out of automatic mode gets told to enable
	// it instead of being pointed at a run that will never come.
	prevented := &models.ContentObject{
		Type:                   "page",
		Body:                   "One\n\nTwo\n\nThree\n\nFour\n\nFive\n\nSix",
		Language:               "en",
		AutomaticModePrevented: true,
	}
	f.objects.Create(ctx, prevented)
	f.extract(t, prevented)

	_, result, err = f.orch.RunBatch(ctx, prevented, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.Kind != models.ResultQuotaDeferred {
		t.Errorf("Expected quota_deferred, got %s", result.Kind)
	}
	if !strings.Contains(result.Message, "enable automatic mode") {
		t.Errorf("Expected the enable-automatic-mode hint, got %q", result.Message)
	}
}

func TestRunBatch_ReuseWithoutSpendingQuota(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Object O produced "Hallo" for "Hello" earlier; object P shares
	// the fragment and its own run must splice without an API call.
	objO := f.createObject(t, "", "Hello")
	f.extract(t, objO)
	if _, _, err := f.orch.RunBatch(ctx, objO, service.RunOptions{Init: true}); err != nil {
		t.Fatalf("Run on O failed: %v", err)
	}
	callsAfterO := f.client.Calls
	if callsAfterO != 1 {
		t.Fatalf("Expected 1 API call for O, got %d", callsAfterO)
	}

	objP := f.createObject(t, "", "Hello")
	f.extract(t, objP)

	// The shared record carries O's simplification already; put it
	// back in P's queue the way a pending selection would see it.
	record, err := f.store.FindByText(ctx, "Hello", "en")
	if err != nil || record == nil {
		t.Fatalf("Shared record not found: %v", err)
	}
	f.texts.UpdateState(ctx, record.ID, models.TextStateToSimplify)

	processed, result, err := f.orch.RunBatch(ctx, objP, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("Run on P failed: %v", err)
	}
	if f.client.Calls != callsAfterO {
		t.Errorf("Reuse must not call the API: %d -> %d", callsAfterO, f.client.Calls)
	}
	if processed != 1 {
		t.Errorf("Expected 1 processed, got %d", processed)
	}
	if result.Kind != models.ResultSuccess {
		t.Errorf("Expected success, got %s: %s", result.Kind, result.Message)
	}
	if result.Produced != 0 || result.Replaced != 1 {
		t.Errorf("Expected produced=0 replaced=1, got produced=%d replaced=%d", result.Produced, result.Replaced)
	}

	copyObj, _ := f.objects.GetSimplifiedCopy(ctx, objP.ID, objP.Type, "de")
	if copyObj == nil || !strings.Contains(copyObj.Body, "[easy] Hello") {
		t.Errorf("P's German copy missing spliced text: %+v", copyObj)
	}
}

func TestRunBatch_APIErrorSurfaced(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)
	f.client.CallError = context.DeadlineExceeded

	_, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.Kind != models.ResultAPIError {
		t.Errorf("Expected api_error, got %s", result.Kind)
	}

	// The failed record got no simplification, so setSimplification
	// never ran; it still ends in_use per the observed lifecycle, and
	// the error is what the operator acts on.
	records, _ := f.store.Query(ctx, &models.TextFilter{ObjectID: obj.ID, ObjectType: obj.Type})
	if records[0].State != models.TextStateInUse {
		t.Errorf("Expected in_use, got %s", records[0].State)
	}
	count, _ := f.simps.Count(ctx)
	if count != 0 {
		t.Errorf("Expected no simplifications, got %d", count)
	}
}

func TestRunBatch_StoreFailureHoldsRecordForRecovery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)
	f.simps.CreateError = errors.New("insert failed")

	_, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if f.client.Calls != 1 {
		t.Errorf("Expected 1 API call, got %d", f.client.Calls)
	}
	if result.Kind != models.ResultAPIError {
		t.Errorf("Expected api_error for a lost answer, got %s: %s", result.Kind, result.Message)
	}

	// The record must stay in processing, not advance to in_use, so
	// the spent answer is not silently dropped.
	records, _ := f.store.Query(ctx, &models.TextFilter{ObjectID: obj.ID, ObjectType: obj.Type})
	if records[0].State != models.TextStateProcessing {
		t.Errorf("Expected processing, got %s", records[0].State)
	}

	// The next run is blocked until the operator resolves it
	f.simps.CreateError = nil
	_, result, err = f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.Kind != models.ResultStaleProcessing {
		t.Errorf("Expected stale_processing, got %s", result.Kind)
	}

	// Retry then completes normally
	if _, err := f.orch.RecoverStale(ctx, obj, "retry"); err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	_, result, err = f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.Kind != models.ResultSuccess {
		t.Errorf("Expected success after recovery, got %s: %s", result.Kind, result.Message)
	}
}

func TestRunBatch_SpliceMismatchSurfaced(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)

	// A stale German copy that no longer carries the fragment: the API
	// answer has nowhere to go.
	copyObj := &models.ContentObject{
		Type:       "page",
		Body:       "Etwas anderes.",
		Language:   "de",
		OriginalID: &obj.ID,
	}
	f.objects.Create(ctx, copyObj)

	_, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.Kind != models.ResultSpliceMismatch {
		t.Errorf("Expected splice_mismatch, got %s: %s", result.Kind, result.Message)
	}
	if result.Produced != 1 || result.Replaced != 0 {
		t.Errorf("Expected produced=1 replaced=0, got produced=%d replaced=%d", result.Produced, result.Replaced)
	}

	// The record still ends in_use; the hard result is what flags the
	// condition.
	records, _ := f.store.Query(ctx, &models.TextFilter{ObjectID: obj.ID, ObjectType: obj.Type})
	if records[0].State != models.TextStateInUse {
		t.Errorf("Expected in_use, got %s", records[0].State)
	}

	// The copy body stays untouched
	got, _ := f.objects.GetSimplifiedCopy(ctx, obj.ID, obj.Type, "de")
	if got.Body != "Etwas anderes." {
		t.Errorf("Copy body should be unchanged, got %q", got.Body)
	}
}

type countingParser struct {
	*parser.PlainText
	updates int
}

func (p *countingParser) UpdateObject(ctx context.Context, obj *models.ContentObject) error {
	p.updates++
	return nil
}

func TestRunBatch_NotifiesOnlyAfterWork(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := &countingParser{PlainText: parser.NewPlainText()}
	orch := service.NewOrchestrator(f.store, f.repos, parser.NewRegistry(p), f.client, f.cfg, zerolog.Nop())

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)

	if _, _, err := orch.RunBatch(ctx, obj, service.RunOptions{Init: true}); err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if p.updates != 1 {
		t.Fatalf("Expected 1 update notification, got %d", p.updates)
	}

	// An idle re-trigger does no work and must not notify
	if _, _, err := orch.RunBatch(ctx, obj, service.RunOptions{Init: true}); err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if p.updates != 1 {
		t.Errorf("Idle run must not notify, got %d updates", p.updates)
	}
}

func TestRunBatch_LockedObject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	f.extract(t, obj)
	obj.Locked = true

	processed, result, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if processed != 0 || f.client.Calls != 0 {
		t.Errorf("Locked object must not be processed: %d processed, %d calls", processed, f.client.Calls)
	}
	if result.Kind != models.ResultAlreadyRunning {
		t.Errorf("Expected already_running notice, got %s", result.Kind)
	}
}

func TestRunBatch_Pagination(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "One\n\nTwo\n\nThree")
	f.extract(t, obj)

	// First page of one
	processed, _, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true, Limit: 1})
	if err != nil {
		t.Fatalf("First page failed: %v", err)
	}
	if processed != 1 {
		t.Fatalf("Expected 1 processed on first page, got %d", processed)
	}
	marker, _ := f.markers.Get(ctx, obj.RunHash())
	if !marker.IsRunning() {
		t.Fatal("Run slot must stay held between pages")
	}
	if marker.Count != 1 || marker.Max != 3 {
		t.Errorf("Expected count=1 max=3, got count=%d max=%d", marker.Count, marker.Max)
	}

	// Continuation pages are not init calls
	if _, _, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Limit: 1}); err != nil {
		t.Fatalf("Second page failed: %v", err)
	}
	if _, _, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Limit: 1}); err != nil {
		t.Fatalf("Third page failed: %v", err)
	}

	marker, _ = f.markers.Get(ctx, obj.RunHash())
	if marker.IsRunning() {
		t.Error("Run slot should be released after the last page")
	}
	if marker.Count != 3 {
		t.Errorf("Expected count=3, got %d", marker.Count)
	}
	if f.client.Calls != 3 {
		t.Errorf("Expected 3 API calls total, got %d", f.client.Calls)
	}
}

func TestProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := f.createObject(t, "", "Hello")
	progress, err := f.orch.Progress(ctx, obj)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Running || progress.Count != 0 || progress.Max != 0 {
		t.Errorf("Expected empty progress, got %+v", progress)
	}

	f.extract(t, obj)
	if _, _, err := f.orch.RunBatch(ctx, obj, service.RunOptions{Init: true}); err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	progress, _ = f.orch.Progress(ctx, obj)
	if progress.Running {
		t.Error("Run should be finished")
	}
	if progress.Count != 1 || progress.Max != 1 {
		t.Errorf("Expected count==max==1, got %+v", progress)
	}
	if progress.LastResult == nil || progress.LastResult.Kind != models.ResultSuccess {
		t.Errorf("Expected success result, got %+v", progress.LastResult)
	}
}

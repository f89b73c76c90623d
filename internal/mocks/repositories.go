package mocks

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/easy-language-api/internal/models"
)

// MockTextRepository is a mock implementation of TextRepository
type MockTextRepository struct {
	Texts  map[int64]*models.TextRecord
	NextID int64
	// Usages lets Query resolve object filters the way the SQL join does
	Usages      *MockUsageRepository
	CreateError error
}

func NewMockTextRepository() *MockTextRepository {
	return &MockTextRepository{
		Texts:  make(map[int64]*models.TextRecord),
		NextID: 1,
	}
}

func (m *MockTextRepository) Create(ctx context.Context, text *models.TextRecord) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	text.ID = m.NextID
	m.NextID++
	if text.CreatedAt.IsZero() {
		text.CreatedAt = time.Now()
	}
	clone := *text
	m.Texts[text.ID] = &clone
	return nil
}

func (m *MockTextRepository) GetByID(ctx context.Context, id int64) (*models.TextRecord, error) {
	t, ok := m.Texts[id]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func (m *MockTextRepository) GetByHash(ctx context.Context, hash, sourceLanguage string) (*models.TextRecord, error) {
	for _, t := range m.Texts {
		if t.Hash == hash && t.SourceLanguage == sourceLanguage {
			clone := *t
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MockTextRepository) UpdateState(ctx context.Context, id int64, state models.TextState) error {
	if t, ok := m.Texts[id]; ok {
		t.State = state
	}
	return nil
}

func (m *MockTextRepository) Query(ctx context.Context, filter *models.TextFilter) ([]*models.TextRecord, error) {
	if filter == nil {
		filter = &models.TextFilter{}
	}
	var out []*models.TextRecord
	for _, t := range m.Texts {
		if filter.ID != 0 && t.ID != filter.ID {
			continue
		}
		if filter.Hash != "" && t.Hash != filter.Hash {
			continue
		}
		if filter.State != "" && t.State != filter.State {
			continue
		}
		if filter.SourceLanguage != "" && t.SourceLanguage != filter.SourceLanguage {
			continue
		}
		if filter.Field != "" && t.Field != filter.Field {
			continue
		}
		if (filter.ObjectID != 0 || filter.ObjectType != "") && m.Usages != nil {
			if !m.Usages.linked(t.ID, filter.ObjectID, filter.ObjectType) {
				continue
			}
		}
		clone := *t
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Order == models.TextOrderCreatedDesc {
			return out[i].ID > out[j].ID
		}
		if filter.Order == models.TextOrderCreatedAsc {
			return out[i].ID < out[j].ID
		}
		iTitle := out[i].Field == "title"
		jTitle := out[j].Field == "title"
		if iTitle != jTitle {
			return iTitle
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockTextRepository) Delete(ctx context.Context, id int64) error {
	delete(m.Texts, id)
	return nil
}

func (m *MockTextRepository) CountForObject(ctx context.Context, objectID int64, objectType string) (int, error) {
	if m.Usages == nil {
		return 0, nil
	}
	count := 0
	for _, t := range m.Texts {
		if m.Usages.linked(t.ID, objectID, objectType) {
			count++
		}
	}
	return count, nil
}

func (m *MockTextRepository) Count(ctx context.Context) (int, error) {
	return len(m.Texts), nil
}

// MockSimplificationRepository is a mock implementation of SimplificationRepository
type MockSimplificationRepository struct {
	Simplifications []*models.Simplification
	NextID          int64
	CreateError     error
	CreateCalls     int
}

func NewMockSimplificationRepository() *MockSimplificationRepository {
	return &MockSimplificationRepository{NextID: 1}
}

func (m *MockSimplificationRepository) Create(ctx context.Context, s *models.Simplification) error {
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	s.ID = m.NextID
	m.NextID++
	clone := *s
	m.Simplifications = append(m.Simplifications, &clone)
	return nil
}

func (m *MockSimplificationRepository) GetByText(ctx context.Context, textID int64) ([]*models.Simplification, error) {
	var out []*models.Simplification
	for _, s := range m.Simplifications {
		if s.TextID == textID {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockSimplificationRepository) GetByTextAndLanguage(ctx context.Context, textID int64, language string) (*models.Simplification, error) {
	for _, s := range m.Simplifications {
		if s.TextID == textID && s.TargetLanguage == language {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MockSimplificationRepository) GetTextIDByHash(ctx context.Context, hash, language string) (int64, error) {
	for _, s := range m.Simplifications {
		if s.Hash == hash && s.TargetLanguage == language {
			return s.TextID, nil
		}
	}
	return 0, nil
}

func (m *MockSimplificationRepository) DeleteByText(ctx context.Context, textID int64) error {
	var kept []*models.Simplification
	for _, s := range m.Simplifications {
		if s.TextID != textID {
			kept = append(kept, s)
		}
	}
	m.Simplifications = kept
	return nil
}

func (m *MockSimplificationRepository) ResetAll(ctx context.Context) error {
	m.Simplifications = nil
	return nil
}

func (m *MockSimplificationRepository) Count(ctx context.Context) (int, error) {
	return len(m.Simplifications), nil
}

// MockUsageRepository is a mock implementation of UsageRepository
type MockUsageRepository struct {
	Links  []*models.TextUsage
	NextID int64
}

func NewMockUsageRepository() *MockUsageRepository {
	return &MockUsageRepository{NextID: 1}
}

func (m *MockUsageRepository) Upsert(ctx context.Context, usage *models.TextUsage) error {
	for _, u := range m.Links {
		if u.TextID == usage.TextID && u.ObjectID == usage.ObjectID && u.ObjectType == usage.ObjectType && u.TenantID == usage.TenantID {
			u.Position = usage.Position
			u.PageBuilder = usage.PageBuilder
			usage.ID = u.ID
			return nil
		}
	}
	usage.ID = m.NextID
	m.NextID++
	clone := *usage
	m.Links = append(m.Links, &clone)
	return nil
}

func (m *MockUsageRepository) GetByText(ctx context.Context, textID int64) ([]*models.TextUsage, error) {
	var out []*models.TextUsage
	for _, u := range m.Links {
		if u.TextID == textID {
			clone := *u
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockUsageRepository) GetByObject(ctx context.Context, objectID int64, objectType string) ([]*models.TextUsage, error) {
	var out []*models.TextUsage
	for _, u := range m.Links {
		if u.ObjectID == objectID && u.ObjectType == objectType {
			clone := *u
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MockUsageRepository) Delete(ctx context.Context, textID, objectID int64, objectType string) error {
	var kept []*models.TextUsage
	for _, u := range m.Links {
		if u.TextID == textID && u.ObjectID == objectID && u.ObjectType == objectType {
			continue
		}
		kept = append(kept, u)
	}
	m.Links = kept
	return nil
}

func (m *MockUsageRepository) DeleteByText(ctx context.Context, textID int64) error {
	var kept []*models.TextUsage
	for _, u := range m.Links {
		if u.TextID != textID {
			kept = append(kept, u)
		}
	}
	m.Links = kept
	return nil
}

func (m *MockUsageRepository) CountByText(ctx context.Context, textID int64) (int, error) {
	count := 0
	for _, u := range m.Links {
		if u.TextID == textID {
			count++
		}
	}
	return count, nil
}

func (m *MockUsageRepository) linked(textID, objectID int64, objectType string) bool {
	for _, u := range m.Links {
		if u.TextID != textID {
			continue
		}
		if objectID != 0 && u.ObjectID != objectID {
			continue
		}
		if objectType != "" && u.ObjectType != objectType {
			continue
		}
		return true
	}
	return false
}

// MockObjectRepository is a mock implementation of ObjectRepository
type MockObjectRepository struct {
	Objects map[string]*models.ContentObject
	NextID  int64
}

func NewMockObjectRepository() *MockObjectRepository {
	return &MockObjectRepository{
		Objects: make(map[string]*models.ContentObject),
		NextID:  1,
	}
}

func objectKey(id int64, objectType string) string {
	return objectType + "/" + strconv.FormatInt(id, 10)
}

func (m *MockObjectRepository) Create(ctx context.Context, obj *models.ContentObject) error {
	if obj.ID == 0 {
		obj.ID = m.NextID
		m.NextID++
	} else if obj.ID >= m.NextID {
		m.NextID = obj.ID + 1
	}
	if obj.State == "" {
		obj.State = models.ObjectStatePublished
	}
	clone := *obj
	m.Objects[objectKey(obj.ID, obj.Type)] = &clone
	return nil
}

func (m *MockObjectRepository) Update(ctx context.Context, obj *models.ContentObject) error {
	clone := *obj
	m.Objects[objectKey(obj.ID, obj.Type)] = &clone
	return nil
}

func (m *MockObjectRepository) GetByID(ctx context.Context, id int64, objectType string) (*models.ContentObject, error) {
	obj, ok := m.Objects[objectKey(id, objectType)]
	if !ok {
		return nil, nil
	}
	clone := *obj
	return &clone, nil
}

func (m *MockObjectRepository) GetSimplifiedCopy(ctx context.Context, originalID int64, objectType, language string) (*models.ContentObject, error) {
	for _, obj := range m.Objects {
		if obj.OriginalID != nil && *obj.OriginalID == originalID && obj.Type == objectType && obj.Language == language {
			clone := *obj
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MockObjectRepository) ListSimplifiable(ctx context.Context) ([]*models.ContentObject, error) {
	var out []*models.ContentObject
	for _, obj := range m.Objects {
		if obj.OriginalID == nil && obj.State != models.ObjectStateTrash {
			clone := *obj
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockRunMarkerRepository is a mock implementation of RunMarkerRepository
type MockRunMarkerRepository struct {
	Markers map[string]*models.RunMarker
}

func NewMockRunMarkerRepository() *MockRunMarkerRepository {
	return &MockRunMarkerRepository{Markers: make(map[string]*models.RunMarker)}
}

func (m *MockRunMarkerRepository) Get(ctx context.Context, objectHash string) (*models.RunMarker, error) {
	marker, ok := m.Markers[objectHash]
	if !ok {
		return nil, nil
	}
	clone := *marker
	return &clone, nil
}

func (m *MockRunMarkerRepository) TryStart(ctx context.Context, objectHash string, startedAt time.Time, max int) (bool, error) {
	marker, ok := m.Markers[objectHash]
	if ok && marker.RunningAt > 0 {
		return false, nil
	}
	if !ok {
		marker = &models.RunMarker{ObjectHash: objectHash}
		m.Markers[objectHash] = marker
	}
	marker.RunningAt = startedAt.Unix()
	marker.Max = max
	marker.Count = 0
	marker.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockRunMarkerRepository) SetCount(ctx context.Context, objectHash string, count int) error {
	if marker, ok := m.Markers[objectHash]; ok {
		marker.Count = count
	}
	return nil
}

func (m *MockRunMarkerRepository) ClearRunning(ctx context.Context, objectHash string) error {
	if marker, ok := m.Markers[objectHash]; ok {
		marker.RunningAt = 0
	}
	return nil
}

func (m *MockRunMarkerRepository) SetResult(ctx context.Context, objectHash string, result *models.RunResult) error {
	marker, ok := m.Markers[objectHash]
	if !ok {
		marker = &models.RunMarker{ObjectHash: objectHash}
		m.Markers[objectHash] = marker
	}
	marker.Result = result
	marker.UpdatedAt = time.Now()
	return nil
}

func (m *MockRunMarkerRepository) ClearResult(ctx context.Context, objectHash string) error {
	if marker, ok := m.Markers[objectHash]; ok {
		marker.Result = nil
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"knowledge-extraction-platform/models"
)

// fakeCounter counts tokens as len/4 unless an explicit count is registered
// for the text.
type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f *fakeCounter) CountTokens(_ context.Context, text string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if n, ok := f.counts[text]; ok {
		return n, nil
	}
	return len(text) / 4, nil
}

// fakeExtractor returns canned results, or fails every call.
type fakeExtractor struct {
	category string
	results  []ExtractionResult
	err      error
	calls    int
	requests []ExtractionRequest
}

func (f *fakeExtractor) Category() string { return f.category }

func (f *fakeExtractor) Extract(_ context.Context, req ExtractionRequest) ([]ExtractionResult, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeRecordStore keeps records in memory keyed by source+category+context.
type fakeRecordStore struct {
	mu        sync.Mutex
	records   map[string]*models.ExtractionRecord
	synced    map[string]bool
	insertErr error
	findErr   error
	inserts   int
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		records: make(map[string]*models.ExtractionRecord),
		synced:  make(map[string]bool),
	}
}

func recordKey(sourceID, category, contextID string) string {
	return fmt.Sprintf("%s/%s/%s", sourceID, category, contextID)
}

func (f *fakeRecordStore) FindByContext(_ context.Context, sourceID, category, contextID string) (*models.ExtractionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if rec, ok := f.records[recordKey(sourceID, category, contextID)]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRecordStore) Insert(_ context.Context, rec *models.ExtractionRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	rec.ID = primitive.NewObjectID()
	stored := *rec
	f.records[recordKey(rec.SourceID, rec.Category, rec.ContextID)] = &stored
	f.inserts++
	return rec.ID.Hex(), nil
}

func (f *fakeRecordStore) MarkVectorSynced(_ context.Context, recordID string, synced bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced[recordID] = synced
	return nil
}

// fakeEmbedder returns a constant vector.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedDocument(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeVectorStore records upserts and can be told to fail.
type fakeVectorStore struct {
	mu      sync.Mutex
	err     error
	upserts map[string]map[string]any
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{upserts: make(map[string]map[string]any)}
}

func (f *fakeVectorStore) Upsert(_ context.Context, id string, _ []float32, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts[id] = payload
	return nil
}

// fakeUnitStore serves a fixed source and unit list.
type fakeUnitStore struct {
	source *models.Source
	units  []models.TextUnit
	err    error
}

func (f *fakeUnitStore) GetSource(_ context.Context, _ string) (*models.Source, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.source, nil
}

func (f *fakeUnitStore) GetUnits(_ context.Context, _ string) ([]models.TextUnit, error) {
	return f.units, nil
}

var errBoom = errors.New("boom")

func unit(id, sourceID, content string, index int, headings ...string) models.TextUnit {
	return models.TextUnit{
		ID:       id,
		SourceID: sourceID,
		Content:  content,
		Index:    index,
		Position: models.UnitPosition{Headings: headings},
	}
}

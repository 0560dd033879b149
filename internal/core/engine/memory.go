package engine

import (
	"context"
	"sync"
	"time"

	"github.com/clauselens/clauselens/internal/core"
)

// MemoryStore is an in-process ClauseCache and SessionStore. Contents are lost
// on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	documents   map[string]core.Document
	annotations map[annotationKey]core.ClauseAnnotation
}

type annotationKey struct {
	documentID string
	clauseID   string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:   make(map[string]core.Document),
		annotations: make(map[annotationKey]core.ClauseAnnotation),
	}
}

// GetClauseAnnotation implements ClauseCache.
func (m *MemoryStore) GetClauseAnnotation(_ context.Context, documentID, clauseID string) (*core.ClauseAnnotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.annotations[annotationKey{documentID, clauseID}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// UpsertClauseAnnotation implements ClauseCache.
func (m *MemoryStore) UpsertClauseAnnotation(_ context.Context, documentID string, annotation *core.ClauseAnnotation) error {
	if annotation == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *annotation
	stored.FromCache = false
	m.annotations[annotationKey{documentID, annotation.ID}] = stored
	return nil
}

// SaveDocument implements SessionStore.
func (m *MemoryStore) SaveDocument(_ context.Context, doc *core.Document) error {
	if doc == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = copyDocument(*doc)
	return nil
}

// GetDocument implements SessionStore.
func (m *MemoryStore) GetDocument(_ context.Context, id string) (*core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	out := copyDocument(doc)
	return &out, nil
}

// DeleteDocument implements SessionStore. Cached annotations are kept.
func (m *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	return nil
}

// PruneDocuments implements SessionPruner.
func (m *MemoryStore) PruneDocuments(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, doc := range m.documents {
		if doc.UpdatedAt.Before(before) {
			delete(m.documents, id)
			n++
		}
	}
	return n, nil
}

func copyDocument(doc core.Document) core.Document {
	doc.Clauses = append([]core.ClauseRecord(nil), doc.Clauses...)
	return doc
}

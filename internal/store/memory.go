package store

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	uploads  map[string]*Upload
	analyses []*Analysis
	// insertion order; newest-first listing walks it backwards
	order []string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{uploads: map[string]*Upload{}}
}

func (m *MemoryStore) SaveUpload(_ context.Context, u *Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[u.ID]; !ok {
		m.order = append(m.order, u.ID)
	}
	cp := *u
	m.uploads[u.ID] = &cp
	return nil
}

func (m *MemoryStore) GetUpload(_ context.Context, owner, id string) (*Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.uploads[id]
	if !ok || u.Owner != owner {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) ListUploads(_ context.Context, owner string, limit int) ([]*Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Upload
	for i := len(m.order) - 1; i >= 0; i-- {
		u := m.uploads[m.order[i]]
		if u.Owner == owner {
			cp := *u
			out = append(out, &cp)
		}
	}
	return sortUploads(out, limit), nil
}

func (m *MemoryStore) DeleteUpload(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok || u.Owner != owner {
		return ErrNotFound
	}
	delete(m.uploads, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	kept := m.analyses[:0]
	for _, a := range m.analyses {
		if a.UploadID != id {
			kept = append(kept, a)
		}
	}
	m.analyses = kept
	return nil
}

func (m *MemoryStore) AppendAnalysis(_ context.Context, a *Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.analyses = append(m.analyses, &cp)
	return nil
}

func (m *MemoryStore) ListAnalyses(_ context.Context, owner, uploadID string, limit int) ([]*Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Analysis
	for i := len(m.analyses) - 1; i >= 0; i-- {
		a := m.analyses[i]
		if a.Owner != owner || (uploadID != "" && a.UploadID != uploadID) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return sortAnalyses(out, limit), nil
}

func (m *MemoryStore) Close() error { return nil }

package repository

import (
	"context"
	"sync"

	"naskahlokal/internal/document/model"
)

// MemoryStore keeps records in a slice. Nothing survives the process.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []model.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Put(ctx context.Context, rec model.Record) error {
	if err := ctx.Err(); err != nil {
		return storeErr("put", rec.Slug, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.docs {
		if s.docs[i].Slug == rec.Slug {
			s.docs[i] = rec
			return nil
		}
	}
	s.docs = append(s.docs, rec)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, slug string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, storeErr("get", slug, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.docs {
		if d.Slug == slug {
			return d, nil
		}
	}
	return model.Record{}, ErrNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return storeErr("delete", slug, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.docs {
		if s.docs[i].Slug == slug {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list", "", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

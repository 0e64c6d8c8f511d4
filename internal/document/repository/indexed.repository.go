package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"naskahlokal/internal/document/model"
	"naskahlokal/pkg/logger"
)

// KeyIndexKey is where the list of known slugs lives in the KV. Records are
// stored under a prefixed key so no slug can collide with it.
const KeyIndexKey = "documentKeys"

// IndexedStore keeps one JSON record per slug in a KV and maintains an
// ordered, de-duplicated key index alongside so records can be listed.
type IndexedStore struct {
	kv KV
	mu sync.Mutex
}

func NewIndexedStore(kv KV) *IndexedStore {
	return &IndexedStore{kv: kv}
}

func recordKey(slug string) string {
	return "doc:" + slug
}

func (s *IndexedStore) Put(ctx context.Context, rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return storeErr("put", rec.Slug, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, recordKey(rec.Slug), data); err != nil {
		logger.Sugar.Errorf("Failed to write document %s: %v", rec.Slug, err)
		return storeErr("put", rec.Slug, err)
	}

	keys, err := s.readKeys(ctx)
	if err != nil {
		return storeErr("put", rec.Slug, err)
	}
	if slices.Contains(keys, rec.Slug) {
		return nil
	}
	if err := s.writeKeys(ctx, append(keys, rec.Slug)); err != nil {
		logger.Sugar.Errorf("Failed to index document %s: %v", rec.Slug, err)
		return storeErr("put", rec.Slug, err)
	}
	return nil
}

func (s *IndexedStore) Get(ctx context.Context, slug string) (model.Record, error) {
	data, err := s.kv.Get(ctx, recordKey(slug))
	if errors.Is(err, ErrKeyNotFound) {
		return model.Record{}, ErrNotFound
	}
	if err != nil {
		return model.Record{}, storeErr("get", slug, err)
	}
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Record{}, storeErr("get", slug, fmt.Errorf("corrupt record: %w", err))
	}
	return rec, nil
}

func (s *IndexedStore) Delete(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, recordKey(slug)); err != nil {
		logger.Sugar.Errorf("Failed to delete document %s: %v", slug, err)
		return storeErr("delete", slug, err)
	}

	keys, err := s.readKeys(ctx)
	if err != nil {
		return storeErr("delete", slug, err)
	}
	i := slices.Index(keys, slug)
	if i < 0 {
		return nil
	}
	if err := s.writeKeys(ctx, slices.Delete(keys, i, i+1)); err != nil {
		return storeErr("delete", slug, err)
	}
	return nil
}

// ListAll walks the key index. Keys whose record has vanished are skipped.
func (s *IndexedStore) ListAll(ctx context.Context) ([]model.Record, error) {
	s.mu.Lock()
	keys, err := s.readKeys(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, storeErr("list", "", err)
	}

	docs := make([]model.Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			logger.Sugar.Warnf("Key index lists %s but no record is stored", key)
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, rec)
	}
	return docs, nil
}

// Keys returns a copy of the key index in insertion order.
func (s *IndexedStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.readKeys(ctx)
	if err != nil {
		return nil, storeErr("keys", "", err)
	}
	return keys, nil
}

func (s *IndexedStore) Close() error { return nil }

func (s *IndexedStore) readKeys(ctx context.Context) ([]string, error) {
	data, err := s.kv.Get(ctx, KeyIndexKey)
	if errors.Is(err, ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("corrupt key index: %w", err)
	}
	// Older writers could leave duplicates behind.
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *IndexedStore) writeKeys(ctx context.Context, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyIndexKey, data)
}

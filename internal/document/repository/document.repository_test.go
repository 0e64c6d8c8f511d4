package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskahlokal/internal/document/model"
)

func newRecord(slug, date string) model.Record {
	return model.Record{
		Slug:         slug,
		Title:        "Title " + slug,
		Type:         "article",
		Banner:       "/Content/images/social-post/" + slug + ".png",
		DateModified: date,
		Content:      "<p>" + slug + "</p>",
	}
}

func slugsOf(docs []model.Record) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Slug)
	}
	sort.Strings(out)
	return out
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	dir, err := NewDirKV(filepath.Join(t.TempDir(), "kv"))
	require.NoError(t, err)
	lite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })

	return map[string]Store{
		"memory":         NewMemoryStore(),
		"indexed-memory": NewIndexedStore(NewMemoryKV()),
		"indexed-dir":    NewIndexedStore(dir),
		"sqlite":         lite,
	}
}

func TestStorePutListAll(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, newRecord("a", "2024-01-01T00:00:00.000Z")))
			require.NoError(t, s.Put(ctx, newRecord("b", "2024-01-02T00:00:00.000Z")))

			second := newRecord("a", "2024-01-03T00:00:00.000Z")
			second.Content = "<p>rewritten</p>"
			require.NoError(t, s.Put(ctx, second))

			docs, err := s.ListAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, slugsOf(docs))

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, second, got, "last put wins")
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "nope")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.False(t, IsStoreError(err))
		})
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, newRecord("keep", "2024-01-01T00:00:00.000Z")))
			require.NoError(t, s.Put(ctx, newRecord("gone", "2024-01-01T00:00:00.000Z")))

			require.NoError(t, s.Delete(ctx, "gone"))
			require.NoError(t, s.Delete(ctx, "never-existed"))

			docs, err := s.ListAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"keep"}, slugsOf(docs))

			_, err = s.Get(ctx, "gone")
			assert.ErrorIs(t, err, ErrNotFound)

			if idx, ok := s.(*IndexedStore); ok {
				keys, err := idx.Keys(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"keep"}, keys)
			}
		})
	}
}

func TestIndexedStoreKeyIndexDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := NewIndexedStore(NewMemoryKV())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(ctx, newRecord("same", "2024-01-01T00:00:00.000Z")))
	}
	require.NoError(t, s.Put(ctx, newRecord("other", "2024-01-01T00:00:00.000Z")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "other"}, keys)
}

func TestIndexedStoreSkipsStaleKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, KeyIndexKey, []byte(`["ghost","real","real"]`)))
	s := NewIndexedStore(kv)
	require.NoError(t, s.Put(ctx, newRecord("real", "2024-01-01T00:00:00.000Z")))

	docs, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, slugsOf(docs))
}

func TestIndexedStoreCorruptRecordIsStoreError(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, KeyIndexKey, []byte(`["broken"]`)))
	require.NoError(t, kv.Set(ctx, recordKey("broken"), []byte(`{not json`)))
	s := NewIndexedStore(kv)

	_, err := s.ListAll(ctx)
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
}

type failingKV struct {
	*MemoryKV
	failSet bool
}

var errQuota = errors.New("quota exceeded")

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errQuota
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func TestIndexedStorePutFailureIsStoreError(t *testing.T) {
	ctx := context.Background()
	s := NewIndexedStore(&failingKV{MemoryKV: NewMemoryKV(), failSet: true})

	err := s.Put(ctx, newRecord("a", "2024-01-01T00:00:00.000Z"))
	require.Error(t, err)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "put", se.Op)
	assert.Equal(t, "a", se.Slug)
	assert.ErrorIs(t, err, errQuota)
}

func TestDirKVSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "kv")

	first, err := NewDirKV(dir)
	require.NoError(t, err)
	require.NoError(t, NewIndexedStore(first).Put(ctx, newRecord("persisted", "2024-01-01T00:00:00.000Z")))

	second, err := NewDirKV(dir)
	require.NoError(t, err)
	docs, err := NewIndexedStore(second).ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted"}, slugsOf(docs))
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore().Put(ctx, newRecord("a", ""))
	assert.True(t, IsStoreError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

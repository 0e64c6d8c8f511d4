package gateway

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskahlokal/internal/document/model"
)

func TestExportDropsThumbnail(t *testing.T) {
	rec := model.Record{
		Slug:            "my-post",
		Type:            "blog",
		Title:           "My Post",
		Banner:          "/Content/images/social-post/cover.png",
		ThumbnailBase64: "data:image/png;base64,AAAA",
		DateModified:    "2024-01-01T00:00:00.000Z",
		Content:         "<p>hi</p>",
	}

	f, err := Export(rec)
	require.NoError(t, err)
	assert.Equal(t, "my-post.json", f.Name)
	assert.Equal(t, "application/json", f.ContentType)
	assert.NotContains(t, string(f.Data), "thumbnailBase64")
	assert.True(t, strings.HasPrefix(string(f.Data), "{\n  \"entries\": ["), "pretty printed")

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(f.Data, &raw))
	require.Len(t, raw["entries"], 1)
	assert.Equal(t, "My Post", raw["entries"][0]["title"])
}

func TestImportExportRoundTrip(t *testing.T) {
	rec := model.Record{
		Slug:            "round",
		Type:            "note",
		Title:           "Round Trip",
		Banner:          "/b.png",
		ThumbnailBase64: "data:image/png;base64,BBBB",
		DateModified:    "2020-01-01T00:00:00.000Z",
		Content:         "<p>unicode ✓</p>",
	}
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	f, err := Export(rec)
	require.NoError(t, err)
	got, err := Import(f.Data, now)
	require.NoError(t, err)

	want := rec
	want.ThumbnailBase64 = ""
	want.DateModified = "2024-03-01T09:30:00.000Z"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestImportDefaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	got, err := Import([]byte(`{"entries":[{},{"slug":"second"}]}`), now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.Slug, "doc-"))
	assert.Len(t, got.Slug, len("doc-")+9)
	want := model.Record{
		Type:         DefaultImportType,
		Title:        DefaultImportTitle,
		DateModified: model.FormatTime(now),
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.Record{}, "Slug")); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestExportKeepsHTMLUnescaped(t *testing.T) {
	f, err := Export(model.Record{Slug: "html", Content: `<p class="x">a & b</p>`})
	require.NoError(t, err)

	assert.Contains(t, string(f.Data), `"content": "<p class=\"x\">a & b</p>"`)
	assert.NotContains(t, string(f.Data), `\u003c`)
	assert.False(t, strings.HasSuffix(string(f.Data), "\n"))
}

func TestImportDefaultsWrongTypedFields(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	got, err := Import([]byte(`{"entries":[{"slug":"typed","title":5,"type":null,"banner":["x"],"content":"<p>ok</p>"}]}`), now)
	require.NoError(t, err)

	want := model.Record{
		Slug:         "typed",
		Type:         DefaultImportType,
		Title:        DefaultImportTitle,
		Content:      "<p>ok</p>",
		DateModified: model.FormatTime(now),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("import mismatch (-want +got):\n%s", diff)
	}

	got, err = Import([]byte(`{"entries":["not an object"]}`), now)
	require.NoError(t, err)
	assert.Equal(t, DefaultImportTitle, got.Title)
	assert.True(t, strings.HasPrefix(got.Slug, "doc-"))
}

func TestImportRejectsBadFiles(t *testing.T) {
	for name, data := range map[string]string{
		"not json":       `{entries`,
		"no entries":     `{"docs":[]}`,
		"empty entries":  `{"entries":[]}`,
		"null entries":   `{"entries":null}`,
		"entries object": `{"entries":{"slug":"x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Import([]byte(data), time.Now())
			var fe *FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestGenerateSlugIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := GenerateSlug()
		assert.False(t, seen[s])
		seen[s] = true
	}
}

// Package catalog derives the recency-ordered listing of stored documents.
package catalog

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"naskahlokal/internal/document/model"
	"naskahlokal/internal/document/repository"
	"naskahlokal/pkg/logger"
)

const snippetLength = 100

// Entry is a stored record plus what the chooser needs to render it.
type Entry struct {
	Record      model.Record
	ModifiedAt  time.Time
	InvalidDate bool
}

type Catalog struct {
	store repository.Store
	now   func() time.Time
}

func New(store repository.Store) *Catalog {
	return &Catalog{store: store, now: time.Now}
}

// WithClock replaces the time source used for relative labels.
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	c.now = now
	return c
}

// Recent lists every stored record, newest dateModified first. Records with
// unparseable timestamps are flagged and sorted last.
func (c *Catalog) Recent(ctx context.Context) ([]Entry, error) {
	docs, err := c.store.ListAll(ctx)
	if err != nil {
		logger.Sugar.Errorf("Could not load documents: %v", err)
		return nil, err
	}

	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		e := Entry{Record: d}
		t, err := ParseTimestamp(d.DateModified)
		if err != nil {
			logger.Sugar.Warnf("Document %s has %v", d.Slug, err)
			e.InvalidDate = true
		} else {
			e.ModifiedAt = t
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.InvalidDate != b.InvalidDate {
			return b.InvalidDate
		}
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.Record.Slug < b.Record.Slug
	})
	return entries, nil
}

// MostRecent returns the newest record, or false when the store is empty.
func (c *Catalog) MostRecent(ctx context.Context) (model.Record, bool, error) {
	entries, err := c.Recent(ctx)
	if err != nil {
		return model.Record{}, false, err
	}
	if len(entries) == 0 {
		return model.Record{}, false, nil
	}
	return entries[0].Record, true, nil
}

// Listing renders the recent documents for the chooser.
func (c *Catalog) Listing(ctx context.Context) ([]model.DocumentMetadata, error) {
	entries, err := c.Recent(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now()

	out := make([]model.DocumentMetadata, 0, len(entries))
	for _, e := range entries {
		m := model.DocumentMetadata{
			Slug:            e.Record.Slug,
			Title:           e.Record.Title,
			Type:            e.Record.Type,
			ThumbnailBase64: e.Record.ThumbnailBase64,
			DateModified:    e.Record.DateModified,
			ModifiedAt:      e.ModifiedAt,
			Snippet:         Snippet(e.Record.Content),
			InvalidDate:     e.InvalidDate,
		}
		if e.InvalidDate {
			m.Relative = InvalidDateLabel
		} else {
			m.Relative = Since(e.ModifiedAt, now)
		}
		out = append(out, m)
	}
	return out, nil
}

// Snippet turns HTML content into a short single-line plain-text preview.
func Snippet(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	text, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		logger.Sugar.Warnf("Failed to convert content for snippet: %v", err)
		text = content
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	r := []rune(text)
	return string(r[:snippetLength]) + "..."
}

// Package gateway converts document records to and from portable JSON files.
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"naskahlokal/internal/document/model"
)

const (
	DefaultImportType  = "Imported"
	DefaultImportTitle = "Imported Document"
	ContentType        = "application/json"
)

// FormatError means an import payload is not a usable envelope.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "invalid file: " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid file: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// File is an exported document ready to be downloaded.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Export wraps rec in an envelope without its thumbnail.
func Export(rec model.Record) (File, error) {
	env := model.Envelope{Entries: []model.ExportEntry{{
		Slug:         rec.Slug,
		Type:         rec.Type,
		Title:        rec.Title,
		Banner:       rec.Banner,
		DateModified: rec.DateModified,
		Content:      rec.Content,
	}}}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return File{}, fmt.Errorf("encode export: %w", err)
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return File{Name: rec.Slug + ".json", ContentType: ContentType, Data: data}, nil
}

// Import reads the first entry of an envelope. Fields that are missing or
// not strings get defaults, and dateModified is set to now.
func Import(data []byte, now time.Time) (model.Record, error) {
	var env struct {
		Entries json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return model.Record{}, &FormatError{Reason: "malformed JSON", Err: err}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(env.Entries, &entries); err != nil || len(entries) == 0 {
		return model.Record{}, &FormatError{Reason: "entries must be a non-empty array"}
	}

	// A first entry that is not an object imports as all defaults.
	var e map[string]any
	_ = json.Unmarshal(entries[0], &e)

	rec := model.Record{
		Slug:         orDefault(field(e, "slug"), GenerateSlug()),
		Type:         orDefault(field(e, "type"), DefaultImportType),
		Title:        orDefault(field(e, "title"), DefaultImportTitle),
		Banner:       field(e, "banner"),
		Content:      field(e, "content"),
		DateModified: model.FormatTime(now),
	}
	return rec, nil
}

func field(e map[string]any, key string) string {
	v, _ := e[key].(string)
	return v
}

// GenerateSlug returns "doc-" followed by nine random lowercase characters.
func GenerateSlug() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "doc-" + id[:9]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

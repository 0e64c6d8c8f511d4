package model

import "time"

// TimeLayout is how dateModified is written: ISO 8601 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

type Record struct {
	Slug            string `json:"slug"`
	Type            string `json:"type"`
	Title           string `json:"title"`
	Banner          string `json:"banner"`
	ThumbnailBase64 string `json:"thumbnailBase64,omitempty"`
	DateModified    string `json:"dateModified"`
	Content         string `json:"content"`
}

// Meta is the user-supplied part of a new document.
type Meta struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Banner is a cover image as uploaded by the user.
type Banner struct {
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ExportEntry is a record as it appears in a portable file. The thumbnail never leaves the store.
type ExportEntry struct {
	Slug         string `json:"slug"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Banner       string `json:"banner"`
	DateModified string `json:"dateModified"`
	Content      string `json:"content"`
}

type Envelope struct {
	Entries []ExportEntry `json:"entries"`
}

type InfoRequest struct {
	Slug   string  `json:"slug"`
	Title  string  `json:"title"`
	Type   string  `json:"type"`
	Banner *Banner `json:"banner,omitempty"`
}

type NewDocRequest struct {
	Meta
	Banner Banner `json:"banner"`
}

type SaveDocResponse struct {
	Slug         string `json:"slug"`
	DateModified string `json:"dateModified"`
}

// DocumentMetadata is one row of the recent documents listing.
type DocumentMetadata struct {
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Type            string    `json:"type"`
	ThumbnailBase64 string    `json:"thumbnailBase64"`
	DateModified    string    `json:"dateModified"`
	ModifiedAt      time.Time `json:"modified_at"`
	Relative        string    `json:"relative"`
	Snippet         string    `json:"snippet"`
	InvalidDate     bool      `json:"invalid_date,omitempty"`
}

// FormatTime renders t the way dateModified is stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"naskahlokal/internal/document/model"
)

// ErrNotFound is returned by Get when no record is stored under the slug.
var ErrNotFound = errors.New("document not found")

// Store is durable keyed storage of document records. Slug is the only key.
type Store interface {
	// Put inserts or overwrites the record keyed by its slug.
	Put(ctx context.Context, rec model.Record) error
	// Get returns ErrNotFound when the slug is unknown.
	Get(ctx context.Context, slug string) (model.Record, error)
	// Delete removes the record. Unknown slugs are not an error.
	Delete(ctx context.Context, slug string) error
	// ListAll returns every stored record in no particular order.
	ListAll(ctx context.Context) ([]model.Record, error)
	Close() error
}

// StoreError reports a failure of the underlying storage medium.
type StoreError struct {
	Op   string
	Slug string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Slug == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Slug, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, slug string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Slug: slug, Err: err}
}

// IsStoreError reports whether err came from the storage medium.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"naskahlokal/internal/document/model"
	"naskahlokal/internal/document/repository/migrations"
	"naskahlokal/pkg/logger"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type queries struct {
	upsert string
	get    string
	delete string
	list   string
}

var dialectQueries = map[Dialect]queries{
	DialectSQLite: {
		upsert: `INSERT INTO documents (slug, title, type, banner, thumbnail_base64, date_modified, content)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(slug) DO UPDATE SET title = excluded.title, type = excluded.type,
				banner = excluded.banner, thumbnail_base64 = excluded.thumbnail_base64,
				date_modified = excluded.date_modified, content = excluded.content`,
		get:    `SELECT slug, title, type, banner, thumbnail_base64, date_modified, content FROM documents WHERE slug = ?`,
		delete: `DELETE FROM documents WHERE slug = ?`,
		list:   `SELECT slug, title, type, banner, thumbnail_base64, date_modified, content FROM documents`,
	},
	DialectPostgres: {
		upsert: `INSERT INTO documents (slug, title, type, banner, thumbnail_base64, date_modified, content)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, type = EXCLUDED.type,
				banner = EXCLUDED.banner, thumbnail_base64 = EXCLUDED.thumbnail_base64,
				date_modified = EXCLUDED.date_modified, content = EXCLUDED.content`,
		get:    `SELECT slug, title, type, banner, thumbnail_base64, date_modified, content FROM documents WHERE slug = $1`,
		delete: `DELETE FROM documents WHERE slug = $1`,
		list:   `SELECT slug, title, type, banner, thumbnail_base64, date_modified, content FROM documents`,
	},
}

// SQLStore keeps records in a single documents table. Listing is a full scan.
type SQLStore struct {
	DB *sql.DB
	q  queries
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	q, ok := dialectQueries[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return &SQLStore{DB: db, q: q}, nil
}

// Migrate creates the documents table on first use. Running it again is a no-op.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	gd := goose.DialectSQLite3
	if dialect == DialectPostgres {
		gd = goose.DialectPostgres
	}
	provider, err := goose.NewProvider(gd, db, migrations.FS)
	if err != nil {
		return storeErr("migrate", "", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return storeErr("migrate", "", err)
	}
	for _, r := range results {
		logger.Sugar.Infof("Applied migration %s", r.Source.Path)
	}
	return nil
}

// OpenSQLite opens (or creates) the database file at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr("open", "", err)
	}
	// One writer at a time avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeErr("open", "", err)
	}
	if err := Migrate(ctx, db, DialectSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLStore(db, DialectSQLite)
}

func (s *SQLStore) Put(ctx context.Context, rec model.Record) error {
	_, err := s.DB.ExecContext(ctx, s.q.upsert,
		rec.Slug, rec.Title, rec.Type, rec.Banner, rec.ThumbnailBase64, rec.DateModified, rec.Content)
	if err != nil {
		logger.Sugar.Errorf("Failed to save document %s: %v", rec.Slug, err)
		return storeErr("put", rec.Slug, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, slug string) (model.Record, error) {
	var rec model.Record
	err := s.DB.QueryRowContext(ctx, s.q.get, slug).Scan(
		&rec.Slug, &rec.Title, &rec.Type, &rec.Banner, &rec.ThumbnailBase64, &rec.DateModified, &rec.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load document %s: %v", slug, err)
		return model.Record{}, storeErr("get", slug, err)
	}
	return rec, nil
}

func (s *SQLStore) Delete(ctx context.Context, slug string) error {
	if _, err := s.DB.ExecContext(ctx, s.q.delete, slug); err != nil {
		logger.Sugar.Errorf("Failed to delete document %s: %v", slug, err)
		return storeErr("delete", slug, err)
	}
	return nil
}

func (s *SQLStore) ListAll(ctx context.Context) ([]model.Record, error) {
	rows, err := s.DB.QueryContext(ctx, s.q.list)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, storeErr("list", "", err)
	}
	defer rows.Close()

	var docs []model.Record
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&rec.Slug, &rec.Title, &rec.Type, &rec.Banner, &rec.ThumbnailBase64, &rec.DateModified, &rec.Content); err != nil {
			return nil, storeErr("list", "", err)
		}
		docs = append(docs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", "", err)
	}
	return docs, nil
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

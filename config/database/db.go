package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"

	"naskahlokal/config"
	"naskahlokal/internal/document/repository"
	"naskahlokal/pkg/logger"
)

const (
	connectAttempts = 5
	retryDelay      = 2 * time.Second
)

// DSN builds the PostgreSQL connection string.
func DSN(pg config.Postgres) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pg.User, pg.Password),
		Host:     pg.Host + ":" + pg.Port,
		Path:     "/" + pg.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(pg.SSLMode),
	}
	return u.String()
}

// Connect opens PostgreSQL and pings it, retrying a few times for slow starts.
func Connect(ctx context.Context, pg config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", DSN(pg))
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	for i := 0; i < connectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", retryDelay, err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
}

// OpenStore builds the document store selected by cfg.Store.
func OpenStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	case config.StoreIndexedMemory:
		return repository.NewIndexedStore(repository.NewMemoryKV()), nil
	case config.StoreIndexedDir:
		kv, err := repository.NewDirKV(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return repository.NewIndexedStore(kv), nil
	case config.StoreSQLite:
		s, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorePostgres:
		db, err := Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, db, repository.DialectPostgres); err != nil {
			db.Close()
			return nil, err
		}
		s, err := repository.NewSQLStore(db, repository.DialectPostgres)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

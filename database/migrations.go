package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations run in order on every start and must stay idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`},

	{"users display_name", `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name='users' AND column_name='display_name') THEN
			ALTER TABLE users ADD COLUMN display_name VARCHAR(255) NOT NULL DEFAULT '';
		END IF;
	END $$;`},

	{"movies", `
	CREATE TABLE IF NOT EXISTS movies (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL CHECK (name <> ''),
		poster TEXT,
		genres TEXT[] NOT NULL DEFAULT '{Others}',
		plot TEXT,
		actors TEXT,
		website TEXT,
		imdb_rating TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'wishlist' CHECK (status IN ('wishlist', 'watched')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_movies_owner_created ON movies (owner_id, created_at);`},

	// One notification per statement row; the payload is the owner whose collection changed.
	{"movies notify trigger", `
	CREATE OR REPLACE FUNCTION notify_movies_changed() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('movies_changed', COALESCE(NEW.owner_id, OLD.owner_id));
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS movies_changed ON movies;
	CREATE TRIGGER movies_changed
		AFTER INSERT OR UPDATE OR DELETE ON movies
		FOR EACH ROW EXECUTE FUNCTION notify_movies_changed();`},
}

func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to run %s migration: %w", m.name, err)
		}
	}
	return nil
}

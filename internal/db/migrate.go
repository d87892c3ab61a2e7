package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id text PRIMARY KEY,
    username text,
    password_hash text,
    password_salt text,
    hash_version text,
    secret text,
    created_at bigint NOT NULL,
    updated_at bigint NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_unique
ON users (LOWER(username))`,
	`CREATE TABLE IF NOT EXISTS identities (
    provider text NOT NULL,
    provider_user_id text NOT NULL,
    user_id text NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at bigint NOT NULL,
    PRIMARY KEY (provider, provider_user_id)
)`,
	`CREATE INDEX IF NOT EXISTS identities_user_id_idx
ON identities (user_id)`,
}

// Migrate creates the user store schema. It is safe to run on every start.
func Migrate(ctx context.Context, d *DB) error {
	for i, stmt := range schema {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migration step %d: %w", i+1, err)
		}
	}
	return nil
}

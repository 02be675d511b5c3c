package profilepg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tyemirov/taskdeck/internal/sessionkit"
)

const profileSlot = "default"

// PostgresProfileStore persists the non-sensitive session profile in
// PostgreSQL. Tokens never touch this store.
type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

// NewPostgresProfileStore constructs a Postgres-backed profile store.
func NewPostgresProfileStore(pool *pgxpool.Pool) *PostgresProfileStore {
	return &PostgresProfileStore{pool: pool}
}

// Connect builds a pool, ensures the schema, and returns a ready store.
func Connect(ctx context.Context, databaseURL string) (*PostgresProfileStore, error) {
	pool, poolErr := BuildPool(ctx, databaseURL)
	if poolErr != nil {
		return nil, fmt.Errorf("profile_store.pg.connect: %w", poolErr)
	}
	if schemaErr := EnsureSchema(ctx, pool); schemaErr != nil {
		pool.Close()
		return nil, fmt.Errorf("profile_store.pg.schema: %w", schemaErr)
	}
	return NewPostgresProfileStore(pool), nil
}

// Close releases the underlying pool.
func (store *PostgresProfileStore) Close() {
	store.pool.Close()
}

// Save upserts the profile row.
func (store *PostgresProfileStore) Save(ctx context.Context, profile sessionkit.Profile) error {
	lastLoginUnix := int64(0)
	if !profile.AuthMeta.LastLoginAt.IsZero() {
		lastLoginUnix = profile.AuthMeta.LastLoginAt.UTC().Unix()
	}
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO session_profiles (slot, user_id, username, email, role, session_id, device_id, last_login_unix, updated_at_unix)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (slot) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    username = EXCLUDED.username,
    email = EXCLUDED.email,
    role = EXCLUDED.role,
    session_id = EXCLUDED.session_id,
    device_id = EXCLUDED.device_id,
    last_login_unix = EXCLUDED.last_login_unix,
    updated_at_unix = EXCLUDED.updated_at_unix
`, profileSlot,
		profile.User.ID, profile.User.Username, profile.User.Email, profile.User.Role,
		profile.AuthMeta.SessionID, profile.AuthMeta.DeviceID,
		lastLoginUnix, time.Now().UTC().Unix())
	if execErr != nil {
		return fmt.Errorf("profile_store.pg.save: %w", execErr)
	}
	return nil
}

// Load reads the profile row. A missing row is not an error.
func (store *PostgresProfileStore) Load(ctx context.Context) (sessionkit.Profile, bool, error) {
	var profile sessionkit.Profile
	var lastLoginUnix int64
	row := store.pool.QueryRow(ctx, `
SELECT user_id, username, email, role, session_id, device_id, last_login_unix
FROM session_profiles
WHERE slot = $1
`, profileSlot)
	scanErr := row.Scan(
		&profile.User.ID, &profile.User.Username, &profile.User.Email, &profile.User.Role,
		&profile.AuthMeta.SessionID, &profile.AuthMeta.DeviceID, &lastLoginUnix)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return sessionkit.Profile{}, false, nil
		}
		return sessionkit.Profile{}, false, fmt.Errorf("profile_store.pg.load: %w", scanErr)
	}
	if lastLoginUnix != 0 {
		profile.AuthMeta.LastLoginAt = time.Unix(lastLoginUnix, 0).UTC()
	}
	return profile, true, nil
}

// Clear removes the profile row.
func (store *PostgresProfileStore) Clear(ctx context.Context) error {
	_, execErr := store.pool.Exec(ctx, `DELETE FROM session_profiles WHERE slot = $1`, profileSlot)
	if execErr != nil {
		return fmt.Errorf("profile_store.pg.clear: %w", execErr)
	}
	return nil
}

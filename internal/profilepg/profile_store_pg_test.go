package profilepg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/tyemirov/taskdeck/internal/sessionkit"
)

// connectTestStore skips unless a database is provided, so the suite stays
// runnable without infrastructure.
func connectTestStore(t *testing.T) *PostgresProfileStore {
	t.Helper()
	databaseURL := os.Getenv("APP_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("APP_TEST_DATABASE_URL not set")
	}
	store, connectErr := Connect(context.Background(), databaseURL)
	if connectErr != nil {
		t.Fatalf("connect: %v", connectErr)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPostgresProfileRoundTrip(t *testing.T) {
	store := connectTestStore(t)
	ctx := context.Background()

	if clearErr := store.Clear(ctx); clearErr != nil {
		t.Fatalf("clear: %v", clearErr)
	}
	if _, found, loadErr := store.Load(ctx); loadErr != nil || found {
		t.Fatalf("expected no profile after clear, found=%v err=%v", found, loadErr)
	}

	lastLogin := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	saved := sessionkit.Profile{
		User:     sessionkit.User{ID: "user-1", Username: "demo", Email: "demo@example.com", Role: "member"},
		AuthMeta: sessionkit.AuthMeta{SessionID: "sess-1", DeviceID: "dev-1", LastLoginAt: lastLogin},
	}
	if saveErr := store.Save(ctx, saved); saveErr != nil {
		t.Fatalf("save: %v", saveErr)
	}

	loaded, found, loadErr := store.Load(ctx)
	if loadErr != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, loadErr)
	}
	if loaded.User != saved.User {
		t.Fatalf("user round trip mismatch: %+v", loaded.User)
	}
	if loaded.AuthMeta.SessionID != "sess-1" || loaded.AuthMeta.DeviceID != "dev-1" {
		t.Fatalf("auth meta round trip mismatch: %+v", loaded.AuthMeta)
	}
	if !loaded.AuthMeta.LastLoginAt.Equal(lastLogin) {
		t.Fatalf("last login round trip mismatch: %v", loaded.AuthMeta.LastLoginAt)
	}

	// Saving again overwrites the single slot.
	saved.User.Username = "renamed"
	if saveErr := store.Save(ctx, saved); saveErr != nil {
		t.Fatalf("second save: %v", saveErr)
	}
	loaded, _, loadErr = store.Load(ctx)
	if loadErr != nil || loaded.User.Username != "renamed" {
		t.Fatalf("expected overwrite, got %+v err=%v", loaded.User, loadErr)
	}

	if clearErr := store.Clear(ctx); clearErr != nil {
		t.Fatalf("final clear: %v", clearErr)
	}
	if _, found, loadErr := store.Load(ctx); loadErr != nil || found {
		t.Fatalf("expected cleared profile, found=%v err=%v", found, loadErr)
	}
}

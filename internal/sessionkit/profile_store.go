package sessionkit

import (
	"context"
	"sync"
	"time"
)

// User mirrors the backend UserResp payload.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// RoleAdmin is the role required for user-management operations.
const RoleAdmin = "admin"

// IsAdmin reports whether the user carries the admin role.
func (user User) IsAdmin() bool {
	return user.Role == RoleAdmin
}

// AuthMeta carries optional session and device metadata reported at login.
type AuthMeta struct {
	SessionID   string    `json:"sessionId,omitempty"`
	DeviceID    string    `json:"deviceId,omitempty"`
	LastLoginAt time.Time `json:"lastLoginAt,omitempty"`
}

// Profile is the non-sensitive slice of session state that survives a
// process restart. Access tokens and CSRF tokens are never part of it.
type Profile struct {
	User     User
	AuthMeta AuthMeta
}

// ProfileStore persists and retrieves the current profile.
type ProfileStore interface {
	Save(ctx context.Context, profile Profile) error
	Load(ctx context.Context) (Profile, bool, error)
	Clear(ctx context.Context) error
}

// MemoryProfileStore is an in-memory store intended for tests and
// one-shot runs that opt out of persistence.
type MemoryProfileStore struct {
	mutex   sync.Mutex
	profile *Profile
}

// NewMemoryProfileStore creates an empty in-memory profile store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{}
}

// Save replaces the stored profile.
func (store *MemoryProfileStore) Save(ctx context.Context, profile Profile) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	stored := profile
	store.profile = &stored
	return nil
}

// Load returns the stored profile when one exists.
func (store *MemoryProfileStore) Load(ctx context.Context) (Profile, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.profile == nil {
		return Profile{}, false, nil
	}
	return *store.profile, true, nil
}

// Clear removes the stored profile.
func (store *MemoryProfileStore) Clear(ctx context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.profile = nil
	return nil
}

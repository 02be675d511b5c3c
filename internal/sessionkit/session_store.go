package sessionkit

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// StartSessionInput carries everything needed to enter an authenticated
// state: the freshly issued token, its relative lifetime, and the user
// identity the backend reported alongside it.
type StartSessionInput struct {
	AccessToken         string
	AccessExpireSeconds int64
	User                User
	AuthMeta            AuthMeta
}

// SessionStore holds the current user identity and role and orchestrates
// login, logout, and bootstrap-initialization state. Token storage is
// delegated to the TokenStore: SessionStore.Login and SessionStore.Logout
// are the only paths that write it besides the refresh coordinator, which
// keeps the single-writer discipline the refresh invariant relies on.
type SessionStore struct {
	mutex       sync.Mutex
	tokens      *TokenStore
	profiles    ProfileStore
	logger      *zap.Logger
	user        *User
	authMeta    *AuthMeta
	initialized bool
}

// NewSessionStore constructs a store around the given token store and
// profile persistence.
func NewSessionStore(tokens *TokenStore, profiles ProfileStore, logger *zap.Logger) *SessionStore {
	if profiles == nil {
		profiles = NewMemoryProfileStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		tokens:   tokens,
		profiles: profiles,
		logger:   logger,
	}
}

// RestoreProfile loads the persisted user identity, if any, into memory.
// It restores only non-sensitive fields; the access token never persists,
// so a bootstrap refresh is still required to reach an authenticated state.
func (store *SessionStore) RestoreProfile(ctx context.Context) error {
	profile, found, err := store.profiles.Load(ctx)
	if err != nil {
		return fmt.Errorf("session.restore_profile: %w", err)
	}
	if !found {
		return nil
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user := profile.User
	authMeta := profile.AuthMeta
	store.user = &user
	store.authMeta = &authMeta
	return nil
}

// Login is the single authorized path into an authenticated state. The
// token is stored first so a reader that sees the new user also sees the
// new token. Profile persistence is best-effort: a storage failure is
// logged and does not fail the login.
func (store *SessionStore) Login(ctx context.Context, input StartSessionInput) {
	store.tokens.Set(input.AccessToken, input.AccessExpireSeconds)

	store.mutex.Lock()
	user := input.User
	authMeta := input.AuthMeta
	store.user = &user
	store.authMeta = &authMeta
	store.mutex.Unlock()

	if err := store.profiles.Save(ctx, Profile{User: user, AuthMeta: authMeta}); err != nil {
		store.logger.Warn("profile persistence failed",
			zap.String("code", "session.login.persist_failed"),
			zap.Error(err))
	}
}

// Logout clears the token (which also discards any pending refresh via the
// invalidation event), then the identity fields and the persisted profile.
func (store *SessionStore) Logout(ctx context.Context) {
	store.tokens.Clear()

	store.mutex.Lock()
	store.user = nil
	store.authMeta = nil
	store.mutex.Unlock()

	if err := store.profiles.Clear(ctx); err != nil {
		store.logger.Warn("profile clear failed",
			zap.String("code", "session.logout.persist_failed"),
			zap.Error(err))
	}
}

// MarkInitialized records that a bootstrap attempt has completed for this
// process run. Idempotent.
func (store *SessionStore) MarkInitialized() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.initialized = true
}

// Initialized reports whether a bootstrap attempt has completed.
func (store *SessionStore) Initialized() bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.initialized
}

// CurrentUser returns the current user identity when one is set.
func (store *SessionStore) CurrentUser() (User, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.user == nil {
		return User{}, false
	}
	return *store.user, true
}

// CurrentAuthMeta returns the current session metadata when set.
func (store *SessionStore) CurrentAuthMeta() (AuthMeta, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.authMeta == nil {
		return AuthMeta{}, false
	}
	return *store.authMeta, true
}

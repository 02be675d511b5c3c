package sessionkit

import (
	"math"
	"sync"
	"time"
)

// TokenStore holds the in-memory access token and its absolute expiry.
// The token never touches durable storage; a process restart always starts
// without one. Value and expiry are set and cleared together, so readers
// can never observe one without the other.
type TokenStore struct {
	mutex     sync.Mutex
	token     string
	expiresAt time.Time
	hasToken  bool
	clock     Clock
	listeners []func()
}

// NewTokenStore constructs an empty token store.
func NewTokenStore(clock Clock) *TokenStore {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &TokenStore{clock: clock}
}

// OnInvalidate registers a listener fired whenever the store is cleared.
// The refresh coordinator subscribes so that clearing the session also
// discards any pending refresh operation.
func (store *TokenStore) OnInvalidate(listener func()) {
	if listener == nil {
		return
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.listeners = append(store.listeners, listener)
}

// Set stores the token with an absolute expiry computed from the relative
// lifetime the backend reported. Any prior value is overwritten.
func (store *TokenStore) Set(token string, relativeExpirySeconds int64) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.token = token
	store.expiresAt = store.clock.Now().Add(time.Duration(relativeExpirySeconds) * time.Second)
	store.hasToken = true
}

// Clear removes the token and expiry together and notifies invalidation
// listeners after releasing the lock.
func (store *TokenStore) Clear() {
	store.mutex.Lock()
	store.token = ""
	store.expiresAt = time.Time{}
	store.hasToken = false
	listeners := make([]func(), len(store.listeners))
	copy(listeners, store.listeners)
	store.mutex.Unlock()

	for _, listener := range listeners {
		listener()
	}
}

// Get returns the current token when one is set.
func (store *TokenStore) Get() (string, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if !store.hasToken {
		return "", false
	}
	return store.token, true
}

// RemainingSeconds returns the token's remaining lifetime in whole seconds,
// rounded down. Negative values mean the token already expired.
func (store *TokenStore) RemainingSeconds() (int64, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if !store.hasToken {
		return 0, false
	}
	remaining := store.expiresAt.Sub(store.clock.Now())
	return int64(math.Floor(remaining.Seconds())), true
}

// IsValid reports whether a token is present with lifetime remaining.
func (store *TokenStore) IsValid() bool {
	remainingSeconds, hasToken := store.RemainingSeconds()
	return hasToken && remainingSeconds > 0
}

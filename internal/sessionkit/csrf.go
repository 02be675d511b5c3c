package sessionkit

import "sync"

// CsrfSource supplies the anti-forgery token injected on outbound requests.
type CsrfSource interface {
	Read() (string, bool)
}

// MetadataSlot is the in-process equivalent of the web client's
// <meta name="csrf-token"> element: a single slot written by the login
// flow from the login response and read by the request pipeline. The
// token is deliberately never written to the profile store.
type MetadataSlot struct {
	mutex     sync.Mutex
	csrfToken string
}

// NewMetadataSlot constructs an empty slot.
func NewMetadataSlot() *MetadataSlot {
	return &MetadataSlot{}
}

// Read returns the CSRF token when the slot is populated.
func (slot *MetadataSlot) Read() (string, bool) {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	if slot.csrfToken == "" {
		return "", false
	}
	return slot.csrfToken, true
}

// Write replaces the slot contents. Empty values are ignored so a refresh
// response without a csrfToken field keeps the login-issued token.
func (slot *MetadataSlot) Write(csrfToken string) {
	if csrfToken == "" {
		return
	}
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	slot.csrfToken = csrfToken
}

// Clear empties the slot.
func (slot *MetadataSlot) Clear() {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	slot.csrfToken = ""
}

package sessionkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileCookieJar wraps the standard cookie jar and records every
// Set-Cookie it sees so the jar can be serialized to disk. The file holds
// the refresh credential, so it is written with owner-only permissions.
type fileCookieJar struct {
	mutex    sync.Mutex
	inner    http.CookieJar
	filePath string
	recorded map[string][]storedCookie
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
}

func newFileCookieJar(inner http.CookieJar, filePath string) *fileCookieJar {
	return &fileCookieJar{
		inner:    inner,
		filePath: filePath,
		recorded: make(map[string][]storedCookie),
	}
}

// SetCookies records the cookies per origin and forwards to the inner jar.
func (jar *fileCookieJar) SetCookies(origin *url.URL, cookies []*http.Cookie) {
	jar.mutex.Lock()
	originKey := origin.String()
	now := time.Now().UTC()
	for _, cookie := range cookies {
		jar.recordLocked(originKey, cookie, now)
	}
	jar.mutex.Unlock()

	jar.inner.SetCookies(origin, cookies)
}

// Cookies returns the inner jar's cookies for the given URL.
func (jar *fileCookieJar) Cookies(requestURL *url.URL) []*http.Cookie {
	return jar.inner.Cookies(requestURL)
}

func (jar *fileCookieJar) recordLocked(originKey string, cookie *http.Cookie, now time.Time) {
	stored := storedCookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		Domain:   cookie.Domain,
		Expires:  cookie.Expires,
		Secure:   cookie.Secure,
		HTTPOnly: cookie.HttpOnly,
	}
	if cookie.MaxAge > 0 {
		stored.Expires = now.Add(time.Duration(cookie.MaxAge) * time.Second)
	}

	existing := jar.recorded[originKey]
	replaced := false
	for index, candidate := range existing {
		if candidate.Name == stored.Name && candidate.Path == stored.Path {
			existing[index] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, stored)
	}
	jar.recorded[originKey] = existing
}

func (jar *fileCookieJar) save() error {
	if jar.filePath == "" {
		return nil
	}
	jar.mutex.Lock()
	serialized, encodeErr := json.MarshalIndent(jar.recorded, "", "  ")
	jar.mutex.Unlock()
	if encodeErr != nil {
		return fmt.Errorf("cookie_file.save: %w", encodeErr)
	}
	if mkdirErr := os.MkdirAll(filepath.Dir(jar.filePath), 0o700); mkdirErr != nil {
		return fmt.Errorf("cookie_file.save: %w", mkdirErr)
	}
	if writeErr := os.WriteFile(jar.filePath, serialized, 0o600); writeErr != nil {
		return fmt.Errorf("cookie_file.save: %w", writeErr)
	}
	return nil
}

func (jar *fileCookieJar) load() error {
	if jar.filePath == "" {
		return nil
	}
	serialized, readErr := os.ReadFile(jar.filePath)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cookie_file.load: %w", readErr)
	}
	recorded := make(map[string][]storedCookie)
	if decodeErr := json.Unmarshal(serialized, &recorded); decodeErr != nil {
		return fmt.Errorf("cookie_file.load: %w", decodeErr)
	}

	now := time.Now().UTC()
	for originKey, cookies := range recorded {
		origin, parseErr := url.Parse(originKey)
		if parseErr != nil {
			continue
		}
		restored := make([]*http.Cookie, 0, len(cookies))
		kept := make([]storedCookie, 0, len(cookies))
		for _, stored := range cookies {
			if !stored.Expires.IsZero() && stored.Expires.Before(now) {
				continue
			}
			restored = append(restored, &http.Cookie{
				Name:     stored.Name,
				Value:    stored.Value,
				Path:     stored.Path,
				Domain:   stored.Domain,
				Expires:  stored.Expires,
				Secure:   stored.Secure,
				HttpOnly: stored.HTTPOnly,
			})
			kept = append(kept, stored)
		}
		if len(restored) > 0 {
			jar.inner.SetCookies(origin, restored)
		}
		jar.mutex.Lock()
		jar.recorded[originKey] = kept
		jar.mutex.Unlock()
	}
	return nil
}

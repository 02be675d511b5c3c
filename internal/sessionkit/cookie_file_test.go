package sessionkit

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"testing"
	"time"
)

func newTestJar(t *testing.T, filePath string) *fileCookieJar {
	t.Helper()
	inner, jarErr := cookiejar.New(nil)
	if jarErr != nil {
		t.Fatalf("cookiejar: %v", jarErr)
	}
	return newFileCookieJar(inner, filePath)
}

func TestFileCookieJarRoundTrip(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "cookies.json")
	origin, _ := url.Parse("http://backend.test/")

	jar := newTestJar(t, filePath)
	jar.SetCookies(origin, []*http.Cookie{{
		Name:   "app_refresh",
		Value:  "opaque-refresh",
		Path:   "/",
		MaxAge: 3600,
	}})
	if saveErr := jar.save(); saveErr != nil {
		t.Fatalf("save: %v", saveErr)
	}

	restored := newTestJar(t, filePath)
	if loadErr := restored.load(); loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	cookies := restored.Cookies(origin)
	if len(cookies) != 1 || cookies[0].Name != "app_refresh" || cookies[0].Value != "opaque-refresh" {
		t.Fatalf("expected restored refresh cookie, got %v", cookies)
	}
}

func TestFileCookieJarDropsExpiredCookiesOnLoad(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "cookies.json")
	origin, _ := url.Parse("http://backend.test/")

	jar := newTestJar(t, filePath)
	jar.SetCookies(origin, []*http.Cookie{{
		Name:    "app_refresh",
		Value:   "opaque-refresh",
		Path:    "/",
		Expires: time.Now().Add(-time.Hour),
	}})
	if saveErr := jar.save(); saveErr != nil {
		t.Fatalf("save: %v", saveErr)
	}

	restored := newTestJar(t, filePath)
	if loadErr := restored.load(); loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	if cookies := restored.Cookies(origin); len(cookies) != 0 {
		t.Fatalf("expected expired cookie dropped, got %v", cookies)
	}
}

func TestFileCookieJarReplacesCookieByNameAndPath(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "cookies.json")
	origin, _ := url.Parse("http://backend.test/")

	jar := newTestJar(t, filePath)
	jar.SetCookies(origin, []*http.Cookie{{Name: "app_refresh", Value: "first", Path: "/", MaxAge: 3600}})
	jar.SetCookies(origin, []*http.Cookie{{Name: "app_refresh", Value: "rotated", Path: "/", MaxAge: 3600}})
	if saveErr := jar.save(); saveErr != nil {
		t.Fatalf("save: %v", saveErr)
	}

	restored := newTestJar(t, filePath)
	if loadErr := restored.load(); loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	cookies := restored.Cookies(origin)
	if len(cookies) != 1 || cookies[0].Value != "rotated" {
		t.Fatalf("expected rotated cookie to replace the first, got %v", cookies)
	}
}

func TestFileCookieJarWithoutPathIsMemoryOnly(t *testing.T) {
	t.Parallel()

	origin, _ := url.Parse("http://backend.test/")
	jar := newTestJar(t, "")
	jar.SetCookies(origin, []*http.Cookie{{Name: "app_refresh", Value: "opaque", Path: "/", MaxAge: 3600}})
	if saveErr := jar.save(); saveErr != nil {
		t.Fatalf("save must be a no-op without a path: %v", saveErr)
	}
	if loadErr := jar.load(); loadErr != nil {
		t.Fatalf("load must be a no-op without a path: %v", loadErr)
	}
	if cookies := jar.Cookies(origin); len(cookies) != 1 {
		t.Fatalf("in-memory jar still serves cookies, got %v", cookies)
	}
}

func TestFileCookieJarMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	jar := newTestJar(t, filepath.Join(t.TempDir(), "absent.json"))
	if loadErr := jar.load(); loadErr != nil {
		t.Fatalf("missing file must load cleanly: %v", loadErr)
	}
}

package sessionkit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type authBackend struct {
	server        *httptest.Server
	loginCalls    atomic.Int64
	logoutCalls   atomic.Int64
	login         func(contextGin *gin.Context)
	logout        func(contextGin *gin.Context)
	verify        func(contextGin *gin.Context)
	lastPassword  atomic.Value
	expectedHash  string
	refreshStatus int
}

func newAuthBackend(t *testing.T) *authBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &authBackend{
		expectedHash:  HashPassword("password123"),
		refreshStatus: http.StatusUnauthorized,
	}
	backend.login = func(contextGin *gin.Context) {
		var request struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if bindErr := contextGin.ShouldBindJSON(&request); bindErr != nil {
			contextGin.JSON(http.StatusBadRequest, gin.H{"message": "bad payload"})
			return
		}
		backend.lastPassword.Store(request.Password)
		if request.Password != backend.expectedHash {
			contextGin.JSON(http.StatusUnauthorized, gin.H{"message": "bad credentials"})
			return
		}
		contextGin.SetCookie("app_refresh", "opaque-refresh", 3600, "/", "", false, true)
		contextGin.JSON(http.StatusOK, gin.H{
			"accessToken":  "login-token",
			"accessExpire": 900,
			"id":           "user-1",
			"username":     "demo",
			"role":         "member",
			"csrfToken":    "csrf-login",
			"sessionId":    "sess-1",
		})
	}
	backend.logout = func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{})
	}
	backend.verify = func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{
			"valid": true,
			"user": gin.H{
				"id":       "user-1",
				"username": "demo",
				"email":    "demo@example.com",
				"role":     "member",
			},
		})
	}

	router := gin.New()
	router.POST("/user/users/login", func(contextGin *gin.Context) {
		backend.loginCalls.Add(1)
		backend.login(contextGin)
	})
	router.POST("/user/users/logout", func(contextGin *gin.Context) {
		backend.logoutCalls.Add(1)
		backend.logout(contextGin)
	})
	router.GET("/user/users/verify-token", func(contextGin *gin.Context) {
		backend.verify(contextGin)
	})
	router.POST("/user/users/refresh-token", func(contextGin *gin.Context) {
		contextGin.JSON(backend.refreshStatus, gin.H{"message": "refresh disabled in this test"})
	})

	backend.server = httptest.NewServer(router)
	t.Cleanup(backend.server.Close)
	return backend
}

func newAuthenticatorUnderTest(t *testing.T, backend *authBackend) (*sessionPipeline, *Authenticator, *[]time.Duration) {
	t.Helper()
	pipeline := newSessionPipeline(t, backend.server.URL)
	authenticator := NewAuthenticator(pipeline.transport, pipeline.client, pipeline.sessions, pipeline.csrf, pipeline.clock, pipeline.metrics, zaptest.NewLogger(t))
	sleeps := &[]time.Duration{}
	authenticator.sleep = func(duration time.Duration) {
		*sleeps = append(*sleeps, duration)
	}
	return pipeline, authenticator, sleeps
}

func TestLoginSendsPrehashedPasswordAndStartsSession(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend(t)
	pipeline, authenticator, _ := newAuthenticatorUnderTest(t, backend)

	beforeEmails := []string{}
	afterUsers := []User{}
	authenticator.SetHooks(LifecycleHooks{
		BeforeLogin: func(email string) { beforeEmails = append(beforeEmails, email) },
		AfterLogin:  func(user User) { afterUsers = append(afterUsers, user) },
	})

	user, loginErr := authenticator.Login(context.Background(), "demo@example.com", "password123")
	if loginErr != nil {
		t.Fatalf("login: %v", loginErr)
	}
	if user.ID != "user-1" || user.Email != "demo@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	if sent := backend.lastPassword.Load(); sent != HashPassword("password123") {
		t.Fatalf("plaintext must never travel: got %v", sent)
	}
	if token, _ := pipeline.tokens.Get(); token != "login-token" {
		t.Fatalf("expected token stored, got %q", token)
	}
	if csrfToken, _ := pipeline.csrf.Read(); csrfToken != "csrf-login" {
		t.Fatalf("expected csrf stored, got %q", csrfToken)
	}
	authMeta, _ := pipeline.sessions.CurrentAuthMeta()
	if authMeta.SessionID != "sess-1" {
		t.Fatalf("expected session id stored, got %+v", authMeta)
	}
	if authMeta.DeviceID == "" {
		t.Fatalf("expected a generated device id when the backend omits one")
	}
	if !authMeta.LastLoginAt.Equal(pipeline.clock.Now()) {
		t.Fatalf("expected last login at clock time, got %v", authMeta.LastLoginAt)
	}
	if !pipeline.sessions.Initialized() {
		t.Fatalf("login completes initialization")
	}
	if len(beforeEmails) != 1 || beforeEmails[0] != "demo@example.com" {
		t.Fatalf("expected BeforeLogin hook, got %v", beforeEmails)
	}
	if len(afterUsers) != 1 || afterUsers[0].ID != "user-1" {
		t.Fatalf("expected AfterLogin hook, got %v", afterUsers)
	}
}

func TestLoginRejectsInvalidEmailLocally(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend(t)
	_, authenticator, _ := newAuthenticatorUnderTest(t, backend)

	_, loginErr := authenticator.Login(context.Background(), "not-an-email", "password123")
	if !errors.Is(loginErr, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", loginErr)
	}
	if calls := backend.loginCalls.Load(); calls != 0 {
		t.Fatalf("invalid email must not reach the backend, got %d calls", calls)
	}
}

func TestLoginDelaysAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend(t)
	pipeline, authenticator, sleeps := newAuthenticatorUnderTest(t, backend)

	for attempt := 0; attempt < 3; attempt++ {
		if _, loginErr := authenticator.Login(context.Background(), "demo@example.com", "wrong-password"); loginErr == nil {
			t.Fatalf("expected failure on attempt %d", attempt+1)
		}
	}
	if len(*sleeps) != 0 {
		t.Fatalf("first three attempts must not be delayed, got %v", *sleeps)
	}

	_, _ = authenticator.Login(context.Background(), "demo@example.com", "wrong-password")
	if len(*sleeps) != 1 || (*sleeps)[0] != 3*time.Second {
		t.Fatalf("expected a 3s delay on the fourth attempt, got %v", *sleeps)
	}

	// Delays grow with the streak but cap at five seconds.
	authenticator.failureStreak = 9
	_, _ = authenticator.Login(context.Background(), "demo@example.com", "wrong-password")
	if latest := (*sleeps)[len(*sleeps)-1]; latest != 5*time.Second {
		t.Fatalf("expected the delay cap, got %v", latest)
	}
	if pipeline.metrics.Count(MetricLoginDelayed) != 2 {
		t.Fatalf("expected delayed login metric")
	}
}

func TestLoginSuccessResetsFailureStreak(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend(t)
	_, authenticator, sleeps := newAuthenticatorUnderTest(t, backend)

	authenticator.failureStreak = 4
	if _, loginErr := authenticator.Login(context.Background(), "demo@example.com", "password123"); loginErr != nil {
		t.Fatalf("login: %v", loginErr)
	}
	if authenticator.failureStreak != 0 {
		t.Fatalf("expected streak reset on success, got %d", authenticator.failureStreak)
	}

	delaysBefore := len(*sleeps)
	_, _ = authenticator.Login(context.Background(), "demo@example.com", "wrong-password")
	if len(*sleeps) != delaysBefore {
		t.Fatalf("a failure right after a success must not be delayed")
	}
}

func TestLogoutClearsLocalStateEvenWhenRemoteFails(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend(t)
	backend.logout = func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusInternalServerError, gin.H{"message": "backend down"})
	}
	pipeline, authenticator, _ := newAuthenticatorUnderTest(t, backend)

	loggedOut := false
	authenticator.SetHooks(LifecycleHooks{AfterLogout: func() { loggedOut = true }})

	if _, loginErr := authenticator.Login(context.Background(), "demo@example.com", "password123"); loginErr != nil {
		t.Fatalf("login: %v", loginErr)
	}
	authenticator.Logout(context.Background())

	if _, hasToken := pipeline.tokens.Get(); hasToken {
		t.Fatalf("expected token cleared on logout")
	}
	if _, hasUser := pipeline.sessions.CurrentUser(); hasUser {
		t.Fatalf("expected user cleared on logout")
	}
	if _, hasCsrf := pipeline.csrf.Read(); hasCsrf {
		t.Fatalf("expected csrf cleared on logout")
	}
	if !loggedOut {
		t.Fatalf("expected AfterLogout hook")
	}
	if calls := backend.logoutCalls.Load(); calls != 1 {
		t.Fatalf("expected one remote logout attempt, got %d", calls)
	}
}

func TestVerifyReportsTokenValidity(t *testing.T) {
	t.Parallel()

	backend := newAuthBackend(t)
	pipeline, authenticator, _ := newAuthenticatorUnderTest(t, backend)

	if _, loginErr := authenticator.Login(context.Background(), "demo@example.com", "password123"); loginErr != nil {
		t.Fatalf("login: %v", loginErr)
	}

	result, verifyErr := authenticator.Verify(context.Background())
	if verifyErr != nil {
		t.Fatalf("verify: %v", verifyErr)
	}
	if !result.Valid || result.User.Email != "demo@example.com" {
		t.Fatalf("expected valid session, got %+v", result)
	}

	// A 200 body can still declare the token invalid.
	backend.verify = func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"valid": false})
	}
	result, verifyErr = authenticator.Verify(context.Background())
	if verifyErr != nil {
		t.Fatalf("verify with rejecting body: %v", verifyErr)
	}
	if result.Valid {
		t.Fatalf("expected the body verdict honored, got %+v", result)
	}

	backend.verify = func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusUnauthorized, gin.H{"message": "expired"})
	}
	pipeline.seedSession()
	result, verifyErr = authenticator.Verify(context.Background())
	if verifyErr != nil {
		t.Fatalf("verify after expiry: %v", verifyErr)
	}
	if result.Valid {
		t.Fatalf("expected invalid session, got %+v", result)
	}
}

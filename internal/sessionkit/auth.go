package sessionkit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLoginPath  = "/user/users/login"
	defaultLogoutPath = "/user/users/logout"
	defaultVerifyPath = "/user/users/verify-token"
)

// loginFailureThreshold is the consecutive failure count after which login
// attempts are slowed down.
const loginFailureThreshold = 3

// LifecycleHooks are optional callbacks around session transitions.
// Nil hooks are skipped.
type LifecycleHooks struct {
	BeforeLogin func(email string)
	AfterLogin  func(user User)
	AfterLogout func()
}

// Authenticator drives login, logout and token verification against the
// user service.
type Authenticator struct {
	loginMutex    sync.Mutex
	transport     *Transport
	client        *Client
	sessions      *SessionStore
	csrf          *MetadataSlot
	clock         Clock
	metrics       MetricsRecorder
	logger        *zap.Logger
	hooks         LifecycleHooks
	sleep         func(time.Duration)
	failureStreak int
}

func NewAuthenticator(transport *Transport, client *Client, sessions *SessionStore, csrf *MetadataSlot, clock Clock, metrics MetricsRecorder, logger *zap.Logger) *Authenticator {
	if clock == nil {
		clock = NewSystemClock()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		transport: transport,
		client:    client,
		sessions:  sessions,
		csrf:      csrf,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// SetHooks installs lifecycle callbacks.
func (authenticator *Authenticator) SetHooks(hooks LifecycleHooks) {
	authenticator.hooks = hooks
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	AccessExpire int64  `json:"accessExpire"`
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	CsrfToken    string `json:"csrfToken,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
}

// Login authenticates with an email and password. The password is pre-hashed
// before it is sent. After three consecutive failures each further attempt is
// delayed by one second per failure, capped at five seconds.
func (authenticator *Authenticator) Login(ctx context.Context, email string, password string) (User, error) {
	if !authenticator.loginMutex.TryLock() {
		return User{}, ErrLoginThrottled
	}
	defer authenticator.loginMutex.Unlock()

	if !IsValidEmail(email) {
		return User{}, ErrInvalidEmail
	}
	if password == "" {
		return User{}, ErrWeakPassword
	}

	if authenticator.failureStreak >= loginFailureThreshold {
		delaySeconds := authenticator.failureStreak
		if delaySeconds > 5 {
			delaySeconds = 5
		}
		authenticator.metrics.Increment(MetricLoginDelayed)
		authenticator.logger.Info("delaying login attempt",
			zap.String("code", "auth.login.delayed"),
			zap.Int("failure_streak", authenticator.failureStreak),
			zap.Int("delay_seconds", delaySeconds))
		authenticator.sleep(time.Duration(delaySeconds) * time.Second)
	}

	if authenticator.hooks.BeforeLogin != nil {
		authenticator.hooks.BeforeLogin(email)
	}

	var response loginResponse
	request := loginRequest{Email: email, Password: HashPassword(password)}
	loginErr := authenticator.transport.DoJSON(ctx, http.MethodPost, defaultLoginPath, nil, request, &response)
	if loginErr != nil {
		authenticator.failureStreak++
		authenticator.logger.Warn("login failed",
			zap.String("code", "auth.login.failed"),
			zap.Int("failure_streak", authenticator.failureStreak),
			zap.Error(loginErr))
		return User{}, fmt.Errorf("auth.login: %w", loginErr)
	}
	authenticator.failureStreak = 0

	user := User{ID: response.ID, Username: response.Username, Email: email, Role: response.Role}
	authMeta := AuthMeta{
		SessionID:   response.SessionID,
		DeviceID:    response.DeviceID,
		LastLoginAt: authenticator.clock.Now().UTC(),
	}
	if authMeta.DeviceID == "" {
		authMeta.DeviceID = uuid.NewString()
	}

	if authenticator.csrf != nil {
		authenticator.csrf.Write(response.CsrfToken)
	}
	authenticator.sessions.Login(ctx, StartSessionInput{
		AccessToken:         response.AccessToken,
		AccessExpireSeconds: response.AccessExpire,
		User:                user,
		AuthMeta:            authMeta,
	})
	authenticator.sessions.MarkInitialized()
	if saveErr := authenticator.transport.SaveCookies(); saveErr != nil {
		authenticator.logger.Warn("cookie persistence failed",
			zap.String("code", "auth.login.cookie_persist_failed"),
			zap.Error(saveErr))
	}
	authenticator.metrics.Increment(MetricLoginSuccess)
	if authenticator.hooks.AfterLogin != nil {
		authenticator.hooks.AfterLogin(user)
	}
	return user, nil
}

// Logout ends the session. The backend call is best effort: the local
// session is cleared even when the server is unreachable.
func (authenticator *Authenticator) Logout(ctx context.Context) {
	if logoutErr := authenticator.client.Post(ctx, defaultLogoutPath, nil, nil); logoutErr != nil {
		authenticator.logger.Warn("remote logout failed",
			zap.String("code", "auth.logout.remote_failed"),
			zap.Error(logoutErr))
	}
	authenticator.sessions.Logout(ctx)
	if authenticator.csrf != nil {
		authenticator.csrf.Clear()
	}
	if saveErr := authenticator.transport.SaveCookies(); saveErr != nil {
		authenticator.logger.Warn("cookie persistence failed",
			zap.String("code", "auth.logout.cookie_persist_failed"),
			zap.Error(saveErr))
	}
	if authenticator.hooks.AfterLogout != nil {
		authenticator.hooks.AfterLogout()
	}
}

// VerifyResult reports whether the backend still accepts the current token.
type VerifyResult struct {
	Valid bool
	User  User
}

// Verify asks the backend to validate the current access token. The backend
// answers with a validity envelope and, when the token holds, the user it
// belongs to.
func (authenticator *Authenticator) Verify(ctx context.Context) (VerifyResult, error) {
	var response struct {
		Valid bool  `json:"valid"`
		User  *User `json:"user"`
	}
	verifyErr := authenticator.client.Get(ctx, defaultVerifyPath, &response)
	if verifyErr == nil {
		result := VerifyResult{Valid: response.Valid}
		if response.User != nil {
			result.User = *response.User
		}
		return result, nil
	}
	if IsStatus(verifyErr, http.StatusUnauthorized) || IsStatus(verifyErr, http.StatusForbidden) {
		return VerifyResult{}, nil
	}
	return VerifyResult{}, fmt.Errorf("auth.verify: %w", verifyErr)
}

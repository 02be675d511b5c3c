package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// ProactiveRefreshThresholdSeconds is the remaining lifetime below which an
// access token is renewed before being attached to a request.
const ProactiveRefreshThresholdSeconds int64 = 60

const defaultRefreshPath = "/user/users/refresh-token"

type refreshOperation struct {
	done chan struct{}
	err  error
}

// RefreshCoordinator renews the access token against the refresh endpoint.
// Concurrent callers share a single in-flight renewal, and a renewal that
// completes after the session was invalidated is discarded.
type RefreshCoordinator struct {
	mutex       sync.Mutex
	transport   *Transport
	tokens      *TokenStore
	sessions    *SessionStore
	csrf        *MetadataSlot
	metrics     MetricsRecorder
	logger      *zap.Logger
	refreshPath string
	inFlight    *refreshOperation
	generation  uint64
}

func NewRefreshCoordinator(transport *Transport, tokens *TokenStore, sessions *SessionStore, csrf *MetadataSlot, metrics MetricsRecorder, logger *zap.Logger) *RefreshCoordinator {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	coordinator := &RefreshCoordinator{
		transport:   transport,
		tokens:      tokens,
		sessions:    sessions,
		csrf:        csrf,
		metrics:     metrics,
		logger:      logger,
		refreshPath: defaultRefreshPath,
	}
	tokens.OnInvalidate(coordinator.noteInvalidated)
	return coordinator
}

// SetRefreshPath overrides the refresh endpoint path.
func (coordinator *RefreshCoordinator) SetRefreshPath(refreshPath string) {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	if refreshPath != "" {
		coordinator.refreshPath = refreshPath
	}
}

func (coordinator *RefreshCoordinator) noteInvalidated() {
	coordinator.mutex.Lock()
	coordinator.generation++
	coordinator.mutex.Unlock()
}

// Refresh renews the access token. If a renewal is already in flight the
// caller waits for its result instead of issuing a second request.
func (coordinator *RefreshCoordinator) Refresh(ctx context.Context) error {
	coordinator.mutex.Lock()
	if existing := coordinator.inFlight; existing != nil {
		coordinator.mutex.Unlock()
		coordinator.metrics.Increment(MetricRefreshAttached)
		select {
		case <-existing.done:
			return existing.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	operation := &refreshOperation{done: make(chan struct{})}
	coordinator.inFlight = operation
	startGeneration := coordinator.generation
	refreshPath := coordinator.refreshPath
	coordinator.mutex.Unlock()

	operation.err = coordinator.performRefresh(ctx, refreshPath, startGeneration)

	coordinator.mutex.Lock()
	coordinator.inFlight = nil
	coordinator.mutex.Unlock()
	close(operation.done)
	return operation.err
}

// EnsureProactive fires a detached renewal when the token is still alive but
// within the proactive threshold. It never blocks the caller. An expired or
// missing token is left alone: that case belongs to the 401 retry path, not
// here. A failed renewal is swallowed; the next 401 surfaces it.
func (coordinator *RefreshCoordinator) EnsureProactive() {
	remainingSeconds, hasToken := coordinator.tokens.RemainingSeconds()
	if !hasToken {
		return
	}
	if remainingSeconds <= 0 || remainingSeconds >= ProactiveRefreshThresholdSeconds {
		return
	}
	coordinator.metrics.Increment(MetricRefreshProactive)
	go func() {
		_ = coordinator.Refresh(context.Background())
	}()
}

// Bootstrap restores the persisted profile and attempts one silent renewal.
// It runs at most once per process; later calls are no-ops.
func (coordinator *RefreshCoordinator) Bootstrap(ctx context.Context) error {
	if coordinator.sessions.Initialized() {
		return nil
	}
	defer coordinator.sessions.MarkInitialized()

	if restoreErr := coordinator.sessions.RestoreProfile(ctx); restoreErr != nil {
		coordinator.logger.Warn("profile restore failed",
			zap.String("code", "session.bootstrap.restore_failed"),
			zap.Error(restoreErr))
	}

	refreshErr := coordinator.Refresh(ctx)
	if refreshErr == nil {
		return nil
	}
	if errors.Is(refreshErr, ErrNoSession) {
		return nil
	}
	return fmt.Errorf("session.bootstrap: %w", refreshErr)
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	AccessExpire int64  `json:"accessExpire"`
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	CsrfToken    string `json:"csrfToken,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
}

func (coordinator *RefreshCoordinator) performRefresh(ctx context.Context, refreshPath string, startGeneration uint64) error {
	_, hasToken := coordinator.tokens.Get()
	_, hasUser := coordinator.sessions.CurrentUser()
	if !hasToken && !hasUser {
		return ErrNoSession
	}

	var response refreshResponse
	requestErr := coordinator.transport.DoJSON(ctx, http.MethodPost, refreshPath, nil, nil, &response)
	if requestErr != nil {
		coordinator.metrics.Increment(MetricRefreshFailure)
		coordinator.metrics.Increment(MetricForcedLogout)
		coordinator.logger.Warn("token refresh failed",
			zap.String("code", "session.refresh.failed"),
			zap.Error(requestErr))
		coordinator.sessions.Logout(ctx)
		if coordinator.csrf != nil {
			coordinator.csrf.Clear()
		}
		return fmt.Errorf("session.refresh: %w", requestErr)
	}

	coordinator.mutex.Lock()
	stale := coordinator.generation != startGeneration
	coordinator.mutex.Unlock()
	if stale {
		coordinator.logger.Info("discarding stale refresh result",
			zap.String("code", "session.refresh.stale_result"))
		return ErrSessionInvalidated
	}

	previousUser, hadUser := coordinator.sessions.CurrentUser()
	previousMeta, hadMeta := coordinator.sessions.CurrentAuthMeta()

	user := User{ID: response.ID, Username: response.Username, Role: response.Role}
	if hadUser {
		user.Email = previousUser.Email
		if user.ID == "" {
			user.ID = previousUser.ID
		}
		if user.Username == "" {
			user.Username = previousUser.Username
		}
		if user.Role == "" {
			user.Role = previousUser.Role
		}
	}

	authMeta := AuthMeta{SessionID: response.SessionID, DeviceID: response.DeviceID}
	if hadMeta {
		authMeta.LastLoginAt = previousMeta.LastLoginAt
		if authMeta.SessionID == "" {
			authMeta.SessionID = previousMeta.SessionID
		}
		if authMeta.DeviceID == "" {
			authMeta.DeviceID = previousMeta.DeviceID
		}
	}

	coordinator.sessions.Login(ctx, StartSessionInput{
		AccessToken:         response.AccessToken,
		AccessExpireSeconds: response.AccessExpire,
		User:                user,
		AuthMeta:            authMeta,
	})
	if coordinator.csrf != nil {
		coordinator.csrf.Write(response.CsrfToken)
	}
	if saveErr := coordinator.transport.SaveCookies(); saveErr != nil {
		coordinator.logger.Warn("cookie persistence failed",
			zap.String("code", "session.refresh.cookie_persist_failed"),
			zap.Error(saveErr))
	}
	coordinator.metrics.Increment(MetricRefreshSuccess)
	return nil
}

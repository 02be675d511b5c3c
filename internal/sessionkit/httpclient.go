package sessionkit

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultCsrfHeaderName is the header the backend expects the CSRF token on.
const DefaultCsrfHeaderName = "X-CSRF-Token"

// Client sends authenticated JSON requests. Every request carries the
// current bearer token and the CSRF token when they are available, and a
// 401 response triggers one token renewal followed by a single retry.
type Client struct {
	transport           *Transport
	tokens              *TokenStore
	csrf                CsrfSource
	refresher           *RefreshCoordinator
	sessions            *SessionStore
	metrics             MetricsRecorder
	logger              *zap.Logger
	csrfHeaderName      string
	authFailureHandler  func()
	authFailureNotified atomic.Bool
}

func NewClient(transport *Transport, tokens *TokenStore, csrf CsrfSource, refresher *RefreshCoordinator, sessions *SessionStore, metrics MetricsRecorder, logger *zap.Logger) *Client {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport:      transport,
		tokens:         tokens,
		csrf:           csrf,
		refresher:      refresher,
		sessions:       sessions,
		metrics:        metrics,
		logger:         logger,
		csrfHeaderName: DefaultCsrfHeaderName,
	}
}

// SetCsrfHeaderName overrides the CSRF header name.
func (client *Client) SetCsrfHeaderName(headerName string) {
	if headerName != "" {
		client.csrfHeaderName = headerName
	}
}

// OnAuthFailure registers a callback invoked once per losing streak when the
// session is terminally unauthenticated. A later successful request re-arms it.
func (client *Client) OnAuthFailure(handler func()) {
	client.authFailureHandler = handler
}

// Get sends a GET request and decodes the JSON response into out.
func (client *Client) Get(ctx context.Context, path string, out any) error {
	return client.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends a POST request with a JSON body and decodes the response into out.
func (client *Client) Post(ctx context.Context, path string, body any, out any) error {
	return client.Do(ctx, http.MethodPost, path, body, out)
}

// Put sends a PUT request with a JSON body and decodes the response into out.
func (client *Client) Put(ctx context.Context, path string, body any, out any) error {
	return client.Do(ctx, http.MethodPut, path, body, out)
}

// Delete sends a DELETE request and decodes the JSON response into out.
func (client *Client) Delete(ctx context.Context, path string, out any) error {
	return client.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends one authenticated request through the full pipeline.
func (client *Client) Do(ctx context.Context, method string, path string, body any, out any) error {
	return client.doWithAttempt(ctx, method, path, body, out, 0)
}

func (client *Client) doWithAttempt(ctx context.Context, method string, path string, body any, out any, attempt int) error {
	if attempt == 0 && client.refresher != nil {
		client.refresher.EnsureProactive()
	}

	headers := make(http.Header)
	if token, hasToken := client.tokens.Get(); hasToken {
		headers.Set("Authorization", "Bearer "+token)
	}
	if client.csrf != nil {
		if csrfToken, hasCsrf := client.csrf.Read(); hasCsrf {
			headers.Set(client.csrfHeaderName, csrfToken)
		}
	}

	requestErr := client.transport.DoJSON(ctx, method, path, headers, body, out)
	if requestErr == nil {
		if attempt > 0 {
			client.metrics.Increment(MetricRetryAfterRefresh)
		}
		client.authFailureNotified.Store(false)
		return nil
	}

	if errors.Is(requestErr, ErrRequestTimeout) || errors.Is(requestErr, ErrConnectivity) {
		client.metrics.Increment(MetricNetworkFailure)
		return requestErr
	}

	var statusErr *StatusError
	if errors.As(requestErr, &statusErr) {
		client.logger.Debug("request rejected",
			zap.String("code", "httpclient.status_rejected"),
			zap.Int("status", statusErr.Status),
			zap.String("method", method),
			zap.String("path", path))
	}

	if !IsStatus(requestErr, http.StatusUnauthorized) {
		return requestErr
	}

	if attempt > 0 || client.refresher == nil {
		client.forceLogout(ctx)
		return requestErr
	}

	if refreshErr := client.refresher.Refresh(ctx); refreshErr != nil {
		// The coordinator already cleared the session on failure.
		client.notifyAuthFailure()
		return refreshErr
	}
	return client.doWithAttempt(ctx, method, path, body, out, attempt+1)
}

func (client *Client) forceLogout(ctx context.Context) {
	client.metrics.Increment(MetricForcedLogout)
	client.logger.Warn("request unauthenticated after retry",
		zap.String("code", "httpclient.auth_retry_exhausted"))
	if client.sessions != nil {
		client.sessions.Logout(ctx)
	}
	client.notifyAuthFailure()
}

func (client *Client) notifyAuthFailure() {
	if client.authFailureHandler == nil {
		return
	}
	if client.authFailureNotified.CompareAndSwap(false, true) {
		client.authFailureHandler()
	}
}


package sessionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds every outbound request. A request that
// exceeds it fails as a network-level timeout and is never retried.
const DefaultRequestTimeout = 10 * time.Second

var (
	errEmptyServerURL   = errors.New("transport.empty_server_url")
	errInvalidServerURL = errors.New("transport.invalid_server_url")
)

// TransportConfig configures the raw HTTP transport.
type TransportConfig struct {
	// Timeout defaults to DefaultRequestTimeout when zero.
	Timeout time.Duration
	// CookieFile, when non-empty, persists the cookie jar across runs so
	// the HttpOnly refresh credential survives a process restart the way
	// a browser cookie store survives a page reload.
	CookieFile string
}

// Transport is the raw JSON-over-HTTP layer shared by the request
// pipeline and the refresh coordinator. The cookie jar carries the
// refresh credential automatically; this layer never reads it.
type Transport struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        *fileCookieJar
}

// NewTransport builds a transport rooted at the given server URL.
func NewTransport(serverURL string, configuration TransportConfig) (*Transport, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, fmt.Errorf("transport.new: %w", errEmptyServerURL)
	}
	parsed, parseErr := url.Parse(serverURL)
	if parseErr != nil {
		return nil, fmt.Errorf("transport.new: %w", parseErr)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("transport.new: %w", errInvalidServerURL)
	}

	innerJar, jarErr := cookiejar.New(nil)
	if jarErr != nil {
		return nil, fmt.Errorf("transport.new: %w", jarErr)
	}
	jar := newFileCookieJar(innerJar, configuration.CookieFile)
	if loadErr := jar.load(); loadErr != nil {
		return nil, fmt.Errorf("transport.new: %w", loadErr)
	}

	timeout := configuration.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Transport{
		baseURL: parsed,
		jar:     jar,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}, nil
}

// SaveCookies writes the jar to the configured cookie file, if any.
func (transport *Transport) SaveCookies() error {
	return transport.jar.save()
}

// BaseURL returns the server URL the transport is rooted at.
func (transport *Transport) BaseURL() *url.URL {
	return transport.baseURL
}

// DoJSON sends one JSON request and decodes a 2xx response into out.
// Failures are classified: no response becomes ErrRequestTimeout or
// ErrConnectivity, a non-2xx status becomes a *StatusError.
func (transport *Transport) DoJSON(ctx context.Context, method string, path string, headers http.Header, body any, out any) error {
	var requestBody io.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		if encodeErr != nil {
			return fmt.Errorf("transport.encode: %w", encodeErr)
		}
		requestBody = bytes.NewReader(encoded)
	}

	request, requestErr := http.NewRequestWithContext(ctx, method, transport.resolve(path), requestBody)
	if requestErr != nil {
		return fmt.Errorf("transport.request: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/json")
	for name, values := range headers {
		for _, value := range values {
			request.Header.Set(name, value)
		}
	}

	response, sendErr := transport.httpClient.Do(request)
	if sendErr != nil {
		return classifyNetworkError(method, path, sendErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return &StatusError{Status: response.StatusCode, Method: method, Path: path}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	decodeErr := json.NewDecoder(response.Body).Decode(out)
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return fmt.Errorf("transport.decode: %w", decodeErr)
	}
	return nil
}

// resolve appends path to the server URL, keeping any path prefix the
// server URL carries.
func (transport *Transport) resolve(path string) string {
	reference, parseErr := url.Parse(path)
	if parseErr != nil {
		reference = &url.URL{Path: path}
	}
	resolved := *transport.baseURL
	resolved.Path = strings.TrimSuffix(transport.baseURL.Path, "/") + reference.Path
	resolved.RawQuery = reference.RawQuery
	return resolved.String()
}

func classifyNetworkError(method string, path string, sendErr error) error {
	if isTimeoutError(sendErr) {
		return fmt.Errorf("httpclient.timeout %s %s: %w", method, path, ErrRequestTimeout)
	}
	return fmt.Errorf("httpclient.connectivity %s %s: %w", method, path, ErrConnectivity)
}

func isTimeoutError(sendErr error) bool {
	if errors.Is(sendErr, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(sendErr, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

package sessionkit

import "sync"

// Metric events recorded by the session pipeline.
const (
	MetricLoginSuccess      = "auth.login.success"
	MetricLoginFailure      = "auth.login.failure"
	MetricLoginDelayed      = "auth.login.delayed"
	MetricRefreshSuccess    = "session.refresh.success"
	MetricRefreshFailure    = "session.refresh.failure"
	MetricRefreshAttached   = "session.refresh.attached"
	MetricRefreshProactive  = "session.refresh.proactive"
	MetricRetryAfterRefresh = "httpclient.retry_after_refresh"
	MetricForcedLogout      = "session.forced_logout"
	MetricNetworkFailure    = "httpclient.network_failure"
)

// MetricsRecorder increments counters for session events.
type MetricsRecorder interface {
	Increment(event string)
}

// CounterMetrics implements MetricsRecorder with in-memory counts.
type CounterMetrics struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewCounterMetrics constructs an in-memory metrics recorder.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counts: make(map[string]int64)}
}

// Increment increases the counter for the given event.
func (recorder *CounterMetrics) Increment(event string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.counts[event]++
}

// Count returns the current value for the given event.
func (recorder *CounterMetrics) Count(event string) int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.counts[event]
}

// Snapshot returns a copy of all recorded counters.
func (recorder *CounterMetrics) Snapshot() map[string]int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	clone := make(map[string]int64, len(recorder.counts))
	for event, value := range recorder.counts {
		clone[event] = value
	}
	return clone
}

type nopMetrics struct{}

// Increment discards the event.
func (nopMetrics) Increment(event string) {}

// NopMetrics returns a MetricsRecorder that records nothing.
func NopMetrics() MetricsRecorder {
	return nopMetrics{}
}

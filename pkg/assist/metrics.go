package assist

import (
	"sync"
	"time"
)

// Metrics tracks session statistics across turns.
type Metrics struct {
	// TurnsStarted is the number of turns opened against the service.
	TurnsStarted int64

	// TurnsCompleted is the number of turns that finished cleanly.
	TurnsCompleted int64

	// Retries is the number of transient-failure re-attempts.
	Retries int64

	// AudioBytesSent is the total captured audio streamed out.
	AudioBytesSent int64

	// AudioBytesReceived is the total synthesized audio played back.
	AudioBytesReceived int64

	// LastTurnDuration is the wall time of the most recent completed turn.
	LastTurnDuration time.Duration
}

// MetricsCollector collects session statistics. It is goroutine-safe: the
// audio pump and the receive loop both report into it.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics

	turnStart time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// MarkTurnStart records the beginning of a turn.
func (m *MetricsCollector) MarkTurnStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TurnsStarted++
	m.turnStart = time.Now()
}

// MarkTurnDone records a cleanly finished turn.
func (m *MetricsCollector) MarkTurnDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TurnsCompleted++
	if !m.turnStart.IsZero() {
		m.current.LastTurnDuration = time.Since(m.turnStart)
	}
}

// MarkRetry records a transient-failure re-attempt.
func (m *MetricsCollector) MarkRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Retries++
}

// AddAudioSent accounts outbound audio bytes.
func (m *MetricsCollector) AddAudioSent(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioBytesSent += int64(n)
}

// AddAudioReceived accounts inbound audio bytes.
func (m *MetricsCollector) AddAudioReceived(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioBytesReceived += int64(n)
}

// Current returns a snapshot of the statistics.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

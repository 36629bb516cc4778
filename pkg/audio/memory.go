package audio

import (
	"bytes"
	"io"
	"sync"
)

// MemorySource is an in-memory capture source preloaded with PCM16 bytes.
// It drains its buffer and then reads io.EOF, which makes it useful for
// tests and for replaying recorded utterances.
type MemorySource struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	started bool
	stopped bool
}

// NewMemorySource creates a source preloaded with the given audio.
func NewMemorySource(data []byte) *MemorySource {
	s := &MemorySource{}
	s.buf.Write(data)
	return s
}

// Start marks the source active.
func (s *MemorySource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.stopped = false
	return nil
}

// Stop marks the source stopped. Subsequent reads return io.EOF.
func (s *MemorySource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// Read drains the preloaded buffer.
func (s *MemorySource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || !s.started || s.buf.Len() == 0 {
		return 0, io.EOF
	}
	return s.buf.Read(p)
}

// MemorySink is an in-memory playback sink that accumulates written audio.
type MemorySink struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	started bool
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Start marks the sink active.
func (s *MemorySink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

// Stop marks the sink inactive. Accumulated audio is retained.
func (s *MemorySink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

// Write accumulates playback audio.
func (s *MemorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return 0, ErrNotPlaying
	}
	return s.buf.Write(p)
}

// Bytes returns everything written so far.
func (s *MemorySink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

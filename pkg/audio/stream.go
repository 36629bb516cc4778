package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/voxmill/go-assist/pkg/assist"
)

// Sentinel errors for the audio package.
var (
	// ErrNotPlaying indicates a playback write before StartPlayback.
	ErrNotPlaying = errors.New("audio: playback not started")

	// ErrClosed indicates the stream was closed.
	ErrClosed = errors.New("audio: stream closed")
)

// Source provides captured PCM16 audio. Stop must unblock a pending Read;
// a stopped source reads io.EOF once buffered audio drains.
type Source interface {
	io.Reader

	// Start begins audio capture.
	Start() error

	// Stop halts audio capture. It is safe to call Stop multiple times.
	Stop() error
}

// Sink consumes playback PCM16 audio.
type Sink interface {
	io.Writer

	// Start begins audio playback.
	Start() error

	// Stop halts audio playback. It is safe to call Stop multiple times.
	Stop() error
}

// Stream is the duplex conversation audio transport: readable as a sequence
// of fixed-size captured blocks, writable for playback, with idempotent
// recording/playback toggles and a mutable volume.
//
// Exhaustion of the captured sequence is the stream's responsibility: once
// recording stops, ReadChunk drains whatever the source still has and then
// reports io.EOF for the rest of the turn.
type Stream struct {
	cfg    Config
	source Source
	sink   Sink
	logger *slog.Logger

	mu        sync.Mutex
	recording bool
	playing   bool
	volume    int
	closed    bool
}

// NewStream creates a duplex stream over the given source and sink.
func NewStream(source Source, sink Sink, cfg Config, logger *slog.Logger) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || sink == nil {
		return nil, errors.New("audio: source and sink are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Stream{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: logger,
		volume: DefaultVolume,
	}, nil
}

// StartRecording begins audio capture. Calling it while already recording
// is a no-op.
func (s *Stream) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.recording {
		return nil
	}
	if err := s.source.Start(); err != nil {
		return fmt.Errorf("audio: start capture: %w", err)
	}
	s.recording = true
	s.logger.Debug("recording started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// StopRecording halts audio capture. Safe to call repeatedly.
func (s *Stream) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return nil
	}
	s.recording = false
	if err := s.source.Stop(); err != nil {
		return fmt.Errorf("audio: stop capture: %w", err)
	}
	s.logger.Debug("recording stopped")
	return nil
}

// StartPlayback begins audio playback. Calling it while already playing is
// a no-op.
func (s *Stream) StartPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.playing {
		return nil
	}
	if err := s.sink.Start(); err != nil {
		return fmt.Errorf("audio: start playback: %w", err)
	}
	s.playing = true
	s.logger.Debug("playback started")
	return nil
}

// StopPlayback halts audio playback. Safe to call repeatedly.
func (s *Stream) StopPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return nil
	}
	s.playing = false
	if err := s.sink.Stop(); err != nil {
		return fmt.Errorf("audio: stop playback: %w", err)
	}
	s.logger.Debug("playback stopped")
	return nil
}

// Playing reports whether playback is active.
func (s *Stream) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SampleRate returns the configured sample rate in Hz.
func (s *Stream) SampleRate() int {
	return s.cfg.SampleRate
}

// Volume returns the current playback volume percentage.
func (s *Stream) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume sets the playback volume percentage (0-100).
func (s *Stream) SetVolume(pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("audio: volume %d out of range 0-100", pct)
	}
	s.mu.Lock()
	s.volume = pct
	s.mu.Unlock()
	return nil
}

// ReadChunk reads the next fixed-size block of captured audio. It returns
// io.EOF once recording has stopped or the source drained, ending the
// turn's outbound sequence.
func (s *Stream) ReadChunk() ([]byte, error) {
	s.mu.Lock()
	if s.closed || !s.recording {
		s.mu.Unlock()
		return nil, io.EOF
	}
	s.mu.Unlock()

	// The blocking read happens outside the lock so StopRecording can
	// interrupt it through the source.
	buf := make([]byte, s.cfg.BlockBytes())
	n, err := io.ReadFull(s.source, buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("audio: read capture: %w", err)
	}
	return nil, io.EOF
}

// Write pushes playback audio to the sink, scaled to the current volume.
// It reports the number of input bytes consumed.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	playing, volume := s.playing, s.volume
	s.mu.Unlock()

	if !playing {
		return 0, ErrNotPlaying
	}

	out := p
	if volume != 100 {
		var chunk Chunk
		chunk.FromBytes(p, s.cfg.SampleRate, s.cfg.Channels)
		chunk.ApplyGain(volume)
		out = chunk.Bytes()
	}

	if _, err := s.sink.Write(out); err != nil {
		return 0, fmt.Errorf("audio: write playback: %w", err)
	}
	return len(p), nil
}

// Close stops both directions and releases source/sink resources.
func (s *Stream) Close() error {
	if err := s.StopRecording(); err != nil {
		return err
	}
	if err := s.StopPlayback(); err != nil {
		return err
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	var firstErr error
	if c, ok := s.source.(io.Closer); ok {
		firstErr = c.Close()
	}
	if c, ok := s.sink.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ensure Stream satisfies the driver's transport contract at compile time.
var _ assist.AudioTransport = (*Stream)(nil)

package assist

import (
	"context"

	"github.com/voxmill/go-assist/pkg/wire"
)

// Stream is one bidirectional turn exchange with the assistant service.
// The send and receive directions are independent: the client streams
// requests while reading responses off the same stream.
type Stream interface {
	// Send writes one outbound envelope.
	Send(req *wire.AssistRequest) error

	// CloseSend half-closes the stream after the last outbound envelope.
	// The service keeps streaming responses until it closes its side.
	CloseSend() error

	// Recv reads the next inbound event, blocking until one arrives.
	// Returns io.EOF when the service half-closes.
	Recv() (*wire.AssistResponse, error)
}

// Channel opens turn streams against the assistant service. Implementations
// own connection establishment and authentication.
type Channel interface {
	// Assist opens the bidirectional stream for one turn. The context bounds
	// the whole turn; when it expires the stream is aborted.
	Assist(ctx context.Context) (Stream, error)
}

// AudioTransport is the duplex audio collaborator the driver records from and
// plays back to. The transport owns device lifecycle; the driver only toggles
// recording/playback and moves bytes. All toggles must be idempotent: the
// driver calls them speculatively.
type AudioTransport interface {
	// StartRecording begins audio capture.
	StartRecording() error

	// StopRecording halts audio capture. Safe to call repeatedly.
	StopRecording() error

	// StartPlayback begins audio playback.
	StartPlayback() error

	// StopPlayback halts audio playback. Safe to call repeatedly.
	StopPlayback() error

	// Playing reports whether playback is active.
	Playing() bool

	// SampleRate returns the capture/playback sample rate in Hz.
	SampleRate() int

	// Volume returns the current playback volume percentage (0-100).
	Volume() int

	// SetVolume sets the playback volume percentage (0-100).
	SetVolume(pct int) error

	// ReadChunk reads the next fixed-size block of captured audio. Returns
	// io.EOF once the transport decides this turn's input is exhausted
	// (typically after StopRecording).
	ReadChunk() ([]byte, error)

	// Write pushes playback audio to the output device.
	Write(p []byte) (int, error)
}

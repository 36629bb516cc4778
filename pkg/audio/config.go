package audio

import (
	"fmt"
	"time"
)

// DefaultVolume is the playback volume a fresh stream starts with.
const DefaultVolume = 50

// Config holds audio stream configuration.
type Config struct {
	// SampleRate is the capture/playback sample rate in Hz.
	// Default: 16000.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels. Default: 1 (mono).
	Channels int `json:"channels"`

	// BlockDuration is the size of one captured audio block.
	// Default: 100ms (1600 samples at 16kHz).
	BlockDuration time.Duration `json:"block_duration"`

	// Device is the platform-specific device identifier, e.g. an ALSA
	// name like "plughw:1,0". Empty selects the system default.
	Device string `json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		Channels:      1,
		BlockDuration: 100 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BlockDuration <= 0 {
		return fmt.Errorf("block_duration must be positive, got %v", c.BlockDuration)
	}
	return nil
}

// BlockSize returns the number of samples per captured block.
func (c *Config) BlockSize() int {
	return int(float64(c.SampleRate) * c.BlockDuration.Seconds())
}

// BlockBytes returns the size of a captured block in bytes.
func (c *Config) BlockBytes() int {
	return c.BlockSize() * c.Channels * 2 // 2 bytes per int16 sample
}

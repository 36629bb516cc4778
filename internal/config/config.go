// Package config loads client configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	Endpoint        string        // Assistant service websocket endpoint
	CredentialsPath string        // Path to the stored OAuth2 credentials file
	LanguageCode    string        // BCP-47 language code for dialog state
	DeviceModelID   string        // Registered device model identifier
	SampleRate      int           // Capture/playback sample rate in Hz
	TurnDeadline    time.Duration // Deadline for a single assistant turn
	Display         bool          // Request rich screen output from the service
}

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is honored if present.
func Load() (*Config, error) {
	// Missing .env is fine, env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		Endpoint:        "wss://assistant.voxmill.dev/v1/assist",
		CredentialsPath: "credentials.json",
		LanguageCode:    "en-US",
		DeviceModelID:   "voxmill-assist-client",
		SampleRate:      16000,
		TurnDeadline:    185 * time.Second,
	}

	if v := os.Getenv("ASSIST_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("ASSIST_CREDENTIALS"); v != "" {
		cfg.CredentialsPath = v
	}
	if v := os.Getenv("ASSIST_LANGUAGE"); v != "" {
		cfg.LanguageCode = v
	}
	if v := os.Getenv("ASSIST_DEVICE_MODEL"); v != "" {
		cfg.DeviceModelID = v
	}
	if v := os.Getenv("ASSIST_SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ASSIST_SAMPLE_RATE: %w", err)
		}
		cfg.SampleRate = rate
	}
	if v := os.Getenv("ASSIST_TURN_DEADLINE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ASSIST_TURN_DEADLINE: %w", err)
		}
		cfg.TurnDeadline = d
	}
	if v := os.Getenv("ASSIST_DISPLAY"); v != "" {
		display, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ASSIST_DISPLAY: %w", err)
		}
		cfg.Display = display
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.TurnDeadline <= 0 {
		return fmt.Errorf("turn deadline must be positive, got %v", c.TurnDeadline)
	}
	return nil
}

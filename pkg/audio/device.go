package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// CommandSource captures audio by running a recorder subprocess (arecord by
// default) and reading raw PCM16 from its stdout.
type CommandSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// NewCommandSource creates a subprocess-backed capture source.
func NewCommandSource(cfg Config, logger *slog.Logger) *CommandSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSource{cfg: cfg, logger: logger}
}

// Start launches the recorder subprocess.
func (s *CommandSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	args := []string{
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-t", "raw",
		"-q",
	}
	if s.cfg.Device != "" {
		args = append(args, "-D", s.cfg.Device)
	}

	cmd := exec.Command("arecord", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("audio: recorder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start recorder: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.logger.Debug("recorder started", "pid", cmd.Process.Pid, "device", s.cfg.Device)
	return nil
}

// Read reads raw PCM16 from the recorder. It returns io.EOF after Stop.
func (s *CommandSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()

	if stdout == nil {
		return 0, io.EOF
	}
	n, err := stdout.Read(p)
	if err != nil {
		// A killed recorder surfaces as a pipe error. Normalize so callers
		// always see io.EOF at end of capture.
		return n, io.EOF
	}
	return n, nil
}

// Stop kills the recorder subprocess, unblocking any pending Read.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	cmd := s.cmd
	s.cmd = nil
	s.stdout = nil

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("audio: stop recorder: %w", err)
	}
	cmd.Wait()
	s.logger.Debug("recorder stopped")
	return nil
}

// CommandSink plays audio by running a player subprocess (aplay by default)
// and writing raw PCM16 to its stdin.
type CommandSink struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewCommandSink creates a subprocess-backed playback sink.
func NewCommandSink(cfg Config, logger *slog.Logger) *CommandSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSink{cfg: cfg, logger: logger}
}

// Start launches the player subprocess.
func (s *CommandSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	args := []string{
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-t", "raw",
		"-q",
	}
	if s.cfg.Device != "" {
		args = append(args, "-D", s.cfg.Device)
	}

	cmd := exec.Command("aplay", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("audio: player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("audio: start player: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.logger.Debug("player started", "pid", cmd.Process.Pid, "device", s.cfg.Device)
	return nil
}

// Write sends raw PCM16 to the player.
func (s *CommandSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	if stdin == nil {
		return 0, ErrNotPlaying
	}
	return stdin.Write(p)
}

// Stop closes the player's stdin and waits for buffered audio to drain.
func (s *CommandSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	cmd := s.cmd
	stdin := s.stdin
	s.cmd = nil
	s.stdin = nil

	stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("audio: stop player: %w", err)
	}
	s.logger.Debug("player stopped")
	return nil
}

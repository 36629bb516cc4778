package assist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxmill/go-assist/pkg/wire"
)

// DefaultDeadline bounds one whole turn, not individual messages. The
// service aborts the exchange if no terminal response arrived in time.
const DefaultDeadline = 185 * time.Second

// maxTurnAttempts bounds the transient-failure retry: 1 try + 2 retries.
const maxTurnAttempts = 3

// textAudioOutSampleRate is the fixed synthesis rate requested by text turns,
// which have no audio transport to take a rate from.
const textAudioOutSampleRate = 16000

// Config holds the per-session assistant parameters.
type Config struct {
	// LanguageCode is the BCP-47 dialog language, e.g. "en-US".
	LanguageCode string

	// DeviceID is the unique registered device instance identifier.
	DeviceID string

	// DeviceModelID is the registered device model identifier.
	DeviceModelID string

	// Display requests rich screen output from the service.
	Display bool

	// Deadline bounds one whole turn. Defaults to DefaultDeadline.
	Deadline time.Duration
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return errors.New("assist: device ID is required")
	}
	if c.LanguageCode == "" {
		return errors.New("assist: language code is required")
	}
	return nil
}

// TurnOutcome is the result of one voice turn.
type TurnOutcome struct {
	// Continue is true when the service expects a follow-on utterance and
	// the caller should start another turn without a new trigger.
	Continue bool
}

// TextResult is the result of one text turn.
type TextResult struct {
	// DisplayText is the last non-empty supplemental display text received.
	DisplayText string

	// ScreenData is the last non-empty rich screen payload received.
	ScreenData []byte
}

// Session drives multi-turn conversations with the assistant service. It
// exclusively owns the opaque conversation state and the new-conversation
// flag for its lifetime: construct one per session, run turns against it,
// discard it at session end.
//
// Turns are strictly sequential. A Session is not safe for concurrent turns
// and enforces that with ErrTurnInProgress.
type Session struct {
	cfg     Config
	channel Channel
	audio   AudioTransport
	logger  *slog.Logger
	metrics *MetricsCollector

	// OnDeviceAction, when set, receives device command requests carried by
	// responses. The session never executes them itself.
	OnDeviceAction func(*wire.DeviceAction)

	mu                sync.Mutex
	turnActive        bool
	conversationState []byte
	isNewConversation bool
}

// NewSession creates a session. The audio transport may be nil for sessions
// that only run text turns.
func NewSession(channel Channel, audio AudioTransport, cfg Config, logger *slog.Logger) (*Session, error) {
	if channel == nil {
		return nil, ErrMissingChannel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		cfg:               cfg,
		channel:           channel,
		audio:             audio,
		logger:            logger,
		metrics:           NewMetricsCollector(),
		isNewConversation: true,
	}, nil
}

// Metrics returns a snapshot of the session statistics.
func (s *Session) Metrics() Metrics {
	return s.metrics.Current()
}

// Assist runs one voice turn with bounded retry on the transient
// transport-unavailable condition: up to 3 attempts, immediate re-attempt,
// the final error returned unchanged on exhaustion. Any other failure
// propagates on first occurrence.
func (s *Session) Assist(ctx context.Context) (TurnOutcome, error) {
	attempt := 0
	return Do(maxTurnAttempts, IsUnavailable, func() (TurnOutcome, error) {
		if attempt > 0 {
			s.metrics.MarkRetry()
			s.logger.Warn("transport unavailable, retrying turn", "attempt", attempt+1)
		}
		attempt++
		return s.RunTurn(ctx)
	})
}

// RunTurn executes exactly one voice turn: records the user's request,
// streams it out while consuming the service's event stream, plays back
// synthesized audio, and reports whether the conversation should continue.
func (s *Session) RunTurn(ctx context.Context) (TurnOutcome, error) {
	if s.audio == nil {
		return TurnOutcome{}, ErrMissingAudio
	}
	if err := s.beginTurn(); err != nil {
		return TurnOutcome{}, err
	}
	defer s.endTurn()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	logger := s.logger.With("turn_id", uuid.NewString())
	s.metrics.MarkTurnStart()

	if err := s.audio.StartRecording(); err != nil {
		return TurnOutcome{}, &AudioError{Op: "start recording", Cause: err}
	}
	// Idempotent, and on an aborted turn it unblocks an audio pump still
	// waiting on the capture device.
	defer s.audio.StopRecording()
	logger.Info("recording audio request")

	stream, err := s.channel.Assist(ctx)
	if err != nil {
		return TurnOutcome{}, transportFailure("open stream", err)
	}

	// The config envelope goes out first and exactly once; the
	// new-conversation flag is consumed the moment it is built.
	req := &wire.AssistRequest{Config: s.buildVoiceConfig()}
	s.isNewConversation = false
	if err := stream.Send(req); err != nil {
		return TurnOutcome{}, transportFailure("send config", err)
	}

	sendDone := make(chan error, 1)
	go func() { sendDone <- s.pumpAudio(stream) }()

	continueConversation := false
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TurnOutcome{}, transportFailure("receive", err)
		}

		for _, d := range Directives(resp) {
			cont, err := s.applyVoiceDirective(logger, d)
			if err != nil {
				return TurnOutcome{}, err
			}
			if cont != nil {
				continueConversation = *cont
			}
		}
	}

	if err := <-sendDone; err != nil {
		return TurnOutcome{}, err
	}

	logger.Info("finished playing assistant response")
	if err := s.audio.StopPlayback(); err != nil {
		return TurnOutcome{}, &AudioError{Op: "stop playback", Cause: err}
	}

	s.metrics.MarkTurnDone()
	return TurnOutcome{Continue: continueConversation}, nil
}

// TextTurn executes one text turn: a single config-only request carrying the
// query, no audio in either direction. It shares the session's conversation
// state with voice turns.
func (s *Session) TextTurn(ctx context.Context, query string) (TextResult, error) {
	if err := s.beginTurn(); err != nil {
		return TextResult{}, err
	}
	defer s.endTurn()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	stream, err := s.channel.Assist(ctx)
	if err != nil {
		return TextResult{}, transportFailure("open stream", err)
	}

	req := &wire.AssistRequest{Config: s.buildTextConfig(query)}
	s.isNewConversation = false
	if err := stream.Send(req); err != nil {
		return TextResult{}, transportFailure("send config", err)
	}
	if err := stream.CloseSend(); err != nil {
		return TextResult{}, transportFailure("close send", err)
	}

	var result TextResult
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TextResult{}, transportFailure("receive", err)
		}

		for _, d := range Directives(resp) {
			switch d.Kind {
			case DirectiveDisplayText:
				result.DisplayText = d.Text
			case DirectiveScreenData:
				result.ScreenData = append([]byte(nil), d.Bytes...)
			case DirectiveState:
				s.conversationState = append([]byte(nil), d.Bytes...)
			}
		}
	}

	return result, nil
}

// applyVoiceDirective applies one directive's side effects for a voice turn.
// It returns a non-nil continuation value when the directive updates the
// pending follow-on decision.
func (s *Session) applyVoiceDirective(logger *slog.Logger, d Directive) (*bool, error) {
	switch d.Kind {
	case DirectiveEndOfUtterance:
		logger.Info("end of audio request detected, stopping recording")
		if err := s.audio.StopRecording(); err != nil {
			return nil, &AudioError{Op: "stop recording", Cause: err}
		}

	case DirectiveTranscript:
		logger.Info("transcript of user request", "transcript", d.Text)

	case DirectiveAudio:
		if !s.audio.Playing() {
			if err := s.audio.StopRecording(); err != nil {
				return nil, &AudioError{Op: "stop recording", Cause: err}
			}
			if err := s.audio.StartPlayback(); err != nil {
				return nil, &AudioError{Op: "start playback", Cause: err}
			}
			logger.Info("playing assistant response")
		}
		if _, err := s.audio.Write(d.Bytes); err != nil {
			return nil, &AudioError{Op: "write", Cause: err}
		}
		s.metrics.AddAudioReceived(len(d.Bytes))

	case DirectiveState:
		logger.Debug("updating conversation state", "bytes", len(d.Bytes))
		s.conversationState = append([]byte(nil), d.Bytes...)

	case DirectiveVolume:
		logger.Info("setting volume", "percent", d.Volume)
		if err := s.audio.SetVolume(d.Volume); err != nil {
			return nil, &AudioError{Op: "set volume", Cause: err}
		}

	case DirectiveMicMode:
		cont := d.MicMode == wire.MicrophoneFollowOn
		if cont {
			logger.Info("expecting follow-on query from user")
		}
		return &cont, nil

	case DirectiveDisplayText:
		logger.Debug("supplemental display text", "text", d.Text)

	case DirectiveScreenData:
		logger.Debug("screen output received", "bytes", len(d.Bytes))

	case DirectiveDeviceAction:
		if s.OnDeviceAction != nil {
			s.OnDeviceAction(d.Action)
		}
	}

	return nil, nil
}

// pumpAudio streams captured audio until the transport reports the turn's
// input exhausted, then half-closes the stream.
func (s *Session) pumpAudio(stream Stream) error {
	for {
		chunk, err := s.audio.ReadChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &AudioError{Op: "read", Cause: err}
		}
		if len(chunk) == 0 {
			continue
		}
		if err := stream.Send(&wire.AssistRequest{AudioIn: chunk}); err != nil {
			return transportFailure("send audio", err)
		}
		s.metrics.AddAudioSent(len(chunk))
	}
	if err := stream.CloseSend(); err != nil {
		return transportFailure("close send", err)
	}
	return nil
}

func (s *Session) buildVoiceConfig() *wire.AssistConfig {
	cfg := &wire.AssistConfig{
		AudioIn: &wire.AudioInConfig{
			Encoding:        wire.EncodingLinear16,
			SampleRateHertz: s.audio.SampleRate(),
		},
		AudioOut: &wire.AudioOutConfig{
			Encoding:         wire.EncodingLinear16,
			SampleRateHertz:  s.audio.SampleRate(),
			VolumePercentage: s.audio.Volume(),
		},
		DialogState: s.dialogStateIn(),
		Device: wire.DeviceConfig{
			DeviceID:      s.cfg.DeviceID,
			DeviceModelID: s.cfg.DeviceModelID,
		},
	}
	if s.cfg.Display {
		cfg.ScreenOut = &wire.ScreenOutConfig{ScreenMode: wire.ScreenModePlaying}
	}
	return cfg
}

func (s *Session) buildTextConfig(query string) *wire.AssistConfig {
	cfg := &wire.AssistConfig{
		AudioOut: &wire.AudioOutConfig{
			Encoding:        wire.EncodingLinear16,
			SampleRateHertz: textAudioOutSampleRate,
		},
		DialogState: s.dialogStateIn(),
		Device: wire.DeviceConfig{
			DeviceID:      s.cfg.DeviceID,
			DeviceModelID: s.cfg.DeviceModelID,
		},
		TextQuery: query,
	}
	if s.cfg.Display {
		cfg.ScreenOut = &wire.ScreenOutConfig{ScreenMode: wire.ScreenModePlaying}
	}
	return cfg
}

func (s *Session) dialogStateIn() wire.DialogStateIn {
	return wire.DialogStateIn{
		LanguageCode:      s.cfg.LanguageCode,
		ConversationState: s.conversationState,
		IsNewConversation: s.isNewConversation,
	}
}

func (s *Session) beginTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnActive {
		return ErrTurnInProgress
	}
	s.turnActive = true
	return nil
}

func (s *Session) endTurn() {
	s.mu.Lock()
	s.turnActive = false
	s.mu.Unlock()
}

// transportFailure classifies a channel error. Errors already carrying a
// TransportError anywhere in their chain keep their classification;
// everything else is wrapped as non-retryable.
func transportFailure(reason string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransportError(wire.StatusDeadlineExceeded, reason, err)
	}
	return NewTransportError(wire.StatusInternal, reason, err)
}

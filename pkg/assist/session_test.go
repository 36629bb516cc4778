package assist

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/voxmill/go-assist/pkg/wire"
)

// fakeAudio is an in-memory AudioTransport preloaded with capture chunks.
type fakeAudio struct {
	mu     sync.Mutex
	chunks [][]byte

	recording       bool
	playing         bool
	playbackStarted bool
	volume          int
	written         []byte
}

func newFakeAudio(chunks ...[]byte) *fakeAudio {
	return &fakeAudio{chunks: chunks, volume: 50}
}

func (f *fakeAudio) StartRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = true
	return nil
}

func (f *fakeAudio) StopRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
	return nil
}

func (f *fakeAudio) StartPlayback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	f.playbackStarted = true
	return nil
}

func (f *fakeAudio) StopPlayback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	return nil
}

func (f *fakeAudio) Playing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeAudio) SampleRate() int { return 16000 }

func (f *fakeAudio) Volume() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeAudio) SetVolume(pct int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = pct
	return nil
}

// ReadChunk drains the preloaded chunks regardless of the recording flag so
// tests stay deterministic when the service stops recording mid-stream.
func (f *fakeAudio) ReadChunk() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chunks) == 0 {
		return nil, io.EOF
	}
	chunk := f.chunks[0]
	f.chunks = f.chunks[1:]
	return chunk, nil
}

func (f *fakeAudio) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, p...)
	return len(p), nil
}

// fakeStream replays scripted responses and records everything sent.
type fakeStream struct {
	mu        sync.Mutex
	responses []*wire.AssistResponse
	recvErr   error // returned after the scripted responses instead of io.EOF
	sent      []*wire.AssistRequest
	closed    bool
}

func (f *fakeStream) Send(req *wire.AssistRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStream) Recv() (*wire.AssistResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		if f.recvErr != nil {
			return nil, f.recvErr
		}
		return nil, io.EOF
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeStream) sentRequests() []*wire.AssistRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*wire.AssistRequest(nil), f.sent...)
}

func (f *fakeStream) sendClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeChannel hands out one scripted dial result per Assist call.
type fakeChannel struct {
	mu    sync.Mutex
	dials []dialResult
	calls int
}

type dialResult struct {
	stream *fakeStream
	err    error
}

func (c *fakeChannel) Assist(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.dials) {
		return nil, errors.New("unexpected dial")
	}
	d := c.dials[c.calls]
	c.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func micModeResponse(mode wire.MicrophoneMode) *wire.AssistResponse {
	return &wire.AssistResponse{DialogState: &wire.DialogStateOut{MicrophoneMode: mode}}
}

func testConfig() Config {
	return Config{LanguageCode: "en-US", DeviceID: "dev-1", DeviceModelID: "model-1"}
}

func TestRunTurnSendsConfigFirst(t *testing.T) {
	stream := &fakeStream{responses: []*wire.AssistResponse{
		{EventType: wire.EventEndOfUtterance},
		micModeResponse(wire.MicrophoneClose),
	}}
	channel := &fakeChannel{dials: []dialResult{{stream: stream}}}
	audio := newFakeAudio([]byte{1, 2}, []byte{3, 4})

	session, err := NewSession(channel, audio, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	sent := stream.sentRequests()
	if len(sent) != 3 {
		t.Fatalf("sent %d requests, want 3", len(sent))
	}
	if sent[0].Config == nil {
		t.Error("first request missing config")
	}
	if sent[0].AudioIn != nil {
		t.Error("first request should carry no audio")
	}
	for i, req := range sent[1:] {
		if req.Config != nil {
			t.Errorf("request %d carries a second config", i+1)
		}
		if len(req.AudioIn) == 0 {
			t.Errorf("request %d carries no audio", i+1)
		}
	}
	if !stream.sendClosed() {
		t.Error("stream was not half-closed after audio")
	}
}

func TestNewConversationFlagAndStateCarryOver(t *testing.T) {
	state := []byte("opaque-state-blob")
	stream1 := &fakeStream{responses: []*wire.AssistResponse{
		{DialogState: &wire.DialogStateOut{ConversationState: state}},
	}}
	stream2 := &fakeStream{}
	channel := &fakeChannel{dials: []dialResult{{stream: stream1}, {stream: stream2}}}

	session, err := NewSession(channel, newFakeAudio(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("first RunTurn() error = %v", err)
	}
	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("second RunTurn() error = %v", err)
	}

	cfg1 := stream1.sentRequests()[0].Config
	if !cfg1.DialogState.IsNewConversation {
		t.Error("first turn should mark a new conversation")
	}
	if len(cfg1.DialogState.ConversationState) != 0 {
		t.Error("first turn should carry no conversation state")
	}

	cfg2 := stream2.sentRequests()[0].Config
	if cfg2.DialogState.IsNewConversation {
		t.Error("second turn should not mark a new conversation")
	}
	if string(cfg2.DialogState.ConversationState) != string(state) {
		t.Errorf("second turn state = %q, want %q", cfg2.DialogState.ConversationState, state)
	}
}

func TestMicrophoneModeLastWins(t *testing.T) {
	tests := []struct {
		name  string
		modes []wire.MicrophoneMode
		want  bool
	}{
		{name: "no mode", modes: nil, want: false},
		{name: "close only", modes: []wire.MicrophoneMode{wire.MicrophoneClose}, want: false},
		{name: "follow-on only", modes: []wire.MicrophoneMode{wire.MicrophoneFollowOn}, want: true},
		{
			name:  "follow-on then close then follow-on",
			modes: []wire.MicrophoneMode{wire.MicrophoneFollowOn, wire.MicrophoneClose, wire.MicrophoneFollowOn},
			want:  true,
		},
		{
			name:  "close then follow-on",
			modes: []wire.MicrophoneMode{wire.MicrophoneClose, wire.MicrophoneFollowOn},
			want:  true,
		},
		{
			name:  "follow-on then close",
			modes: []wire.MicrophoneMode{wire.MicrophoneFollowOn, wire.MicrophoneClose},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var responses []*wire.AssistResponse
			for _, mode := range tt.modes {
				responses = append(responses, micModeResponse(mode))
			}
			stream := &fakeStream{responses: responses}
			channel := &fakeChannel{dials: []dialResult{{stream: stream}}}

			session, err := NewSession(channel, newFakeAudio(), testConfig(), nil)
			if err != nil {
				t.Fatalf("NewSession() error = %v", err)
			}

			outcome, err := session.RunTurn(context.Background())
			if err != nil {
				t.Fatalf("RunTurn() error = %v", err)
			}
			if outcome.Continue != tt.want {
				t.Errorf("Continue = %v, want %v", outcome.Continue, tt.want)
			}
		})
	}
}

func TestAudioResponsePlayback(t *testing.T) {
	audioData := []byte{10, 20, 30, 40}
	stream := &fakeStream{responses: []*wire.AssistResponse{
		{EventType: wire.EventEndOfUtterance},
		{AudioOut: &wire.AudioOut{AudioData: audioData}},
	}}
	channel := &fakeChannel{dials: []dialResult{{stream: stream}}}
	audio := newFakeAudio([]byte{1, 2})

	session, err := NewSession(channel, audio, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	if !audio.playbackStarted {
		t.Error("playback was never started")
	}
	if audio.playing {
		t.Error("playback still active after turn")
	}
	if string(audio.written) != string(audioData) {
		t.Errorf("written = %v, want %v", audio.written, audioData)
	}
}

func TestNoAudioNoPlayback(t *testing.T) {
	stream := &fakeStream{responses: []*wire.AssistResponse{
		micModeResponse(wire.MicrophoneClose),
	}}
	channel := &fakeChannel{dials: []dialResult{{stream: stream}}}
	audio := newFakeAudio()

	session, err := NewSession(channel, audio, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if audio.playbackStarted {
		t.Error("playback started without any audio response")
	}
}

func TestVolumeDirectiveApplied(t *testing.T) {
	stream := &fakeStream{responses: []*wire.AssistResponse{
		{DialogState: &wire.DialogStateOut{VolumePercentage: 45}},
	}}
	channel := &fakeChannel{dials: []dialResult{{stream: stream}}}
	audio := newFakeAudio()

	session, err := NewSession(channel, audio, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got := audio.Volume(); got != 45 {
		t.Errorf("volume = %d, want 45", got)
	}
}

func TestZeroVolumeIgnored(t *testing.T) {
	stream := &fakeStream{responses: []*wire.AssistResponse{
		{DialogState: &wire.DialogStateOut{VolumePercentage: 0, MicrophoneMode: wire.MicrophoneClose}},
	}}
	channel := &fakeChannel{dials: []dialResult{{stream: stream}}}
	audio := newFakeAudio()

	session, err := NewSession(channel, audio, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got := audio.Volume(); got != 50 {
		t.Errorf("volume = %d, want unchanged 50", got)
	}
}

func TestAssistRetriesOnUnavailable(t *testing.T) {
	unavailable := NewTransportError(wire.StatusUnavailable, "dial", errors.New("connection refused"))
	stream := &fakeStream{responses: []*wire.AssistResponse{
		micModeResponse(wire.MicrophoneClose),
	}}
	channel := &fakeChannel{dials: []dialResult{
		{err: unavailable},
		{err: unavailable},
		{stream: stream},
	}}

	session, err := NewSession(channel, newFakeAudio(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.Assist(context.Background()); err != nil {
		t.Fatalf("Assist() error = %v, want success on third attempt", err)
	}
	if channel.calls != 3 {
		t.Errorf("dial attempts = %d, want 3", channel.calls)
	}
	if got := session.Metrics().Retries; got != 2 {
		t.Errorf("retries = %d, want 2", got)
	}
}

func TestAssistRetryExhausted(t *testing.T) {
	unavailable := NewTransportError(wire.StatusUnavailable, "dial", errors.New("connection refused"))
	channel := &fakeChannel{dials: []dialResult{
		{err: unavailable}, {err: unavailable}, {err: unavailable},
	}}

	session, err := NewSession(channel, newFakeAudio(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	_, err = session.Assist(context.Background())
	if err == nil {
		t.Fatal("Assist() succeeded, want error after exhausted retries")
	}
	if !IsUnavailable(err) {
		t.Errorf("error lost its unavailable classification: %v", err)
	}
	if channel.calls != 3 {
		t.Errorf("dial attempts = %d, want 3", channel.calls)
	}
}

func TestAssistNoRetryOnTerminalError(t *testing.T) {
	terminal := NewTransportError(wire.StatusInternal, "dial", errors.New("bad handshake"))
	channel := &fakeChannel{dials: []dialResult{{err: terminal}}}

	session, err := NewSession(channel, newFakeAudio(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	_, err = session.Assist(context.Background())
	if err == nil {
		t.Fatal("Assist() succeeded, want terminal error")
	}
	if IsUnavailable(err) {
		t.Errorf("terminal error classified as unavailable: %v", err)
	}
	if channel.calls != 1 {
		t.Errorf("dial attempts = %d, want 1", channel.calls)
	}
}

func TestStreamErrorPropagates(t *testing.T) {
	stream := &fakeStream{recvErr: NewTransportError(wire.StatusInternal, "service error", nil)}
	channel := &fakeChannel{dials: []dialResult{{stream: stream}}}

	session, err := NewSession(channel, newFakeAudio(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	_, err = session.RunTurn(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("RunTurn() error = %v, want TransportError", err)
	}
	if te.Code != wire.StatusInternal {
		t.Errorf("code = %q, want %q", te.Code, wire.StatusInternal)
	}
}

func TestDeviceActionCallback(t *testing.T) {
	actionJSON := []byte(`{"command":"lights.on"}`)
	stream := &fakeStream{responses: []*wire.AssistResponse{
		{DeviceAction: &wire.DeviceAction{DeviceRequestJSON: actionJSON}},
	}}
	channel := &fakeChannel{dials: []dialResult{{stream: stream}}}

	session, err := NewSession(channel, newFakeAudio(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	var got *wire.DeviceAction
	session.OnDeviceAction = func(a *wire.DeviceAction) { got = a }

	if _, err := session.RunTurn(context.Background()); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got == nil {
		t.Fatal("device action callback never fired")
	}
	if string(got.DeviceRequestJSON) != string(actionJSON) {
		t.Errorf("action = %s, want %s", got.DeviceRequestJSON, actionJSON)
	}
}

func TestRunTurnRequiresAudio(t *testing.T) {
	channel := &fakeChannel{}
	session, err := NewSession(channel, nil, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if _, err := session.RunTurn(context.Background()); !errors.Is(err, ErrMissingAudio) {
		t.Errorf("RunTurn() error = %v, want ErrMissingAudio", err)
	}
}

func TestTextTurn(t *testing.T) {
	state := []byte("text-state")
	stream1 := &fakeStream{responses: []*wire.AssistResponse{
		{DialogState: &wire.DialogStateOut{SupplementalDisplayText: "first"}},
		{
			DialogState: &wire.DialogStateOut{
				SupplementalDisplayText: "it is 6 degrees",
				ConversationState:       state,
			},
			ScreenOut: &wire.ScreenOut{Format: "html", Data: []byte("<html/>")},
		},
	}}
	stream2 := &fakeStream{}
	channel := &fakeChannel{dials: []dialResult{{stream: stream1}, {stream: stream2}}}

	session, err := NewSession(channel, nil, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	result, err := session.TextTurn(context.Background(), "what is the weather")
	if err != nil {
		t.Fatalf("TextTurn() error = %v", err)
	}
	if result.DisplayText != "it is 6 degrees" {
		t.Errorf("DisplayText = %q, want last text to win", result.DisplayText)
	}
	if string(result.ScreenData) != "<html/>" {
		t.Errorf("ScreenData = %q, want %q", result.ScreenData, "<html/>")
	}

	sent := stream1.sentRequests()
	if len(sent) != 1 {
		t.Fatalf("sent %d requests, want exactly 1", len(sent))
	}
	if sent[0].Config == nil || sent[0].Config.TextQuery != "what is the weather" {
		t.Error("config missing text query")
	}
	if sent[0].Config.AudioIn != nil {
		t.Error("text turn should not configure audio input")
	}
	if !stream1.sendClosed() {
		t.Error("text turn did not half-close after config")
	}

	// State from the text turn carries into the next turn.
	if _, err := session.TextTurn(context.Background(), "and tomorrow"); err != nil {
		t.Fatalf("second TextTurn() error = %v", err)
	}
	cfg2 := stream2.sentRequests()[0].Config
	if string(cfg2.DialogState.ConversationState) != string(state) {
		t.Errorf("second turn state = %q, want %q", cfg2.DialogState.ConversationState, state)
	}
	if cfg2.DialogState.IsNewConversation {
		t.Error("second turn should not mark a new conversation")
	}
}

func TestSessionValidation(t *testing.T) {
	if _, err := NewSession(nil, nil, testConfig(), nil); !errors.Is(err, ErrMissingChannel) {
		t.Errorf("NewSession(nil channel) error = %v, want ErrMissingChannel", err)
	}

	cfg := testConfig()
	cfg.DeviceID = ""
	if _, err := NewSession(&fakeChannel{}, nil, cfg, nil); err == nil {
		t.Error("NewSession() accepted empty device ID")
	}
}

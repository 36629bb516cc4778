// Package wire defines the websocket message types exchanged with the
// assistant service. One turn is a config-first sequence of assist_request
// envelopes from the client answered by a stream of assist_response envelopes
// from the service.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of websocket message.
type MessageType string

const (
	// Client → Service messages
	TypeAssistRequest MessageType = "assist_request" // Config or audio envelope
	TypeEndOfStream   MessageType = "end_of_stream"  // Client half-close

	// Service → Client messages
	TypeAssistResponse MessageType = "assist_response" // Turn event
	TypeError          MessageType = "error"           // Terminal failure status
)

// Message is the base wrapper for all websocket messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Client → Service payloads
// =============================================================================

// AssistRequest is one outbound envelope of a turn. The first request of a
// turn carries Config and no audio; every later request carries AudioIn only.
type AssistRequest struct {
	Config  *AssistConfig `json:"config,omitempty"`
	AudioIn []byte        `json:"audio_in,omitempty"` // raw PCM16, base64 on the wire
}

// AssistConfig describes the turn: audio formats, dialog state, and device
// identity. Sent exactly once per turn, before any audio.
type AssistConfig struct {
	AudioIn     *AudioInConfig   `json:"audio_in_config,omitempty"`
	AudioOut    *AudioOutConfig  `json:"audio_out_config,omitempty"`
	DialogState DialogStateIn    `json:"dialog_state_in"`
	Device      DeviceConfig     `json:"device_config"`
	TextQuery   string           `json:"text_query,omitempty"`
	ScreenOut   *ScreenOutConfig `json:"screen_out_config,omitempty"`
}

// AudioInConfig describes the captured audio the client will stream.
type AudioInConfig struct {
	Encoding        string `json:"encoding"` // "LINEAR16"
	SampleRateHertz int    `json:"sample_rate_hertz"`
}

// AudioOutConfig describes the synthesized audio the client wants back.
type AudioOutConfig struct {
	Encoding         string `json:"encoding"` // "LINEAR16"
	SampleRateHertz  int    `json:"sample_rate_hertz"`
	VolumePercentage int    `json:"volume_percentage"`
}

// DialogStateIn carries the conversation continuity token back to the service.
// ConversationState is opaque to the client and echoed verbatim.
type DialogStateIn struct {
	LanguageCode      string `json:"language_code"`
	ConversationState []byte `json:"conversation_state,omitempty"`
	IsNewConversation bool   `json:"is_new_conversation,omitempty"`
}

// DeviceConfig identifies the registered device instance.
type DeviceConfig struct {
	DeviceID      string `json:"device_id"`
	DeviceModelID string `json:"device_model_id"`
}

// ScreenMode selects the visual output mode for display-capable devices.
type ScreenMode string

const (
	ScreenModeOff     ScreenMode = "off"
	ScreenModePlaying ScreenMode = "playing"
)

// ScreenOutConfig requests rich screen output from the service.
type ScreenOutConfig struct {
	ScreenMode ScreenMode `json:"screen_mode"`
}

// =============================================================================
// Service → Client payloads
// =============================================================================

// EventType marks utterance lifecycle events in a response.
type EventType string

// EventEndOfUtterance signals the service has finished receiving the user's
// spoken input for this turn.
const EventEndOfUtterance EventType = "end_of_utterance"

// MicrophoneMode tells the client what to do with the microphone after the
// turn completes.
type MicrophoneMode string

const (
	// MicrophoneFollowOn indicates the service expects another user utterance
	// without a new trigger.
	MicrophoneFollowOn MicrophoneMode = "follow_on"

	// MicrophoneClose indicates the conversation is over.
	MicrophoneClose MicrophoneMode = "close_microphone"
)

// AssistResponse is one inbound event of a turn. Any combination of fields
// may be present; the client applies them in arrival order.
type AssistResponse struct {
	EventType     EventType       `json:"event_type,omitempty"`
	SpeechResults []SpeechResult  `json:"speech_results,omitempty"`
	AudioOut      *AudioOut       `json:"audio_out,omitempty"`
	DialogState   *DialogStateOut `json:"dialog_state_out,omitempty"`
	ScreenOut     *ScreenOut      `json:"screen_out,omitempty"`
	DeviceAction  *DeviceAction   `json:"device_action,omitempty"`
}

// SpeechResult is one fragment of the user's transcribed speech.
type SpeechResult struct {
	Transcript string  `json:"transcript"`
	Stability  float64 `json:"stability,omitempty"`
}

// AudioOut carries a chunk of synthesized assistant audio.
type AudioOut struct {
	AudioData []byte `json:"audio_data"` // raw PCM16, base64 on the wire
}

// DialogStateOut carries per-turn dialog directives from the service.
type DialogStateOut struct {
	SupplementalDisplayText string         `json:"supplemental_display_text,omitempty"`
	ConversationState       []byte         `json:"conversation_state,omitempty"`
	MicrophoneMode          MicrophoneMode `json:"microphone_mode,omitempty"`
	VolumePercentage        int            `json:"volume_percentage,omitempty"`
}

// ScreenOut carries rich visual output (HTML) for display-capable devices.
type ScreenOut struct {
	Format string `json:"format,omitempty"` // "html"
	Data   []byte `json:"data,omitempty"`
}

// DeviceAction carries a device command request. Execution is left to the
// embedding application; the client only surfaces it.
type DeviceAction struct {
	DeviceRequestJSON []byte `json:"device_request_json,omitempty"`
}

// Status is the payload of an error message.
type Status struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Failure status codes carried by error messages.
const (
	// StatusUnavailable is the transient failure class: the service could
	// not be reached or asked the client to retry. It is the only
	// retryable status.
	StatusUnavailable = "UNAVAILABLE"

	// StatusInternal covers every other stream failure.
	StatusInternal = "INTERNAL"

	// StatusDeadlineExceeded marks a turn aborted by its deadline.
	StatusDeadlineExceeded = "DEADLINE_EXCEEDED"
)

// EncodingLinear16 is the only audio encoding the protocol carries:
// uncompressed little-endian PCM16.
const EncodingLinear16 = "LINEAR16"

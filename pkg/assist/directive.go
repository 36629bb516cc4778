package assist

import (
	"github.com/voxmill/go-assist/pkg/wire"
)

// DirectiveKind tags one decoded dialog directive.
type DirectiveKind int

const (
	// DirectiveEndOfUtterance marks the service heard the full user request.
	DirectiveEndOfUtterance DirectiveKind = iota

	// DirectiveTranscript carries a fragment of the user's transcribed speech.
	DirectiveTranscript

	// DirectiveAudio carries a chunk of synthesized assistant audio.
	DirectiveAudio

	// DirectiveState carries a new opaque conversation-state blob.
	DirectiveState

	// DirectiveVolume carries a playback volume percentage.
	DirectiveVolume

	// DirectiveMicMode carries the post-turn microphone mode.
	DirectiveMicMode

	// DirectiveDisplayText carries supplemental display text.
	DirectiveDisplayText

	// DirectiveScreenData carries rich screen output.
	DirectiveScreenData

	// DirectiveDeviceAction carries a device command request.
	DirectiveDeviceAction
)

// String returns a human-readable directive kind.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveEndOfUtterance:
		return "end_of_utterance"
	case DirectiveTranscript:
		return "transcript"
	case DirectiveAudio:
		return "audio"
	case DirectiveState:
		return "state"
	case DirectiveVolume:
		return "volume"
	case DirectiveMicMode:
		return "mic_mode"
	case DirectiveDisplayText:
		return "display_text"
	case DirectiveScreenData:
		return "screen_data"
	case DirectiveDeviceAction:
		return "device_action"
	default:
		return "unknown"
	}
}

// Directive is one decoded dialog directive. Exactly the fields implied by
// Kind are set. Directives from a single response are ordered; the driver
// folds them left to right so the last value of each kind wins within a turn.
type Directive struct {
	Kind DirectiveKind

	// Text is set for DirectiveTranscript and DirectiveDisplayText.
	Text string

	// Bytes is set for DirectiveAudio, DirectiveState and DirectiveScreenData.
	Bytes []byte

	// Volume is set for DirectiveVolume.
	Volume int

	// MicMode is set for DirectiveMicMode.
	MicMode wire.MicrophoneMode

	// Action is set for DirectiveDeviceAction.
	Action *wire.DeviceAction
}

// Directives decodes one inbound event into its ordered directive list.
// Empty fields produce no directive, so a response with nothing actionable
// decodes to an empty slice.
func Directives(resp *wire.AssistResponse) []Directive {
	if resp == nil {
		return nil
	}

	var out []Directive

	if resp.EventType == wire.EventEndOfUtterance {
		out = append(out, Directive{Kind: DirectiveEndOfUtterance})
	}

	for _, sr := range resp.SpeechResults {
		if sr.Transcript != "" {
			out = append(out, Directive{Kind: DirectiveTranscript, Text: sr.Transcript})
		}
	}

	if resp.AudioOut != nil && len(resp.AudioOut.AudioData) > 0 {
		out = append(out, Directive{Kind: DirectiveAudio, Bytes: resp.AudioOut.AudioData})
	}

	if ds := resp.DialogState; ds != nil {
		if ds.SupplementalDisplayText != "" {
			out = append(out, Directive{Kind: DirectiveDisplayText, Text: ds.SupplementalDisplayText})
		}
		if len(ds.ConversationState) > 0 {
			out = append(out, Directive{Kind: DirectiveState, Bytes: ds.ConversationState})
		}
		// A zero volume is indistinguishable from "no update" on the wire, so
		// zero never produces a directive. Explicit mute is not expressible.
		if ds.VolumePercentage != 0 {
			out = append(out, Directive{Kind: DirectiveVolume, Volume: ds.VolumePercentage})
		}
		if ds.MicrophoneMode == wire.MicrophoneFollowOn || ds.MicrophoneMode == wire.MicrophoneClose {
			out = append(out, Directive{Kind: DirectiveMicMode, MicMode: ds.MicrophoneMode})
		}
	}

	if resp.ScreenOut != nil && len(resp.ScreenOut.Data) > 0 {
		out = append(out, Directive{Kind: DirectiveScreenData, Bytes: resp.ScreenOut.Data})
	}

	if resp.DeviceAction != nil && len(resp.DeviceAction.DeviceRequestJSON) > 0 {
		out = append(out, Directive{Kind: DirectiveDeviceAction, Action: resp.DeviceAction})
	}

	return out
}

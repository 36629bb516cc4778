// Package assist drives multi-turn conversations with a cloud assistant
// service over a bidirectional streaming channel.
//
// A Session owns the conversation continuity state for its lifetime: the
// opaque state blob the service returns each turn and echoes back the next,
// plus the new-conversation flag that is true only for the very first
// request of the session. One voice turn streams captured audio out while
// consuming the service's events (transcripts, synthesized audio, dialog
// directives) and reports whether the service expects a follow-on utterance.
//
// # Usage
//
//	session, err := assist.NewSession(channel, stream, assist.Config{
//	    LanguageCode:  "en-US",
//	    DeviceID:      deviceID,
//	    DeviceModelID: "voxmill-assist-client",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    waitForTrigger()
//	    for {
//	        outcome, err := session.Assist(ctx)
//	        if err != nil {
//	            log.Error("turn failed", "error", err)
//	            break
//	        }
//	        if !outcome.Continue {
//	            break
//	        }
//	    }
//	}
//
// Session.Assist wraps RunTurn with a bounded retry on the transient
// transport-unavailable condition; every other failure surfaces unchanged.
// For scripted interaction, TextTurn runs a degraded turn carrying a text
// query instead of audio and collects the textual response.
//
// The collaborators are narrow interfaces: Channel opens one Stream per
// turn, and AudioTransport is the duplex capture/playback device owned by
// the caller. Package wschannel provides the production Channel; package
// audio provides the production AudioTransport.
package assist

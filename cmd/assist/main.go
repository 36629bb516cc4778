// Command assist is a push-to-talk voice client for the assistant service.
// Press Enter to start a turn; the client records until the service detects
// the end of the utterance, plays the spoken response, and keeps listening
// when the service expects a follow-on query.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxmill/go-assist/internal/config"
	"github.com/voxmill/go-assist/internal/log"
	"github.com/voxmill/go-assist/pkg/assist"
	"github.com/voxmill/go-assist/pkg/audio"
	"github.com/voxmill/go-assist/pkg/auth"
	"github.com/voxmill/go-assist/pkg/wschannel"
)

func main() {
	deviceID := flag.String("device-id", "", "registered device instance ID (required)")
	audioDevice := flag.String("audio-device", "", "ALSA device name, e.g. plughw:1,0")
	once := flag.Bool("once", false, "exit after a single conversation")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log.Init(*verbose)

	if *deviceID == "" {
		fmt.Fprintln(os.Stderr, "usage: assist --device-id <id> [--audio-device <name>] [--once] [-v]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tokens, err := auth.LoadCredentials(ctx, cfg.CredentialsPath)
	if err != nil {
		log.Error("failed to load credentials", "error", err, "path", cfg.CredentialsPath)
		os.Exit(1)
	}

	channel, err := wschannel.New(cfg.Endpoint, tokens, log.L())
	if err != nil {
		log.Error("failed to create channel", "error", err)
		os.Exit(1)
	}

	audioCfg := audio.DefaultConfig()
	audioCfg.SampleRate = cfg.SampleRate
	audioCfg.Device = *audioDevice

	stream, err := audio.NewStream(
		audio.NewCommandSource(audioCfg, log.L()),
		audio.NewCommandSink(audioCfg, log.L()),
		audioCfg, log.L())
	if err != nil {
		log.Error("failed to open audio stream", "error", err)
		os.Exit(1)
	}
	defer stream.Close()

	session, err := assist.NewSession(channel, stream, assist.Config{
		LanguageCode:  cfg.LanguageCode,
		DeviceID:      *deviceID,
		DeviceModelID: cfg.DeviceModelID,
		Display:       cfg.Display,
		Deadline:      cfg.TurnDeadline,
	}, log.L())
	if err != nil {
		log.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	log.Info("assistant ready", "endpoint", cfg.Endpoint, "device_id", *deviceID)

	stdin := bufio.NewReader(os.Stdin)
	for {
		fmt.Println("Press Enter to send a new request...")
		if _, err := stdin.ReadString('\n'); err != nil {
			break
		}

		for {
			outcome, err := session.Assist(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info("shutting down")
					return
				}
				log.Error("turn failed", "error", err)
				break
			}
			if !outcome.Continue {
				break
			}
		}

		if *once {
			break
		}
	}

	m := session.Metrics()
	log.Info("session finished",
		"turns", m.TurnsCompleted,
		"retries", m.Retries,
		"audio_sent_bytes", m.AudioBytesSent,
		"audio_received_bytes", m.AudioBytesReceived)
}

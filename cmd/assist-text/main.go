// Command assist-text is a text-only client for the assistant service. Each
// line typed at the prompt runs one text turn and prints the assistant's
// textual answer; conversation state carries across turns.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/voxmill/go-assist/internal/config"
	"github.com/voxmill/go-assist/internal/log"
	"github.com/voxmill/go-assist/pkg/assist"
	"github.com/voxmill/go-assist/pkg/auth"
	"github.com/voxmill/go-assist/pkg/wschannel"
)

func main() {
	deviceID := flag.String("device-id", "", "registered device instance ID (required)")
	htmlOut := flag.String("html-out", "", "write rich screen output to this file")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log.Init(*verbose)

	if *deviceID == "" {
		fmt.Fprintln(os.Stderr, "usage: assist-text --device-id <id> [--html-out <file>] [-v]")
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

	sessionCfg := assist.Config{
		LanguageCode:  cfg.LanguageCode,
		DeviceID:      *deviceID,
		DeviceModelID: cfg.DeviceModelID,
		Display:       cfg.Display || *htmlOut != "",
		Deadline:      cfg.TurnDeadline,
	}
	session, err := assist.NewSession(channel, nil, sessionCfg, log.L())
	if err != nil {
		log.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			break
		}
		query := strings.TrimSpace(stdin.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		result, err := session.TextTurn(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("turn failed", "error", err)
			continue
		}

		if result.DisplayText != "" {
			fmt.Printf("< %s\n", result.DisplayText)
		}
		if *htmlOut != "" && len(result.ScreenData) > 0 {
			if err := os.WriteFile(*htmlOut, result.ScreenData, 0o644); err != nil {
				log.Error("failed to write screen output", "error", err, "path", *htmlOut)
			}
		}
	}
}

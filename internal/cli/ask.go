// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/normalize"
	"github.com/mathchat/mathchat-tui/internal/session"
	"github.com/mathchat/mathchat-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	errorStyle   = lipgloss.NewStyle().Foreground(styles.Rose)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	infoStyle    = lipgloss.NewStyle().Foreground(styles.TextSecondary)
	promptStyle  = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// AskOptions configures a one-shot question.
type AskOptions struct {
	WebSearch bool
	Quiet     bool
}

// Ask sends a single question, streams the reply, and exits.
//
// On a TTY the reply is collected, normalized, and rendered as markdown.
// When stdout is piped, normalized text is printed without styling so the
// output is script-safe.
func Ask(cfg *config.Config, question string, opts AskOptions) error {
	question = strings.TrimSpace(question)

	// No question on the command line: accept piped input.
	if question == "" && !IsStdinTTY() {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err == nil {
			question = strings.TrimSpace(string(data))
		}
	}
	if question == "" {
		return fmt.Errorf("no question provided. Usage: mathchat ask \"your question\"")
	}

	client := newClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := cancelOnInterrupt(cancel)
	defer stopSignals()

	req := api.StreamRequest{
		SessionID: session.NewSessionID(),
		Message:   question,
		WebSearch: opts.WebSearch,
	}

	tty := IsStdoutTTY()
	if tty && !opts.Quiet {
		fmt.Fprintln(os.Stderr, infoStyle.Render("thinking..."))
	}

	// On a TTY the reply is held back and rendered once as markdown; piped
	// output streams each frame verbatim so `mathchat ask | tee` sees
	// progress.
	var accumulated strings.Builder
	err := client.Stream(ctx, req, func(frame string) {
		accumulated.WriteString(frame)
		if !tty {
			fmt.Print(frame)
		}
	})

	if !tty {
		fmt.Println()
	}

	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, warningStyle.Render("[Cancelled]"))
			printReply(cfg, accumulated.String(), tty)
			return nil
		}
		printReply(cfg, accumulated.String(), tty)
		return fmt.Errorf("stream failed: %w", err)
	}

	printReply(cfg, accumulated.String(), tty)
	return nil
}

// printReply renders the normalized reply on a TTY. Piped output already
// streamed the raw frames, so there is nothing left to print.
func printReply(cfg *config.Config, raw string, tty bool) {
	if !tty || raw == "" {
		return
	}
	text := normalize.Normalize(raw)
	renderer := newMarkdownRenderer(cfg.UI.GlamourStyle)
	fmt.Print(renderMarkdown(renderer, text))
}

// newClient builds an API client from the configuration.
func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Server.URL).
		WithMaxRetries(cfg.Server.MaxRetries).
		WithRateLimit(cfg.Server.RequestsPerSecond)
}

// cancelOnInterrupt cancels the context on SIGINT/SIGTERM. The returned
// function stops signal delivery.
func cancelOnInterrupt(cancel context.CancelFunc) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigChan {
			cancel()
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(sigChan)
	}
}

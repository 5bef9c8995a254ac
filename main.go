// mathchat TUI - a terminal client for the mathchat streaming backend.
//
// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/cli"
	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/session"
	"github.com/mathchat/mathchat-tui/internal/ui/chat"
	"github.com/mathchat/mathchat-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cmd := ""
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "", "tui":
		runTUI()
	case "ask":
		runAsk(args)
	case "chat":
		runChat()
	case "version", "--version", "-v":
		fmt.Printf("mathchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: mathchat [command]

Commands:
  (none)    launch the full-screen TUI
  ask       ask one question and exit: mathchat ask [-web] "question"
  chat      line-oriented REPL for plain terminals
  version   print version information

Configuration lives in ~/.mathchat/config.toml; MATHCHAT_* environment
variables override it.
`)
}

// loadConfig loads the configuration, falling back to defaults with a
// warning rather than refusing to start.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		cfg = config.Default()
	}
	return cfg
}

// =============================================================================
// TUI
// =============================================================================

func runTUI() {
	cfg := loadConfig()

	if cfg.Debug.LogFile != "" {
		f, err := tea.LogToFile(cfg.Debug.LogFile, "mathchat")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not open debug log: %v\n", err)
		} else {
			defer f.Close()
		}
	}

	client := api.NewClient(cfg.Server.URL).
		WithMaxRetries(cfg.Server.MaxRetries).
		WithRateLimit(cfg.Server.RequestsPerSecond)

	theme := styles.NewTheme(cfg.UI.Theme)
	m := chat.New(cfg, client, session.NewManager(client), theme)

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Hot-reload the config file while the TUI runs. Watcher failure is
	// not fatal; editing the config just requires a restart.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, werr := config.NewWatcher(path); werr == nil {
			defer watcher.Close()
			go func() {
				for updated := range watcher.Updates() {
					p.Send(chat.ConfigReloadedMsg{Config: updated})
				}
			}()
			if werr := watcher.Watch(); werr != nil {
				fmt.Fprintf(os.Stderr, "Warning: config watch disabled: %v\n", werr)
			}
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running mathchat: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// CLI COMMANDS
// =============================================================================

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	web := fs.Bool("web", false, "route the question through web search")
	quiet := fs.Bool("quiet", false, "suppress progress output")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: mathchat ask [-web] [-quiet] \"question\"")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	question := strings.Join(fs.Args(), " ")
	opts := cli.AskOptions{WebSearch: *web, Quiet: *quiet}
	if err := cli.Ask(loadConfig(), question, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runChat() {
	if err := cli.Repl(loadConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/model"
	"github.com/mathchat/mathchat-tui/internal/normalize"
	"github.com/mathchat/mathchat-tui/internal/session"
	"github.com/mathchat/mathchat-tui/internal/util"
)

// =============================================================================
// LINE EDITOR
// =============================================================================

// historyFileName lives under the config directory next to config.toml.
const historyFileName = "chat_history"

// lineEditor wraps liner with history persistence.
type lineEditor struct {
	state       *liner.State
	historyPath string
}

func newLineEditor() *lineEditor {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	ed := &lineEditor{state: state}
	if dir, err := config.ConfigDir(); err == nil {
		ed.historyPath = filepath.Join(dir, historyFileName)
		ed.loadHistory()
	}
	return ed
}

func (ed *lineEditor) loadHistory() {
	if ed.historyPath == "" {
		return
	}
	f, err := os.Open(ed.historyPath)
	if err != nil {
		return
	}
	defer f.Close()
	ed.state.ReadHistory(f)
}

// saveHistory writes the history file with user-only permissions, since
// past questions may contain sensitive material.
func (ed *lineEditor) saveHistory() {
	if ed.historyPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(ed.historyPath), 0755); err != nil {
		return
	}
	var buf strings.Builder
	if _, err := ed.state.WriteHistory(&buf); err != nil {
		return
	}
	_ = util.AtomicWriteFile(ed.historyPath, []byte(buf.String()), 0600)
}

func (ed *lineEditor) close() {
	ed.saveHistory()
	ed.state.Close()
}

// =============================================================================
// REPL
// =============================================================================

// repl holds the state of one interactive line-oriented chat.
type repl struct {
	cfg      *config.Config
	client   *api.Client
	sessions *session.Manager
	conv     *model.Conversation
	editor   *lineEditor
	web      bool
}

// Repl runs the line-oriented chat loop until the user quits.
func Repl(cfg *config.Config) error {
	client := newClient(cfg)
	sessions := session.NewManager(client)

	r := &repl{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		conv:     model.NewConversation(sessions.Current()),
		editor:   newLineEditor(),
	}
	defer r.editor.close()

	fmt.Println(promptStyle.Render("Mathchat") + infoStyle.Render("  /help for commands, /quit to exit"))
	fmt.Println(infoStyle.Render("session " + util.TruncateRunes(r.sessions.Current(), 8)))
	fmt.Println()

	return r.loop()
}

func (r *repl) loop() error {
	for {
		line, err := r.editor.state.Prompt("> ")
		if err != nil {
			// Ctrl+C at the prompt or EOF both end the session cleanly.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println(infoStyle.Render("bye"))
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.editor.state.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			quit, err := r.dispatch(line)
			if err != nil {
				fmt.Println(errorStyle.Render("[!] " + err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.ask(line); err != nil {
			fmt.Println(errorStyle.Render("[!] " + err.Error()))
		}
	}
}

// =============================================================================
// QUESTION FLOW
// =============================================================================

// ask streams one exchange. Frames print live; the normalized reply is
// re-rendered as markdown once the stream finishes.
func (r *repl) ask(question string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := cancelOnInterrupt(cancel)
	defer stopSignals()

	r.conv.AddUserMessage(question, r.web)
	asst := r.conv.AddAssistantMessage()

	req := api.StreamRequest{
		SessionID: r.sessions.Current(),
		Message:   question,
		WebSearch: r.web,
	}

	fmt.Println()
	err := r.client.Stream(ctx, req, func(frame string) {
		asst.AppendFrame(frame)
		fmt.Print(frame)
	})
	fmt.Println()

	if err != nil {
		if ctx.Err() != nil {
			// The partial text stays in the transcript, marked.
			if asst.IsEmpty() {
				r.conv.RemoveLastIfEmptyAssistant()
			} else {
				asst.SetRendered(normalize.Normalize(asst.Raw()) + "\n\n[Generation cancelled]")
				asst.FinalizeStream(nil)
			}
			fmt.Println(warningStyle.Render("[Cancelled]"))
			return nil
		}
		r.conv.RemoveLastIfEmptyAssistant()
		return fmt.Errorf("stream failed: %w", err)
	}

	asst.SetRendered(normalize.Normalize(asst.Raw()))
	asst.FinalizeStream(nil)

	// Replace the raw live output with the cleaned, rendered reply.
	if IsStdoutTTY() {
		fmt.Println()
		renderer := newMarkdownRenderer(r.cfg.UI.GlamourStyle)
		fmt.Print(renderMarkdown(renderer, asst.Content))
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// dispatch handles a /command line. It returns true when the REPL should
// exit.
func (r *repl) dispatch(line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help", "/h":
		r.printHelp()
	case "/quit", "/q", "/exit":
		return true, nil
	case "/new":
		id := r.sessions.StartNew()
		r.conv = model.NewConversation(id)
		fmt.Println(infoStyle.Render("new session " + util.TruncateRunes(id, 8)))
	case "/web":
		r.web = !r.web
		if r.web {
			fmt.Println(infoStyle.Render("web search on"))
		} else {
			fmt.Println(infoStyle.Render("web search off"))
		}
	case "/sessions", "/ls":
		return false, r.listSessions()
	case "/open":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /open <session-id>")
		}
		return false, r.openSession(args[0])
	case "/delete", "/rm":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /delete <session-id>")
		}
		return false, r.deleteSession(args[0])
	case "/export":
		return false, exportConversation(r.cfg, r.conv)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (r *repl) printHelp() {
	help := []struct{ cmd, desc string }{
		{"/sessions", "list sessions on the server"},
		{"/open <id>", "load a past session (prefixes match)"},
		{"/delete <id>", "delete a session"},
		{"/new", "start a fresh session"},
		{"/web", "toggle web search for new questions"},
		{"/export", "export this conversation as markdown"},
		{"/quit", "exit"},
	}
	for _, h := range help {
		fmt.Printf("  %-14s %s\n", h.cmd, h.desc)
	}
}

func (r *repl) listSessions() error {
	ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
	defer cancel()
	if err := r.sessions.Refresh(ctx); err != nil {
		return err
	}
	list := r.sessions.Sessions()
	if len(list) == 0 {
		fmt.Println(infoStyle.Render("no sessions on the server"))
		return nil
	}
	for _, s := range list {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %s  %-40s %d msgs\n",
			util.TruncateRunes(s.ID, 8), util.TruncateWidth(title, 40), s.MessageCount)
	}
	return nil
}

func (r *repl) openSession(idArg string) error {
	id, err := r.resolveSessionID(idArg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
	defer cancel()
	conv, err := r.sessions.Load(ctx, id)
	if err != nil {
		return err
	}
	r.conv = conv

	renderer := newMarkdownRenderer(r.cfg.UI.GlamourStyle)
	fmt.Println(infoStyle.Render("-- " + conv.GetTitle() + " --"))
	for _, msg := range conv.Messages {
		switch msg.Role {
		case model.RoleUser:
			fmt.Println(promptStyle.Render("> ") + msg.Content)
		case model.RoleAssistant:
			if IsStdoutTTY() {
				fmt.Print(renderMarkdown(renderer, msg.Content))
			} else {
				fmt.Println(msg.Content)
			}
		case model.RoleError:
			fmt.Println(errorStyle.Render("[!] " + msg.Content))
		}
	}
	return nil
}

func (r *repl) deleteSession(idArg string) error {
	id, err := r.resolveSessionID(idArg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
	defer cancel()
	if err := r.sessions.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Println(infoStyle.Render("deleted " + util.TruncateRunes(id, 8)))
	if r.conv.SessionID == id {
		r.conv = model.NewConversation(r.sessions.Current())
	}
	return nil
}

// resolveSessionID expands a unique ID prefix against the cached session
// list, refreshing the cache when nothing matches.
func (r *repl) resolveSessionID(arg string) (string, error) {
	match := func() (string, int) {
		found, count := "", 0
		for _, s := range r.sessions.Sessions() {
			if strings.HasPrefix(s.ID, arg) {
				found = s.ID
				count++
			}
		}
		return found, count
	}

	id, count := match()
	if count == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
		defer cancel()
		if err := r.sessions.Refresh(ctx); err != nil {
			return "", err
		}
		id, count = match()
	}
	switch count {
	case 0:
		return "", fmt.Errorf("no session matches %q", arg)
	case 1:
		return id, nil
	default:
		return "", fmt.Errorf("%d sessions match %q, be more specific", count, arg)
	}
}

// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mathchat/mathchat-tui/internal/api"
	"github.com/mathchat/mathchat-tui/internal/config"
	"github.com/mathchat/mathchat-tui/internal/export"
	"github.com/mathchat/mathchat-tui/internal/model"
	"github.com/mathchat/mathchat-tui/internal/normalize"
	"github.com/mathchat/mathchat-tui/internal/session"
	"github.com/mathchat/mathchat-tui/internal/ui/components"
	"github.com/mathchat/mathchat-tui/internal/ui/styles"
)

// CancelledMarker is appended to a reply that was cancelled after frames
// had already arrived, so the transcript records that the text is partial.
const CancelledMarker = "[Generation cancelled]"

// noticeDuration is how long transient status bar notices stay visible.
const noticeDuration = 4 * time.Second

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	phase Phase
	theme *styles.Theme
	cfg   *config.Config

	client   *api.Client
	sessions *session.Manager

	conversation *model.Conversation

	// Active stream state. streamID names the assistant message the stream
	// fills; events carrying any other ID are stale and dropped.
	streamID  string
	stats     *model.Statistics
	frames    <-chan string
	errs      <-chan error
	cancelMgr *cancelManager

	// UI components
	viewport    viewport.Model
	input       textinput.Model
	spinner     components.Spinner
	statusBar   *components.StatusBar
	sessionList *components.SessionList
	welcome     components.Welcome

	showSessions bool
	webSearch    bool

	keyMap KeyMap
	width  int
	height int
	ready  bool
}

// New creates the chat model.
func New(cfg *config.Config, client *api.Client, sessions *session.Manager, theme *styles.Theme) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a math question..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	welcome := components.NewWelcome(theme)
	welcome.SetServerURL(cfg.Server.URL)

	m := &Model{
		phase:        PhaseIdle,
		theme:        theme,
		cfg:          cfg,
		client:       client,
		sessions:     sessions,
		conversation: model.NewConversation(sessions.Current()),
		cancelMgr:    newCancelManager(),
		viewport:     vp,
		input:        ti,
		spinner:      components.NewSpinner(theme),
		statusBar:    components.NewStatusBar(theme),
		sessionList:  components.NewSessionList(theme),
		welcome:      welcome,
		keyMap:       DefaultKeyMap(),
	}
	m.statusBar.SessionID = sessions.Current()
	return m
}

// Phase returns the state of the current exchange.
func (m *Model) Phase() Phase {
	return m.phase
}

// Conversation returns the transcript being displayed.
func (m *Model) Conversation() *model.Conversation {
	return m.conversation
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamOpenedMsg:
		if msg.MessageID != m.streamID {
			return m, nil
		}
		m.frames = msg.Frames
		m.errs = msg.Errs
		return m, waitForStreamCmd(msg.MessageID, msg.Frames, msg.Errs)

	case StreamFrameMsg:
		return m.handleFrame(msg)

	case StreamCompleteMsg:
		return m.handleComplete(msg)

	case StreamErrorMsg:
		return m.handleStreamError(msg)

	case SessionsLoadedMsg:
		if msg.Err != nil {
			return m, m.notify("session list failed: " + msg.Err.Error())
		}
		m.sessionList.SetSessions(msg.Sessions)
		m.showSessions = true
		return m, nil

	case SessionOpenedMsg:
		return m.handleSessionOpened(msg)

	case SessionDeletedMsg:
		if msg.Err != nil {
			return m, m.notify("delete failed: " + msg.Err.Error())
		}
		m.sessionList.SetSessions(m.sessions.Sessions())
		return m, m.notify("session deleted")

	case ExportDoneMsg:
		if msg.Err != nil {
			return m, m.notify("export failed: " + msg.Err.Error())
		}
		return m, m.notify("exported to " + msg.Path)

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		return m, m.notify("configuration reloaded")

	case noticeExpiredMsg:
		m.statusBar.ClearNotice()
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// resize propagates new terminal dimensions.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	m.viewport.Width = width
	m.viewport.Height = height - chromeHeight
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.input.Width = width - 6
	m.statusBar.SetWidth(width)
	m.sessionList.SetWidth(width - 8)
	m.welcome.SetSize(width, height-chromeHeight)
	m.refreshViewport()
}

// handleKey dispatches keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		m.cancelMgr.cancel()
		return m, tea.Quit
	}

	if m.showSessions {
		return m.handleSessionListKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		if m.phase.Busy() {
			m.cancelMgr.cancel()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit(strings.TrimSpace(m.input.Value()))

	case key.Matches(msg, m.keyMap.Sessions):
		return m, m.loadSessionsCmd()

	case key.Matches(msg, m.keyMap.WebSearch):
		m.webSearch = !m.webSearch
		m.statusBar.WebSearch = m.webSearch
		return m, nil

	case key.Matches(msg, m.keyMap.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keyMap.NewSession):
		return m.startNewSession()

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSessionListKey handles keys while the session browser is open.
func (m *Model) handleSessionListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Cancel), key.Matches(msg, m.keyMap.Sessions):
		m.showSessions = false
		return m, nil

	case key.Matches(msg, m.keyMap.Up):
		m.sessionList.MoveUp()
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		m.sessionList.MoveDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		if sel := m.sessionList.Selected(); sel != nil {
			return m, m.openSessionCmd(sel.ID)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Delete):
		if sel := m.sessionList.Selected(); sel != nil {
			return m, m.deleteSessionCmd(sel.ID)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Refresh):
		return m, m.loadSessionsCmd()
	}
	return m, nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// submit dispatches the typed question. An active stream is cancelled and
// settled first; only one exchange runs at a time.
func (m *Model) submit(text string) (tea.Model, tea.Cmd) {
	if text == "" {
		return m, nil
	}

	if m.phase.Busy() {
		m.cancelMgr.cancel()
		m.settleCancelled()
	}

	m.conversation.AddUserMessage(text, m.webSearch)
	asst := m.conversation.AddAssistantMessage()
	m.streamID = asst.ID
	m.stats = model.NewStatistics()
	m.phase = PhaseSending
	m.input.Reset()
	m.statusBar.SetStatus(components.StatusSending)
	m.statusBar.StatsLine = ""
	m.refreshViewport()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	req := api.StreamRequest{
		SessionID: m.sessions.Current(),
		Message:   text,
		WebSearch: m.webSearch,
	}

	return m, tea.Batch(
		openStreamCmd(ctx, m.client, req, asst.ID),
		m.spinner.Start(),
	)
}

// =============================================================================
// STREAM EVENT HANDLERS
// =============================================================================

// handleFrame appends one frame and re-normalizes the accumulated reply.
func (m *Model) handleFrame(msg StreamFrameMsg) (tea.Model, tea.Cmd) {
	if msg.MessageID != m.streamID {
		return m, nil
	}

	asst := m.conversation.GetLastAssistantMessage()
	if asst == nil || asst.ID != msg.MessageID {
		return m, nil
	}

	if m.phase == PhaseSending {
		m.phase = PhaseStreaming
		m.spinner.Stop()
		m.statusBar.SetStatus(components.StatusStreaming)
	}
	m.stats.RecordFrame()

	// STREAMING: the full buffer is re-normalized on every frame. The
	// normalizer is idempotent, so text that was already clean is stable
	// and spans split across frame boundaries heal once their tail arrives.
	asst.AppendFrame(msg.Frame)
	asst.SetRendered(normalize.Normalize(asst.Raw()))
	m.refreshViewport()

	return m, waitForStreamCmd(msg.MessageID, m.frames, m.errs)
}

// handleComplete settles a cleanly finished exchange.
func (m *Model) handleComplete(msg StreamCompleteMsg) (tea.Model, tea.Cmd) {
	if msg.MessageID != m.streamID {
		return m, nil
	}

	asst := m.conversation.GetLastAssistantMessage()
	m.stats.Finalize()
	if asst != nil && asst.ID == msg.MessageID {
		asst.SetRendered(normalize.Normalize(asst.Raw()))
		asst.FinalizeStream(m.stats)
		if m.cfg.UI.ShowStats {
			m.statusBar.StatsLine = m.stats.Format()
		}
	}

	m.endExchange(PhaseCompleted, components.StatusReady)
	return m, nil
}

// handleStreamError settles a cancelled or failed exchange.
func (m *Model) handleStreamError(msg StreamErrorMsg) (tea.Model, tea.Cmd) {
	if msg.MessageID != m.streamID {
		return m, nil
	}

	if errors.Is(msg.Err, context.Canceled) {
		m.settleCancelled()
		return m, nil
	}

	// Failed: keep whatever partial text arrived, then record the failure
	// as an error message in the transcript.
	asst := m.conversation.GetLastAssistantMessage()
	if asst != nil && asst.ID == msg.MessageID {
		if asst.IsEmpty() {
			m.conversation.RemoveLastIfEmptyAssistant()
		} else {
			asst.SetRendered(normalize.Normalize(asst.Raw()))
			asst.FinalizeStream(nil)
		}
	}
	m.conversation.AddErrorMessage(friendlyError(msg.Err))

	m.endExchange(PhaseFailed, components.StatusError)
	return m, nil
}

// settleCancelled resolves the active exchange as cancelled. A reply with
// partial text keeps it, marked; an empty placeholder disappears.
func (m *Model) settleCancelled() {
	asst := m.conversation.GetLastAssistantMessage()
	if asst != nil && asst.ID == m.streamID && asst.IsStreaming {
		if asst.IsEmpty() {
			m.conversation.RemoveLastIfEmptyAssistant()
		} else {
			asst.SetRendered(normalize.Normalize(asst.Raw()) + "\n\n" + CancelledMarker)
			asst.FinalizeStream(nil)
		}
	}
	m.endExchange(PhaseCancelled, components.StatusCancelled)
}

// endExchange clears per-stream state and enters a terminal phase.
func (m *Model) endExchange(phase Phase, status components.Status) {
	m.phase = phase
	m.streamID = ""
	m.frames = nil
	m.errs = nil
	m.spinner.Stop()
	m.cancelMgr.cancel()
	m.statusBar.SetStatus(status)
	m.refreshViewport()
}

// =============================================================================
// SESSION BROWSER
// =============================================================================

// loadSessionsCmd refreshes the session list from the backend.
func (m *Model) loadSessionsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
		defer cancel()
		if err := m.sessions.Refresh(ctx); err != nil {
			return SessionsLoadedMsg{Err: err}
		}
		return SessionsLoadedMsg{Sessions: m.sessions.Sessions()}
	}
}

// openSessionCmd loads a stored session into the view.
func (m *Model) openSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
		defer cancel()
		conv, err := m.sessions.Load(ctx, id)
		return SessionOpenedMsg{Conversation: conv, Err: err}
	}
}

// deleteSessionCmd removes a stored session.
func (m *Model) deleteSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
		defer cancel()
		return SessionDeletedMsg{ID: id, Err: m.sessions.Delete(ctx, id)}
	}
}

// handleSessionOpened swaps the loaded conversation in.
func (m *Model) handleSessionOpened(msg SessionOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		// A vanished session is a notice, not a failure: refresh the list.
		if errors.Is(msg.Err, api.ErrSessionNotFound) {
			return m, tea.Batch(m.notify("session no longer exists"), m.loadSessionsCmd())
		}
		return m, m.notify("open failed: " + msg.Err.Error())
	}

	if m.phase.Busy() {
		m.cancelMgr.cancel()
		m.settleCancelled()
	}
	m.conversation = msg.Conversation
	m.statusBar.SessionID = m.sessions.Current()
	m.showSessions = false
	m.phase = PhaseIdle
	m.statusBar.SetStatus(components.StatusReady)
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}

// startNewSession rotates to a fresh backend session.
func (m *Model) startNewSession() (tea.Model, tea.Cmd) {
	if m.phase.Busy() {
		m.cancelMgr.cancel()
		m.settleCancelled()
	}
	id := m.sessions.StartNew()
	m.conversation = model.NewConversation(id)
	m.statusBar.SessionID = id
	m.statusBar.StatsLine = ""
	m.phase = PhaseIdle
	m.statusBar.SetStatus(components.StatusReady)
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// EXPORT / NOTICES
// =============================================================================

// exportCmd writes the current transcript to the export directory.
func (m *Model) exportCmd() tea.Cmd {
	conv := m.conversation
	cfg := m.cfg
	return func() tea.Msg {
		if conv.IsEmpty() {
			return ExportDoneMsg{Err: fmt.Errorf("nothing to export")}
		}
		dir, err := cfg.ExportDir()
		if err != nil {
			return ExportDoneMsg{Err: err}
		}
		opts := export.DefaultOptions()
		opts.OutputDir = dir
		opts.IncludeStats = cfg.UI.ShowStats
		path, err := export.ExportMarkdown(conv, opts)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// notify shows a transient notice in the status bar.
func (m *Model) notify(text string) tea.Cmd {
	m.statusBar.SetNotice(text)
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{}
	})
}

// friendlyError maps transport errors to user-facing text.
func friendlyError(err error) string {
	var rateErr *api.RateLimitError
	switch {
	case errors.Is(err, api.ErrSessionNotFound):
		return "The backend no longer knows this session. Start a new one with ctrl+n."
	case errors.As(err, &rateErr):
		return "The backend is rate limiting requests. Wait a moment and try again."
	case errors.Is(err, api.ErrRateLimited):
		return "The backend is rate limiting requests. Wait a moment and try again."
	default:
		return "The reply could not be completed: " + err.Error()
	}
}

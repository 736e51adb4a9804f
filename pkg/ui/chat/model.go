package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vnchat/pkg/bus"
	"vnchat/pkg/message"
	"vnchat/pkg/session"
	"vnchat/pkg/syncengine"
)

// SceneInfo is the boundary decoration fetched once at startup: backdrop,
// sprite, and display names. Purely cosmetic, never re-derived.
type SceneInfo struct {
	Background string
	Sprite     string
	UserName   string
	BotName    string
	Theme      string
}

type syncMsg struct {
	event bus.Event
	ok    bool
}

type model struct {
	ctx    context.Context
	engine *syncengine.Engine
	events <-chan bus.Event

	theme    theme
	scene    SceneInfo
	spinner  spinner.Model
	input    textinput.Model
	viewport viewport.Model

	snapshot      session.Snapshot
	width         int
	height        int
	isReady       bool
	followLog     bool
	pushConnected bool
	lastSendErr   string
}

func newModel(ctx context.Context, engine *syncengine.Engine, events <-chan bus.Event, scene SceneInfo) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Say something..."
	in.Focus()
	in.CharLimit = 0

	vp := viewport.New(80, 12)

	return &model{
		ctx:       ctx,
		engine:    engine,
		events:    events,
		theme:     defaultTheme(),
		scene:     scene,
		spinner:   spin,
		input:     in,
		viewport:  vp,
		snapshot:  engine.Snapshot(),
		width:     100,
		height:    28,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, waitSyncCmd(m.events))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case syncMsg:
		if !typed.ok {
			return m, nil
		}
		m.applySyncEvent(typed.event)
		return m, waitSyncCmd(m.events)
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+n":
			m.cycleSession()
			return m, nil
		case "ctrl+t":
			m.createSession()
			return m, nil
		case "ctrl+x":
			m.deleteSession()
			return m, nil
		}

		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if isExitCommand(text) {
				return m, tea.Quit
			}

			m.lastSendErr = ""
			m.engine.SendText(m.ctx, text)
			m.input.SetValue("")
			m.snapshot = m.engine.Snapshot()
			m.followLog = true
			m.refreshViewport(true)
			return m, nil
		}
	}

	m.input, cmd = m.input.Update(msg)

	if typed, ok := msg.(spinner.TickMsg); ok {
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	return m, cmd
}

// applySyncEvent folds one engine notification into view state. Message
// payloads never travel on events; the snapshot is re-read instead.
func (m *model) applySyncEvent(event bus.Event) {
	switch event.Type {
	case bus.EventMessagesUpdated, bus.EventSessionLive:
		m.snapshot = m.engine.Snapshot()
		m.refreshViewport(false)
	case bus.EventSessionSwitched:
		m.snapshot = m.engine.Snapshot()
		m.lastSendErr = ""
		m.followLog = true
		m.refreshViewport(true)
	case bus.EventSendFailed:
		m.lastSendErr = event.Error
	case bus.EventPushState:
		m.pushConnected = event.Payload["state"] == "connected"
	}
}

func (m *model) cycleSession() {
	sessions := m.engine.Sessions()
	if len(sessions) < 2 {
		return
	}

	active := m.snapshot.ActiveID
	for i, info := range sessions {
		if info.ID == active {
			next := sessions[(i+1)%len(sessions)].ID
			_ = m.engine.SwitchSession(m.ctx, next)
			m.snapshot = m.engine.Snapshot()
			m.refreshViewport(true)
			return
		}
	}
}

func (m *model) createSession() {
	id := fmt.Sprintf("chat-%d", len(m.engine.Sessions())+1)
	if err := m.engine.CreateSession(id, id); err != nil {
		return
	}
	_ = m.engine.SwitchSession(m.ctx, id)
	m.snapshot = m.engine.Snapshot()
	m.refreshViewport(true)
}

func (m *model) deleteSession() {
	_ = m.engine.DeleteSession(m.ctx, m.snapshot.ActiveID)
	m.snapshot = m.engine.Snapshot()
	m.refreshViewport(true)
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}

	header := m.theme.header.Width(m.width - 2).Render("🎭 vnchat")
	meta := m.theme.headerMeta.Render(m.metaLine())
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("─", max(8, m.width-2)))

	status := m.theme.status.Render("💬 Enter send · Ctrl+N next session · Ctrl+T new · Ctrl+X delete · Ctrl+C quit")
	if m.engine.State(m.snapshot.ActiveID) == syncengine.StateLoading {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s loading conversation...", m.spinner.View()))
	}
	if m.lastSendErr != "" {
		status = m.theme.statusErr.Render("🚨 send failed - message shown locally only")
	}

	parts := []string{
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width - 2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("🗨  "+displayOrDefault(m.scene.UserName, "You")) + " " + m.theme.hint.Render("(type /exit or :q)"),
		m.theme.input.Width(m.width - 2).Render(m.input.View()),
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) metaLine() string {
	link := "polling"
	if m.pushConnected {
		link = "live"
	}

	return fmt.Sprintf(
		"session:%s · state:%s · link:%s · scene:%s/%s · bot:%s",
		m.snapshot.ActiveID,
		string(m.engine.State(m.snapshot.ActiveID)),
		link,
		displayOrDefault(lastPathSegment(m.scene.Background), "none"),
		displayOrDefault(lastPathSegment(m.scene.Sprite), "none"),
		displayOrDefault(m.scene.BotName, "bot"),
	)
}

func (m *model) resizeComponents() {
	w := m.width - 6
	if w < 50 {
		w = 50
	}
	h := m.height - 9
	if h < 8 {
		h = 8
	}

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	var sections []string
	for _, item := range m.snapshot.Messages {
		sections = append(sections, m.renderMessage(item))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if previousOffset > maxOffset {
		previousOffset = maxOffset
	}
	m.viewport.SetYOffset(previousOffset)
}

func (m *model) renderMessage(msg message.Message) string {
	body := messageBody(msg, m.theme)

	if msg.Origin == message.OriginSelf {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.selfTitle.Render("「 "+displayOrDefault(m.scene.UserName, "You")+" 」"),
			m.theme.selfBox.Width(m.viewport.Width).Render(body),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.botTitle.Render("「 "+displayOrDefault(m.scene.BotName, "bot")+" 」"),
		m.theme.botBox.Width(m.viewport.Width).Render(body),
	)
}

// messageBody renders a message payload: text as-is, images as a size tag
// since a byte blob has no terminal representation.
func messageBody(msg message.Message, th theme) string {
	if msg.Kind == message.KindImage {
		return th.imageTag.Render(fmt.Sprintf("[image · %s]", formatByteSize(len(msg.Image))))
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return " "
	}

	return text
}

func formatByteSize(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%dB", n)
	}

	return fmt.Sprintf("%.1fKB", float64(n)/1024)
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func waitSyncCmd(events <-chan bus.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		return syncMsg{event: event, ok: ok}
	}
}

func displayOrDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	return trimmed
}

func lastPathSegment(value string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(value), "/")
	if trimmed == "" {
		return ""
	}

	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}

	return trimmed
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}

func max(a int, b int) int {
	if a > b {
		return a
	}

	return b
}

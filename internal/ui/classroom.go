package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/room"
	"github.com/BioHazard786/liveclass/internal/session"
)

// Controller is the part of a session the classroom shell drives.
type Controller interface {
	Snapshots() <-chan session.Snapshot
	ToggleMic() error
	ToggleCamera() error
	ToggleScreenShare(ctx context.Context) error
	ToggleRaiseHand() error
	SendChat(text string) error
	MuteAll() error
	Pin(peerID string) error
	TogglePin(peerID string) error
	ForceMute(peerID string) error
}

const transcriptLines = 8

type snapshotMsg session.Snapshot

type actionDoneMsg struct{ err error }

type droppedMsg struct{}

// ClassroomModel renders participant tiles, the chat transcript and the
// media controls from session snapshots.
type ClassroomModel struct {
	ctx     context.Context
	ctrl    Controller
	dropped <-chan struct{}

	snap     session.Snapshot
	ready    bool
	input    textinput.Model
	spinner  spinner.Model
	chatting bool
	selected int
	status   string
	width    int
	err      error
	quitting bool
}

// NewClassroomModel builds the shell. dropped, if not nil, closes when the
// relay connection is lost.
func NewClassroomModel(ctx context.Context, ctrl Controller, dropped <-chan struct{}) *ClassroomModel {
	in := textinput.New()
	in.Placeholder = "Say something to the class"
	in.CharLimit = 500
	in.Prompt = IconChat + " "

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &ClassroomModel{
		ctx:     ctx,
		ctrl:    ctrl,
		dropped: dropped,
		input:   in,
		spinner: s,
		width:   80,
	}
}

// Err reports why the shell ended on its own, if it did.
func (m *ClassroomModel) Err() error {
	return m.err
}

func (m *ClassroomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitSnapshot(), m.waitDropped())
}

func (m *ClassroomModel) waitSnapshot() tea.Cmd {
	ch := m.ctrl.Snapshots()
	return func() tea.Msg {
		select {
		case snap := <-ch:
			return snapshotMsg(snap)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *ClassroomModel) waitDropped() tea.Cmd {
	if m.dropped == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-m.dropped:
			return droppedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func act(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn()}
	}
}

func (m *ClassroomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		m.ready = true
		m.selected = min(m.selected, max(len(m.snap.Participants)-1, 0))
		return m, m.waitSnapshot()

	case actionDoneMsg:
		m.status = ""
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		return m, nil

	case droppedMsg:
		m.err = classroom.WrapError("classroom", classroom.ErrSignaling, "lost connection to the relay")
		m.quitting = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.chatting {
			return m.updateChat(msg)
		}
		return m.updateControls(msg)
	}
	return m, nil
}

func (m *ClassroomModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		return m, act(func() error { return m.ctrl.SendChat(text) })
	case tea.KeyEsc:
		m.chatting = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ClassroomModel) updateControls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "m":
		return m, act(m.ctrl.ToggleMic)
	case "v":
		return m, act(m.ctrl.ToggleCamera)
	case "s":
		return m, act(func() error { return m.ctrl.ToggleScreenShare(m.ctx) })
	case "h":
		return m, act(m.ctrl.ToggleRaiseHand)
	case "a":
		return m, act(m.ctrl.MuteAll)
	case "up", "k", "left":
		m.selected = max(m.selected-1, 0)
	case "down", "j", "right":
		m.selected = min(m.selected+1, max(len(m.snap.Participants)-1, 0))
	case "p":
		if id, ok := m.selectedID(); ok {
			return m, act(func() error { return m.ctrl.TogglePin(id) })
		}
	case "P":
		if id, ok := m.selectedID(); ok {
			return m, act(func() error { return m.ctrl.Pin(id) })
		}
	case "x":
		if !m.snap.Self.Role.IsHost() {
			break
		}
		if id, ok := m.selectedID(); ok {
			return m, act(func() error { return m.ctrl.ForceMute(id) })
		}
	case "c", "enter", "tab":
		m.chatting = true
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *ClassroomModel) selectedID() (string, bool) {
	if m.selected < 0 || m.selected >= len(m.snap.Participants) {
		return "", false
	}
	return m.snap.Participants[m.selected].ID, true
}

func (m *ClassroomModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return fmt.Sprintf("\n%s Joining classroom...\n", m.spinner.View())
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.tiles())
	b.WriteString("\n\n")
	b.WriteString(m.transcript())
	b.WriteString("\n")

	if m.chatting {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(MutedStyle.Render("press c to chat"))
	}
	if m.status != "" {
		b.WriteString("\n" + ErrorStyle.Render(IconError+" "+m.status))
	}
	if m.snap.LastError != "" && m.snap.Media.ReceiveOnly {
		b.WriteString("\n" + WarningStyle.Render(IconWarning+" receive-only: "+m.snap.LastError))
	}
	b.WriteString("\n" + FooterStyle.Render(m.help()))
	return b.String()
}

func (m *ClassroomModel) header() string {
	self := m.snap.Self
	title := fmt.Sprintf("%s %s  %s %d", IconRoom, m.snap.RoomID, IconPeer, len(m.snap.Participants)+1)
	line := HeaderStyle.Render(title)
	if self.Role.IsHost() {
		line = lipgloss.JoinHorizontal(lipgloss.Top, line, " ", TeacherBadgeStyle.Render("host"))
	}
	return line + "\n" + m.mediaStatus()
}

func (m *ClassroomModel) mediaStatus() string {
	st := m.snap.Media
	mic, cam := IconMic+" on", IconCamera+" on"
	if !st.MicEnabled {
		mic = IconMicOff + " muted"
	}
	if !st.CameraEnabled {
		cam = IconCamOff + " off"
	}
	parts := []string{mic, cam}
	if st.ScreenSharing {
		parts = append(parts, StatusStyle.Render(IconScreen+" sharing"))
	}
	if m.snap.HandRaised {
		parts = append(parts, IconHand+" hand raised")
	}
	return strings.Join(parts, "  ")
}

func (m *ClassroomModel) tiles() string {
	tiles := []string{SelfTileStyle.Render(m.tile(room.Participant{
		ID:         m.snap.Self.ID,
		Name:       m.snap.Self.Name + " (you)",
		Role:       m.snap.Self.Role,
		HandRaised: m.snap.HandRaised,
	}, "", false))}

	for i, p := range m.snap.Participants {
		state := "waiting"
		if s, ok := m.snap.Connections[p.ID]; ok {
			state = s.String()
		}
		style := TileStyle
		if p.Pinned {
			style = PinnedTileStyle
		}
		tiles = append(tiles, style.Render(m.tile(p, state, i == m.selected)))
	}

	perRow := max(m.width/(TileStyle.GetWidth()+2), 1)
	var rows []string
	for start := 0; start < len(tiles); start += perRow {
		end := min(start+perRow, len(tiles))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles[start:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *ClassroomModel) tile(p room.Participant, state string, selected bool) string {
	name := p.Name
	if name == "" {
		name = truncateString(p.ID, 8)
	}
	marker := "  "
	if selected {
		marker = "▶ "
	}

	line := marker + BoldStyle.Render(truncateString(name, 16))
	if p.Role.IsHost() {
		line += " " + IconTeacher
	}
	var flags []string
	if p.Pinned {
		flags = append(flags, IconPin)
	}
	if p.HandRaised {
		flags = append(flags, IconHand)
	}
	if state != "" {
		flags = append(flags, MutedStyle.Render(state))
	}
	return line + "\n  " + strings.Join(flags, " ")
}

func (m *ClassroomModel) transcript() string {
	msgs := m.snap.Transcript
	if len(msgs) == 0 {
		return MutedStyle.Render(IconChat + " no messages yet")
	}
	if len(msgs) > transcriptLines {
		msgs = msgs[len(msgs)-transcriptLines:]
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		stamp := MutedStyle.Render(msg.Time.Local().Format("15:04"))
		if msg.User == m.snap.Self.Name {
			lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, stamp, " ", OwnBubbleStyle.Render(msg.Text)))
			continue
		}
		author := ChatAuthorStyle.Render(msg.User)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, stamp, " ", author, " ", BubbleStyle.Render(msg.Text)))
	}
	return strings.Join(lines, "\n")
}

func (m *ClassroomModel) help() string {
	if m.chatting {
		return "enter send • esc back • ctrl+c leave"
	}
	keys := "m mic • v camera • s screen • h hand • p pin • c chat • q leave"
	if m.snap.Self.Role.IsHost() {
		keys += " • a mute all • x mute selected • P spotlight"
	}
	return keys
}

// RunClassroom shows the shell until the participant quits, ctx ends or the
// relay drops.
func RunClassroom(ctx context.Context, ctrl Controller, dropped <-chan struct{}) error {
	model := NewClassroomModel(ctx, ctrl, dropped)
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("classroom UI: %w", err)
	}
	if fm, ok := final.(*ClassroomModel); ok {
		return fm.Err()
	}
	return nil
}

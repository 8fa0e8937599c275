package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/BioHazard786/liveclass/internal/session"
)

// SummaryView renders the end-of-class table.
func SummaryView(title string, sum session.Summary) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", sum.RoomID},
		{"Role", string(sum.Role)},
		{"Duration", formatDuration(sum.Duration)},
		{"Peers Seen", sum.PeersSeen},
		{"Connections Dropped", sum.PeersDropped},
		{"Chat Messages", sum.Messages},
		{"Screen Shares", sum.ScreenShares},
		{"Muted By Host", sum.ForceMuted},
	})
	return t.Render()
}

func RenderSummary(sum session.Summary) {
	fmt.Println()
	fmt.Println(SummaryView("📊 Class Summary", sum))
}

// RoomInfo announces a freshly created room.
type RoomInfo struct {
	RoomID   string
	JoinHint string
}

func NewRoomInfo(roomID, joinHint string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		JoinHint: joinHint,
	}
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s\n%s Join:     %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.JoinHint),
	)

	return boxStyle.Render(content)
}

func formatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 1 {
		return "<1s"
	}
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	if seconds < 3600 {
		mins := int(seconds) / 60
		secs := int(seconds) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(seconds) / 3600
	mins := (int(seconds) % 3600) / 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}

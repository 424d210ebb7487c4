// Package tui renders watch mode: a full-screen view that repaints the
// cluster summary and node table whenever the monitor loop delivers a new
// snapshot.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"sdetails/internal/monitor"
	"sdetails/internal/render"
	"sdetails/internal/slurm"
)

type Options struct {
	Source    string
	NoColor   bool
	NoSummary bool
	Partition string
	SortKey   slurm.SortKey
	Threshold float64
	Refresh   time.Duration
	Updates   <-chan monitor.Update
}

type Model struct {
	source    string
	noSummary bool
	partition string
	sortKey   slurm.SortKey
	refresh   time.Duration
	updates   <-chan monitor.Update
	renderer  *render.Renderer

	width  int
	height int
	now    time.Time

	state       monitor.State
	lastError   string
	lastSuccess time.Time
	nextRetry   time.Time
	snapshot    *slurm.Snapshot

	styles styles
}

type styles struct {
	title    lipgloss.Style
	dim      lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	chipOK   lipgloss.Style
	chipWarn lipgloss.Style
	chipBad  lipgloss.Style
	errLabel lipgloss.Style
}

type updateMsg struct {
	update monitor.Update
}

type tickMsg struct {
	now time.Time
}

type channelClosedMsg struct{}

func NewModel(opts Options) Model {
	return Model{
		source:    opts.Source,
		noSummary: opts.NoSummary,
		partition: opts.Partition,
		sortKey:   opts.SortKey,
		refresh:   opts.Refresh,
		updates:   opts.Updates,
		renderer:  render.New(opts.NoColor, opts.Threshold),
		now:       time.Now(),
		state:     monitor.StateReconnecting,
		styles:    defaultStyles(opts.NoColor),
	}
}

func defaultStyles(noColor bool) styles {
	if noColor {
		bold := lipgloss.NewStyle().Bold(true)
		return styles{
			title:    bold,
			dim:      lipgloss.NewStyle(),
			label:    bold,
			value:    bold,
			chipOK:   bold,
			chipWarn: bold,
			chipBad:  bold,
			errLabel: bold,
		}
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")).Padding(0, 1),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("109")),
		value:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		chipOK:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("28")).Padding(0, 1),
		chipWarn: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("232")).Background(lipgloss.Color("220")).Padding(0, 1),
		chipBad:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Padding(0, 1),
		errLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(ch <-chan monitor.Update) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return updateMsg{update: update}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(1*time.Second, func(t time.Time) tea.Msg {
		return tickMsg{now: t}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s":
			m.sortKey = nextSortKey(m.sortKey)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case updateMsg:
		m.state = msg.update.State
		m.lastError = msg.update.LastError
		m.lastSuccess = msg.update.LastSuccess
		m.nextRetry = msg.update.NextRetry
		if msg.update.Snapshot != nil {
			snap := *msg.update.Snapshot
			m.snapshot = &snap
			m.lastError = ""
		}
		return m, waitForUpdate(m.updates)
	case tickMsg:
		m.now = msg.now
		return m, tickCmd()
	case channelClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func nextSortKey(key slurm.SortKey) slurm.SortKey {
	for i, k := range slurm.SortKeys {
		if k == key {
			return slurm.SortKeys[(i+1)%len(slurm.SortKeys)]
		}
	}
	return slurm.SortByNodeName
}

func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "initializing..."
	}

	now := m.now
	if now.IsZero() {
		now = time.Now()
	}

	header := m.renderHeader(now)
	footer := m.styles.dim.Render(fmt.Sprintf("q to quit · s to cycle sort (%s) · refresh %s", m.sortKey, m.refresh))

	var body string
	if m.snapshot == nil {
		body = "waiting for first successful snapshot..."
	} else {
		body = m.renderBody()
	}

	joined := lipgloss.JoinVertical(lipgloss.Left, header, "", body)
	return clipToViewport(pinFooterToBottom(joined, footer, m.height), m.width, m.height)
}

func (m Model) renderHeader(now time.Time) string {
	ageText := "refresh: never"
	if !m.lastSuccess.IsZero() {
		ageText = "refresh: " + humanDuration(now.Sub(m.lastSuccess)) + " ago"
	}
	left := m.styles.title.Render(" SDETAILS ") + "  " +
		m.styles.label.Render("source: ") + m.styles.value.Render(m.source) + "  " +
		m.styles.dim.Render(now.Format("2006-01-02 15:04:05")) + "  " +
		m.styles.dim.Render(ageText)

	line1 := joinWithPaddingKeepRight(left, m.statusChip(now), m.width)
	if m.lastError == "" {
		return line1
	}
	line2 := truncateCells(m.styles.errLabel.Render("error: "+m.lastError), m.width)
	return line1 + "\n" + line2
}

func (m Model) statusChip(now time.Time) string {
	switch m.state {
	case monitor.StateConnected:
		return m.styles.chipOK.Render("connected")
	case monitor.StateDisconnectedRecovering:
		return m.styles.chipBad.Render("disconnected, recovering" + retrySuffix(m.nextRetry, now))
	default:
		return m.styles.chipWarn.Render("reconnecting" + retrySuffix(m.nextRetry, now))
	}
}

func retrySuffix(nextRetry, now time.Time) string {
	if nextRetry.IsZero() || !nextRetry.After(now) {
		return ""
	}
	return fmt.Sprintf(" (retry in %s)", humanDuration(nextRetry.Sub(now)))
}

func (m Model) renderBody() string {
	snap := *m.snapshot
	rows := slurm.FilterRows(slurm.BuildRows(snap), m.partition)
	slurm.SortRows(rows, m.sortKey)

	parts := make([]string, 0, 2)
	if !m.noSummary {
		parts = append(parts, m.renderer.Summary(slurm.Summarize(snap)))
	}
	if m.partition != "" && len(rows) == 0 {
		parts = append(parts, fmt.Sprintf("Partition %q not found", m.partition))
	} else {
		parts = append(parts, m.renderer.Table(rows))
	}
	return strings.Join(parts, "\n")
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return "<1s"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncateCells(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return ansi.Truncate(s, maxWidth, "…")
}

func joinWithPaddingKeepRight(left, right string, width int) string {
	if width <= 0 {
		return ""
	}
	rightWidth := lipgloss.Width(right)
	if rightWidth >= width {
		return truncateCells(right, width)
	}
	maxLeftWidth := width - rightWidth - 1
	if maxLeftWidth < 0 {
		maxLeftWidth = 0
	}
	left = truncateCells(left, maxLeftWidth)
	padding := width - lipgloss.Width(left) - rightWidth
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

func clipToViewport(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
		if len(lines) > 0 {
			lines[len(lines)-1] = truncateCells("... output clipped to terminal height ...", width)
		}
	}
	for i := range lines {
		lines[i] = truncateCells(lines[i], width)
	}
	return strings.Join(lines, "\n")
}

func pinFooterToBottom(top, footer string, height int) string {
	if height <= 0 {
		return ""
	}
	footerLines := strings.Split(footer, "\n")
	topLines := []string{}
	if top != "" {
		topLines = strings.Split(top, "\n")
	}

	maxTopLines := height - len(footerLines)
	if maxTopLines < 0 {
		maxTopLines = 0
	}
	if len(topLines) > maxTopLines {
		topLines = topLines[:maxTopLines]
	}
	for len(topLines) < maxTopLines {
		topLines = append(topLines, "")
	}
	return strings.Join(append(topLines, footerLines...), "\n")
}

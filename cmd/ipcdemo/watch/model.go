// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
	"github.com/bureau-foundation/ipcdemo/lib/inbox"
	"github.com/bureau-foundation/ipcdemo/lib/tui"
)

// refreshInterval re-renders the header countdown and tab activity
// while nothing else is happening.
const refreshInterval = time.Second

// CodeSource is the current secure code and its remaining lifetime.
// *securecode.Generator satisfies it.
type CodeSource interface {
	Code() (string, error)
	Remaining() time.Duration
}

// Options configures a Model.
type Options struct {
	// Address is shown in the header.
	Address string

	Codes CodeSource
	Clock clock.Clock
	Theme tui.Theme
	Keys  KeyMap
}

type boardChangedMsg struct{}

type tickMsg time.Time

// Model is the bubbletea model of the subscriber.
type Model struct {
	board   *inbox.Board
	address string
	codes   CodeSource
	clock   clock.Clock
	theme   tui.Theme
	keys    KeyMap

	tabs     []inbox.Tab
	selected int
	newest   map[string]string
	glows    *tui.GlowTracker
	viewport viewport.Model

	status      string
	statusLevel slog.Level

	width  int
	height int
	ready  bool
}

// NewModel returns a model over board.
func NewModel(board *inbox.Board, options Options) Model {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Theme == (tui.Theme{}) {
		options.Theme = tui.DefaultTheme
	}
	if options.Keys.Quit.Keys() == nil {
		options.Keys = DefaultKeyMap
	}
	model := Model{
		board:    board,
		address:  options.Address,
		codes:    options.Codes,
		clock:    options.Clock,
		theme:    options.Theme,
		keys:     options.Keys,
		newest:   make(map[string]string),
		glows:    tui.NewGlowTracker(),
		viewport: viewport.New(0, 0),
	}
	model.refresh()
	return model
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(model.board.Changes()), tick(refreshInterval))
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return boardChangedMsg{}
	}
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(at time.Time) tea.Msg { return tickMsg(at) })
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit
		case key.Matches(message, model.keys.NextTab):
			model.selectTab(model.selected + 1)
		case key.Matches(message, model.keys.PreviousTab):
			model.selectTab(model.selected - 1)
		case key.Matches(message, model.keys.CloseTab):
			if model.selected < len(model.tabs) {
				model.board.CloseTab(model.tabs[model.selected].Name)
				model.refresh()
			}
		case key.Matches(message, model.keys.Up):
			model.viewport.LineUp(1)
		case key.Matches(message, model.keys.Down):
			model.viewport.LineDown(1)
		case key.Matches(message, model.keys.PageUp):
			model.viewport.HalfViewUp()
		case key.Matches(message, model.keys.PageDown):
			model.viewport.HalfViewDown()
		case key.Matches(message, model.keys.Home):
			model.viewport.GotoTop()
		case key.Matches(message, model.keys.End):
			model.viewport.GotoBottom()
		}

	case boardChangedMsg:
		model.refresh()
		return model, waitForChange(model.board.Changes())

	case tickMsg:
		model.refresh()
		interval := refreshInterval
		if model.glows.Active(model.clock.Now()) {
			interval = tui.GlowTickInterval
		}
		return model, tick(interval)

	case logRecordMsg:
		model.status = message.Summary
		model.statusLevel = message.Level
		summary := message.Summary
		return model, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
			return logRecordFadeMsg{summary: summary}
		})

	case logRecordFadeMsg:
		// A newer record keeps its own full delay.
		if model.status == message.summary {
			model.status = ""
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.resize()
	}
	return model, nil
}

// selectTab moves the selection, wrapping at either end.
func (model *Model) selectTab(index int) {
	if len(model.tabs) == 0 {
		return
	}
	index %= len(model.tabs)
	if index < 0 {
		index += len(model.tabs)
	}
	if index != model.selected {
		model.selected = index
		model.renderEntries()
		model.viewport.GotoTop()
	}
}

// refresh reloads the tabs from the board, keeping the selected tab by
// name and lighting tabs whose newest entry changed.
func (model *Model) refresh() {
	selectedName := ""
	if model.selected < len(model.tabs) {
		selectedName = model.tabs[model.selected].Name
	}
	now := model.clock.Now()

	model.tabs = model.board.Tabs()
	live := make(map[string]bool, len(model.tabs))
	model.selected = min(model.selected, max(0, len(model.tabs)-1))
	for index, tab := range model.tabs {
		live[tab.Name] = true
		if tab.Name == selectedName {
			model.selected = index
		}
		if len(tab.Entries) == 0 {
			continue
		}
		top := tab.Entries[0].ID
		if model.newest[tab.Name] != top {
			model.newest[tab.Name] = top
			kind := tui.GlowAccepted
			if tab.Kind == inbox.KindRejected {
				kind = tui.GlowRejected
			}
			model.glows.Light(tab.Name, kind, now)
		}
	}
	for name := range model.newest {
		if !live[name] {
			delete(model.newest, name)
		}
	}
	model.renderEntries()
}

func (model *Model) resize() {
	// Header, tab bar, and status line take one row each.
	model.viewport.Width = max(0, model.width-2)
	model.viewport.Height = max(0, model.height-3)
	model.renderEntries()
}

func (model *Model) renderEntries() {
	if model.selected >= len(model.tabs) {
		model.viewport.SetContent("")
		return
	}
	tab := model.tabs[model.selected]
	width := model.viewport.Width
	lines := make([]string, 0, len(tab.Entries))
	for _, entry := range tab.Entries {
		line := model.formatEntry(tab.Kind, entry)
		if width > 0 {
			line = ansi.Wrap(line, width, " ")
		}
		lines = append(lines, line)
	}
	model.viewport.SetContent(strings.Join(lines, "\n"))
}

func (model *Model) formatEntry(kind inbox.TabKind, entry inbox.Entry) string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	normal := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	stamp := faint.Render(entry.ReceivedAt.Local().Format("15:04:05"))

	switch kind {
	case inbox.KindConnections:
		return fmt.Sprintf("%s %s %s", stamp, normal.Render(entry.Endpoint), faint.Render(entry.Payload))
	case inbox.KindRejected:
		reason := lipgloss.NewStyle().Foreground(model.theme.RejectedTab).Render(entry.Reason)
		who := entry.Endpoint
		if entry.Sender != "" {
			who = entry.Sender + " @ " + entry.Endpoint
		}
		return fmt.Sprintf("%s %s %s", stamp, normal.Render(who), reason)
	default:
		return fmt.Sprintf("%s %s %s %s", stamp,
			faint.Render(fmt.Sprintf("#%d [%s]", entry.Number, entry.Type)),
			normal.Render(entry.Payload),
			faint.Render("sent "+entry.SentAt))
	}
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "starting..."
	}
	now := model.clock.Now()

	header := model.renderHeader()
	tabBar := tui.RenderTabBar(model.theme, model.tabs, model.selected, model.glows, now, model.width)
	scrollbar := tui.RenderScrollbar(model.theme, model.viewport.Height,
		model.viewport.TotalLineCount(), model.viewport.Height, model.viewport.YOffset)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(model.viewport.Width).Height(model.viewport.Height).Render(model.viewport.View()),
		" ",
		scrollbar,
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, tabBar, body, model.renderStatus())
}

func (model Model) renderHeader() string {
	style := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	parts := []string{"ipcdemo"}
	if model.address != "" {
		parts = append(parts, "listening on "+model.address)
	}
	if model.codes != nil {
		code, err := model.codes.Code()
		if err != nil {
			parts = append(parts, "no code: "+err.Error())
		} else {
			remaining := model.codes.Remaining().Truncate(time.Second)
			countdown := fmt.Sprintf("code %s, %s left", code, remaining)
			if remaining < time.Minute {
				countdown = lipgloss.NewStyle().Foreground(model.theme.ExpiringCode).Render(countdown)
			}
			parts = append(parts, countdown)
		}
	}
	parts = append(parts, fmt.Sprintf("received %d", model.board.Received()))
	return ansi.Truncate(style.Render(strings.Join(parts, " · ")), max(model.width, 1), "…")
}

func (model Model) renderStatus() string {
	if model.status != "" {
		color := model.theme.NormalText
		if model.statusLevel >= slog.LevelError {
			color = model.theme.RejectedTab
		} else if model.statusLevel >= slog.LevelWarn {
			color = model.theme.ActiveBadge
		}
		return ansi.Truncate(lipgloss.NewStyle().Foreground(color).Render(model.status), max(model.width, 1), "…")
	}
	var help []string
	for _, binding := range model.keys.helpBindings() {
		help = append(help, binding.Help().Key+" "+binding.Help().Desc)
	}
	return ansi.Truncate(lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(strings.Join(help, "  ")), max(model.width, 1), "…")
}

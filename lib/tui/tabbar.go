// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/ipcdemo/lib/inbox"
)

// TabLabel returns the plain text of a tab's label: its name, entry
// count, and activity score when non-zero.
func TabLabel(tab inbox.Tab) string {
	label := fmt.Sprintf("%s (%d)", tab.Name, len(tab.Entries))
	if tab.Activity > 0 {
		label += fmt.Sprintf(" +%d", tab.Activity)
	}
	return label
}

// RenderTabBar draws the tab labels on one line of at most width
// cells. The selected tab is highlighted and tabs that glow get a
// tinted background. Labels past the width are cut with an ellipsis.
func RenderTabBar(theme Theme, tabs []inbox.Tab, selected int, glows *GlowTracker, now time.Time, width int) string {
	if len(tabs) == 0 {
		return lipgloss.NewStyle().Foreground(theme.FaintText).Render("waiting for messages")
	}
	parts := make([]string, 0, len(tabs))
	for index, tab := range tabs {
		style := lipgloss.NewStyle().Padding(0, 1).Foreground(theme.TabColor(tab.Kind))
		switch {
		case index == selected:
			style = style.Bold(true).
				Foreground(theme.SelectedForeground).
				Background(theme.SelectedBackground)
		case glows != nil && glows.Intensity(tab.Name, now) > 0:
			tint := theme.GlowAccepted
			if glows.Kind(tab.Name) == GlowRejected {
				tint = theme.GlowRejected
			}
			style = style.Background(tint)
		}
		parts = append(parts, style.Render(TabLabel(tab)))
	}
	bar := strings.Join(parts, lipgloss.NewStyle().Foreground(theme.BorderColor).Render("│"))
	if width > 0 && ansi.StringWidth(bar) > width {
		bar = ansi.Truncate(bar, width, "…")
	}
	return bar
}

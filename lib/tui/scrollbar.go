// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderScrollbar draws a one-column scrollbar height rows tall for a
// view showing visible of total lines starting at offset. When
// everything fits the thumb fills the track.
func RenderScrollbar(theme Theme, height, total, visible, offset int) string {
	if height <= 0 {
		return ""
	}
	track := lipgloss.NewStyle().Foreground(theme.BorderColor).Render("│")
	thumb := lipgloss.NewStyle().Foreground(theme.ActiveBadge).Render("┃")

	thumbSize, thumbOffset := height, 0
	if total > visible && total > 0 {
		thumbSize = max(1, height*visible/total)
		if scrollable, room := total-visible, height-thumbSize; room > 0 {
			thumbOffset = min(max(0, offset)*room/scrollable, room)
		}
	}

	lines := make([]string, height)
	for index := range lines {
		if index >= thumbOffset && index < thumbOffset+thumbSize {
			lines[index] = thumb
		} else {
			lines[index] = track
		}
	}
	return strings.Join(lines, "\n")
}

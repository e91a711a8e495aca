// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/ipcdemo/lib/inbox"
)

// Theme is the color palette of the terminal subscriber. All colors
// are ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected tab.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Tab label colors by kind.
	SenderTab      lipgloss.Color
	RejectedTab    lipgloss.Color
	ConnectionsTab lipgloss.Color

	// Activity badge on a tab label.
	ActiveBadge lipgloss.Color

	// Countdown in the header once the code has less than a minute
	// left.
	ExpiringCode lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Background tint of a tab that just received an entry.
	GlowAccepted lipgloss.Color
	GlowRejected lipgloss.Color
}

// TabColor returns the label color for a tab kind.
func (theme Theme) TabColor(kind inbox.TabKind) lipgloss.Color {
	switch kind {
	case inbox.KindRejected:
		return theme.RejectedTab
	case inbox.KindConnections:
		return theme.ConnectionsTab
	default:
		return theme.SenderTab
	}
}

// DefaultTheme targets 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	SenderTab:      lipgloss.Color("114"), // green
	RejectedTab:    lipgloss.Color("196"), // red
	ConnectionsTab: lipgloss.Color("75"),  // blue

	ActiveBadge:  lipgloss.Color("220"), // amber
	ExpiringCode: lipgloss.Color("208"), // orange

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	GlowAccepted: lipgloss.Color("58"), // dark amber
	GlowRejected: lipgloss.Color("52"), // dark red
}

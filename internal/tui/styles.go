package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// PrimaryColor is the main theme color (clover green).
	PrimaryColor = lipgloss.Color("#5FB87A")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666")
	// StatusColor highlights action feedback.
	StatusColor = lipgloss.Color("#FFE66D")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	subtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(StatusColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)
)

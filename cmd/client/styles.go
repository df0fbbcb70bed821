package main

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette; lipgloss degrades to plain text when NO_COLOR is set or
// output is not a terminal.
var (
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	bold      = lipgloss.NewStyle().Bold(true)

	titleStyle   = cyan.Bold(true)
	helpStyle    = gray
	errorStyle   = red
	currentStyle = lightGray
)

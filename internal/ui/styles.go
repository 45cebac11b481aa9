package ui

import "github.com/charmbracelet/lipgloss"

var (
	StatusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Italic(true)
	SenderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ReceiverStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	SystemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	TimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Faint(true)
	PromptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	SelectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	PeersBoxStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	InfoBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

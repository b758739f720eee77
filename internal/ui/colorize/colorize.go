// Package colorize styles CLI output.
package colorize

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#569CD6")).Bold(true)
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC800"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B4B4B4"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF80C0"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF80C0"))
)

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("TOTH_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Header formats header text in blue
func Header(s string) string {
	if IsDisabled() {
		return s
	}
	return headerStyle.Render(s)
}

// Name formats a library or routine name in yellow
func Name(s string) string {
	if IsDisabled() {
		return s
	}
	return nameStyle.Render(s)
}

// Detail formats detail text in light gray
func Detail(s string) string {
	if IsDisabled() {
		return s
	}
	return detailStyle.Render(s)
}

// Border formats border characters in dark gray
func Border(s string) string {
	if IsDisabled() {
		return s
	}
	return borderStyle.Render(s)
}

// Error formats error messages in pink
func Error(s string) string {
	if IsDisabled() {
		return s
	}
	return errorStyle.Render(s)
}

// Value formats values in pink/magenta
func Value(s string) string {
	if IsDisabled() {
		return s
	}
	return valueStyle.Render(s)
}

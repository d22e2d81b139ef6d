// Package colors provides terminal styling for hvcs output.
//
// Styles are lipgloss styles rendered against a single renderer. Color is
// disabled when NO_COLOR is set, when stdout is not a terminal, or when the
// caller turns it off (color.ui=false).
package colors

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	mu       sync.RWMutex
	renderer = lipgloss.NewRenderer(os.Stdout)
	enabled  = shouldUseColor()
)

// shouldUseColor determines if the terminal supports colors
func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return renderer.ColorProfile() != termenv.Ascii
}

// SetColorEnabled allows manual control of color output
func SetColorEnabled(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
	if on {
		renderer.SetColorProfile(termenv.ANSI256)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}
}

// IsColorEnabled returns whether colors are currently enabled
func IsColorEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func style(fg string) lipgloss.Style {
	return renderer.NewStyle().Foreground(lipgloss.Color(fg))
}

func render(s lipgloss.Style, text string) string {
	if !IsColorEnabled() {
		return text
	}
	return s.Render(text)
}

// Palette, ANSI 256 codes.
const (
	green  = "10"
	red    = "9"
	blue   = "12"
	yellow = "11"
	cyan   = "14"
	gray   = "8"
)

func Added(text string) string   { return render(style(green), text) }
func Removed(text string) string { return render(style(red), text) }
func Changed(text string) string { return render(style(blue), text) }
func Staged(text string) string  { return render(style(green).Bold(true), text) }

func Success(text string) string { return render(style(green), text) }
func Warning(text string) string { return render(style(yellow), text) }
func Error(text string) string   { return render(style(red), text) }
func Info(text string) string    { return render(style(cyan), text) }
func Dim(text string) string     { return render(style(gray), text) }

func Bold(text string) string {
	return render(renderer.NewStyle().Bold(true), text)
}

// SectionHeader renders a bold header line.
func SectionHeader(text string) string { return Bold(text) }

// ChangePrefix returns the one letter marker of a change type name.
func ChangePrefix(changeType string) string {
	switch strings.ToLower(changeType) {
	case "added":
		return Added("A")
	case "removed":
		return Removed("D")
	case "changed":
		return Changed("M")
	}
	return " "
}

// ItemLine formats one diff item for status style listings.
func ItemLine(changeType, label string) string {
	switch strings.ToLower(changeType) {
	case "added":
		return fmt.Sprintf("  %s  %s", ChangePrefix(changeType), Added(label))
	case "removed":
		return fmt.Sprintf("  %s  %s", ChangePrefix(changeType), Removed(label))
	case "changed":
		return fmt.Sprintf("  %s  %s", ChangePrefix(changeType), Changed(label))
	}
	return fmt.Sprintf("     %s", label)
}

package ui

import (
	"fmt"

	"github.com/alfredjeanlab/quorum/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorWarn   = 179 // amber
	colorFail   = 203 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderStatus colors a decision status: open states amber, passed states
// green, failed states red.
func RenderStatus(s model.Status) string {
	switch s {
	case model.StatusVoting, model.StatusAnnounced:
		return render(colorWarn, string(s))
	case model.StatusApproved, model.StatusEffective:
		return render(colorPass, string(s))
	case model.StatusRejected, model.StatusObjected, model.StatusExpired:
		return render(colorFail, string(s))
	}
	return string(s)
}

// RenderChoice colors a ballot choice. Redacted ballots render as "sealed".
func RenderChoice(c model.Choice) string {
	switch c {
	case model.ChoiceYes:
		return render(colorPass, string(c))
	case model.ChoiceNo:
		return render(colorFail, string(c))
	case "":
		return RenderMuted("sealed")
	}
	return RenderMuted(string(c))
}

// RenderHealth renders a voter's health flag.
func RenderHealth(healthy bool) string {
	if healthy {
		return render(colorPass, "healthy")
	}
	return render(colorFail, "unhealthy")
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

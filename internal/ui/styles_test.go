package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/alfredjeanlab/quorum/internal/model"
)

func withColor(t *testing.T, enabled bool) {
	t.Helper()
	prev := noColor
	noColor = !enabled
	t.Cleanup(func() { noColor = prev })
}

func TestRenderStatus(t *testing.T) {
	withColor(t, true)
	for _, tc := range []struct {
		status model.Status
		code   string
	}{
		{model.StatusVoting, "179"},
		{model.StatusAnnounced, "179"},
		{model.StatusApproved, "114"},
		{model.StatusEffective, "114"},
		{model.StatusRejected, "203"},
		{model.StatusObjected, "203"},
		{model.StatusExpired, "203"},
	} {
		t.Run(string(tc.status), func(t *testing.T) {
			got := RenderStatus(tc.status)
			if want := "\x1b[38;5;" + tc.code + "m" + string(tc.status) + "\x1b[0m"; got != want {
				t.Fatalf("RenderStatus(%s) = %q, want %q", tc.status, got, want)
			}
		})
	}
	if got := RenderStatus("bogus"); got != "bogus" {
		t.Fatalf("unknown status = %q, want plain", got)
	}
}

func TestRenderChoice_Sealed(t *testing.T) {
	withColor(t, false)
	if got := RenderChoice(""); got != "sealed" {
		t.Fatalf("RenderChoice(\"\") = %q", got)
	}
	if got := RenderChoice(model.ChoiceAbstain); got != "abstain" {
		t.Fatalf("RenderChoice(abstain) = %q", got)
	}
}

func TestForceNoColor(t *testing.T) {
	withColor(t, true)
	if !strings.Contains(RenderAccent("x"), "\x1b[") {
		t.Fatal("expected ANSI escape with color enabled")
	}
	ForceNoColor()
	for _, got := range []string{RenderAccent("x"), RenderMuted("x"), RenderCommand("x")} {
		if got != "x" {
			t.Fatalf("escape code after ForceNoColor: %q", got)
		}
	}
	if got := RenderHealth(false); got != "unhealthy" {
		t.Fatalf("RenderHealth(false) = %q", got)
	}
}

func TestShouldUseColor_Env(t *testing.T) {
	for _, tc := range []struct {
		name                   string
		noColor, force, clicol string
		want                   bool
	}{
		{"NoColorWins", "1", "1", "", false},
		{"Forced", "", "1", "", true},
		{"Disabled", "", "", "0", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tc.noColor)
			t.Setenv("CLICOLOR_FORCE", tc.force)
			t.Setenv("CLICOLOR", tc.clicol)
			if got := ShouldUseColor(os.Stdout); got != tc.want {
				t.Fatalf("ShouldUseColor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConfigure(t *testing.T) {
	withColor(t, true)
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	Configure(os.Stdout, true)
	if RenderMuted("x") != "x" {
		t.Fatal("Configure(disable=true) should turn color off")
	}
}

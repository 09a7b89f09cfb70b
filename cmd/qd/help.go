package main

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/quorum/internal/ui"
	"github.com/spf13/cobra"
)

var (
	// "Decisions:", "Flags:" and friends.
	reSection = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)
	// "  submit      Submit a decision"
	reSubcommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)
	// "--voter string", "--limit int"
	reFlagKind = regexp.MustCompile(`(--?\S+\s+)(string|int|float64|duration|strings)`)
	reDefault  = regexp.MustCompile(`\(default "[^"]*"\)`)
)

// colorizedHelpFunc renders cobra's usage text, styled when stdout takes
// color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor(os.Stdout) {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	s = reSection.ReplaceAllStringFunc(s, func(m string) string {
		return ui.RenderAccent(strings.TrimSpace(m))
	})
	s = reSubcommand.ReplaceAllString(s, "$1"+ui.RenderCommand("$2")+"$3")
	s = reFlagKind.ReplaceAllString(s, "$1"+ui.RenderMuted("$2"))
	return reDefault.ReplaceAllStringFunc(s, ui.RenderMuted)
}

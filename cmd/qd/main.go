package main

import (
	"os"

	"github.com/alfredjeanlab/quorum/internal/client"
	"github.com/alfredjeanlab/quorum/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool
	actor      string

	quorumClient *client.HTTPClient
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultActor() string {
	if v := os.Getenv("QUORUM_ACTOR"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "unknown"
}

var rootCmd = &cobra.Command{
	Use:          "qd <command>",
	Short:        "CLI client for the quorum decision service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Configure(os.Stdout, jsonOutput)
		quorumClient = client.NewHTTPClient(httpURL, authToken, actor)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if quorumClient != nil {
			quorumClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", envOr("QUORUM_HTTP_URL", "http://localhost:8080"), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("QUORUM_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name recorded in room activity")

	rootCmd.AddGroup(
		&cobra.Group{ID: "decisions", Title: "Decisions:"},
		&cobra.Group{ID: "rooms", Title: "Rooms:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	rootCmd.AddCommand(decisionCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(roomCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/quorum/internal/client"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/spf13/cobra"
)

var decisionCmd = &cobra.Command{
	Use:     "decision",
	Short:   "Submit, inspect and vote on decisions",
	GroupID: "decisions",
}

var decisionSubmitCmd = &cobra.Command{
	Use:   "submit <room-id> <proposal>",
	Short: "Submit a decision to a room",
	Long: `Submit a decision to a room. Announcements take effect once their
objection window passes unchecked; --pathway voting opens a ballot instead.
Decision types the room auto-approves resolve immediately.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		pathway, _ := cmd.Flags().GetString("pathway")
		proposer, _ := cmd.Flags().GetString("proposer")
		if proposer == "" {
			proposer = actor
		}

		req := &client.SubmitRequest{
			ProposerID: proposer,
			Proposal:   args[1],
			Type:       model.DecisionType(typ),
			Pathway:    model.Pathway(pathway),
		}
		if cmd.Flags().Changed("delay") {
			v, _ := cmd.Flags().GetDuration("delay")
			delay := model.Duration(v)
			req.Delay = &delay
		}

		d, err := quorumClient.SubmitDecision(cmd.Context(), args[0], req)
		if err != nil {
			return fmt.Errorf("submitting decision: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), d)
		}
		fmt.Fprint(cmd.OutOrStdout(), "Submitted ")
		printDecisionSummary(cmd.OutOrStdout(), d)
		return nil
	},
}

var decisionShowCmd = &cobra.Command{
	Use:   "show <decision-id>",
	Short: "Show a decision and its ballots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := quorumClient.GetDecision(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting decision: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), view)
		}
		printDecision(cmd.OutOrStdout(), view)
		return nil
	},
}

var decisionListCmd = &cobra.Command{
	Use:   "list <room-id>",
	Short: "List a room's decisions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, _ := cmd.Flags().GetStringSlice("status")
		limit, _ := cmd.Flags().GetInt("limit")

		req := &client.ListDecisionsRequest{Limit: limit}
		for _, s := range statuses {
			if s = strings.TrimSpace(s); s != "" {
				req.Status = append(req.Status, model.Status(s))
			}
		}
		ds, err := quorumClient.ListDecisions(cmd.Context(), args[0], req)
		if err != nil {
			return fmt.Errorf("listing decisions: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ds)
		}
		printDecisionList(cmd.OutOrStdout(), ds)
		return nil
	},
}

var decisionVoteCmd = &cobra.Command{
	Use:   "vote <decision-id> <yes|no|abstain>",
	Short: "Cast a ballot on a voting decision",
	Long: `Cast a ballot. The server tallies as soon as every eligible voter has
voted. --legacy uses the older single-ballot endpoint, which reports every
closed decision as not open for voting.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		voter, _ := cmd.Flags().GetString("voter")
		reason, _ := cmd.Flags().GetString("reason")
		legacy, _ := cmd.Flags().GetBool("legacy")
		if voter == "" {
			voter = actor
		}

		req := &client.VoteRequest{VoterID: voter, Choice: model.Choice(strings.ToLower(args[1])), Reasoning: reason}
		cast := quorumClient.CastVote
		if legacy {
			cast = quorumClient.Vote
		}
		vote, err := cast(cmd.Context(), args[0], req)
		if err != nil {
			if client.IsConflict(err) {
				return fmt.Errorf("cannot vote on %s: %w", args[0], err)
			}
			return fmt.Errorf("casting vote: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), vote)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s voted %s on %s\n", vote.VoterID, vote.Choice, vote.DecisionID)
		return nil
	},
}

var decisionObjectCmd = &cobra.Command{
	Use:   "object <decision-id>",
	Short: "Object to an announcement inside its objection window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		voter, _ := cmd.Flags().GetString("voter")
		reason, _ := cmd.Flags().GetString("reason")
		if voter == "" {
			voter = actor
		}
		d, err := quorumClient.Object(cmd.Context(), args[0], voter, reason)
		if err != nil {
			return fmt.Errorf("objecting: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), d)
		}
		printDecisionSummary(cmd.OutOrStdout(), d)
		return nil
	},
}

var decisionKeeperVoteCmd = &cobra.Command{
	Use:   "keeper-vote <decision-id> <yes|no|abstain>",
	Short: "Settle an announcement early as the keeper",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := quorumClient.KeeperVote(cmd.Context(), args[0], model.Choice(strings.ToLower(args[1])))
		if err != nil {
			return fmt.Errorf("keeper vote: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), d)
		}
		printDecisionSummary(cmd.OutOrStdout(), d)
		return nil
	},
}

var decisionTallyCmd = &cobra.Command{
	Use:   "tally <decision-id>",
	Short: "Tally a voting decision now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := quorumClient.Tally(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("tallying: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printDecisionSummary(cmd.OutOrStdout(), resp.Decision)
		return nil
	},
}

func init() {
	decisionSubmitCmd.Flags().String("type", string(model.TypeResource), "low_impact, resource or strategy")
	decisionSubmitCmd.Flags().String("pathway", "", "voting or announcement (default announcement)")
	decisionSubmitCmd.Flags().String("proposer", "", "proposing voter (default: --actor)")
	decisionSubmitCmd.Flags().Duration("delay", 0, "objection window for announcements (default: the room's)")

	decisionListCmd.Flags().StringSlice("status", nil, "filter by status (repeatable or comma-separated)")
	decisionListCmd.Flags().Int("limit", 0, "maximum decisions to return")

	decisionVoteCmd.Flags().String("voter", "", "voting member (default: --actor)")
	decisionVoteCmd.Flags().String("reason", "", "reasoning recorded with the ballot")
	decisionVoteCmd.Flags().Bool("legacy", false, "use the single-ballot endpoint")

	decisionObjectCmd.Flags().String("voter", "", "objecting member (default: --actor)")
	decisionObjectCmd.Flags().String("reason", "", "reason for the objection")

	decisionCmd.AddCommand(
		decisionSubmitCmd,
		decisionShowCmd,
		decisionListCmd,
		decisionVoteCmd,
		decisionObjectCmd,
		decisionKeeperVoteCmd,
		decisionTallyCmd,
	)
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/spf13/cobra"
)

var roomCmd = &cobra.Command{
	Use:     "room",
	Short:   "Manage rooms, their governance and members",
	GroupID: "rooms",
}

var roomCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := quorumClient.CreateRoom(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("creating room: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), room)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created room %s (%s)\n", room.ID, room.Name)
		return nil
	},
}

var roomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rooms, err := quorumClient.ListRooms(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing rooms: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rooms)
		}
		printRoomList(cmd.OutOrStdout(), rooms)
		return nil
	},
}

var roomShowCmd = &cobra.Command{
	Use:   "show <room-id>",
	Short: "Show a room and its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		room, err := quorumClient.GetRoom(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting room: %w", err)
		}
		members, err := quorumClient.ListMembers(ctx, room.ID)
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"room": room, "members": members})
		}
		printRoom(cmd.OutOrStdout(), room, members)

		if n, _ := cmd.Flags().GetInt("activity"); n > 0 {
			entries, err := quorumClient.Activity(ctx, room.ID, n)
			if err != nil {
				return fmt.Errorf("listing activity: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			printActivity(cmd.OutOrStdout(), entries)
		}
		return nil
	},
}

var roomGovernanceCmd = &cobra.Command{
	Use:   "governance <room-id>",
	Short: "Show or change a room's governance rules",
	Long: `Show a room's governance rules. Any flag given changes that rule and
leaves the others as they are. Changes apply to decisions submitted
afterwards; open decisions keep the rules they were submitted under.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := quorumClient.GetGovernance(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting governance: %w", err)
		}
		changed, err := applyGovernanceFlags(cmd, cfg)
		if err != nil {
			return err
		}
		if changed {
			if cfg, err = quorumClient.SetGovernance(ctx, args[0], *cfg); err != nil {
				return fmt.Errorf("setting governance: %w", err)
			}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), cfg)
		}
		printGovernance(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// applyGovernanceFlags copies every flag the user set onto cfg.
func applyGovernanceFlags(cmd *cobra.Command, cfg *model.GovernanceConfig) (bool, error) {
	flags := cmd.Flags()
	changed := false
	if flags.Changed("threshold") {
		v, _ := flags.GetString("threshold")
		cfg.Threshold = model.Threshold(v)
		changed = true
	}
	if flags.Changed("tie-breaker") {
		v, _ := flags.GetString("tie-breaker")
		cfg.TieBreaker = model.TieBreaker(v)
		changed = true
	}
	if flags.Changed("min-voters") {
		cfg.MinVoters, _ = flags.GetInt("min-voters")
		changed = true
	}
	if flags.Changed("sealed") {
		cfg.SealedBallot, _ = flags.GetBool("sealed")
		changed = true
	}
	if flags.Changed("voter-health") {
		cfg.VoterHealth, _ = flags.GetBool("voter-health")
		changed = true
	}
	if flags.Changed("health-threshold") {
		cfg.VoterHealthThreshold, _ = flags.GetFloat64("health-threshold")
		changed = true
	}
	if flags.Changed("auto-approve") {
		types, _ := flags.GetStringSlice("auto-approve")
		cfg.AutoApprove = nil
		for _, t := range types {
			if t = strings.TrimSpace(t); t != "" {
				cfg.AutoApprove = append(cfg.AutoApprove, model.DecisionType(t))
			}
		}
		changed = true
	}
	for _, d := range []struct {
		flag string
		dst  *model.Duration
	}{
		{"announcement-delay", &cfg.AnnouncementDelay},
		{"voting-timeout", &cfg.VotingTimeout},
	} {
		if !flags.Changed(d.flag) {
			continue
		}
		v, err := flags.GetDuration(d.flag)
		if err != nil {
			return false, fmt.Errorf("--%s: %w", d.flag, err)
		}
		*d.dst = model.Duration(v)
		changed = true
	}
	return changed, nil
}

var roomMemberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage room members",
}

var roomMemberAddCmd = &cobra.Command{
	Use:   "add <room-id> <voter-id>",
	Short: "Add a member to a room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		m, err := quorumClient.AddMember(cmd.Context(), args[0], args[1], model.Role(role))
		if err != nil {
			return fmt.Errorf("adding member: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), m)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s as %s\n", m.VoterID, m.RoomID, m.Role)
		return nil
	},
}

var roomMemberRemoveCmd = &cobra.Command{
	Use:   "remove <room-id> <voter-id>",
	Short: "Remove a member from a room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := quorumClient.RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("removing member: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"room_id": args[0], "voter_id": args[1]})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[1], args[0])
		return nil
	},
}

var roomHealthCmd = &cobra.Command{
	Use:   "health <room-id>",
	Short: "Show voter participation health",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var threshold *float64
		if cmd.Flags().Changed("threshold") {
			v, _ := cmd.Flags().GetFloat64("threshold")
			threshold = &v
		}
		resp, err := quorumClient.VoterHealth(cmd.Context(), args[0], threshold)
		if err != nil {
			return fmt.Errorf("getting voter health: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printVoterHealth(cmd.OutOrStdout(), resp)
		return nil
	},
}

func init() {
	roomShowCmd.Flags().Int("activity", 0, "also show the N most recent activity entries")

	f := roomGovernanceCmd.Flags()
	f.String("threshold", "", "majority, supermajority or unanimous")
	f.String("tie-breaker", "", "queen or none")
	f.Int("min-voters", 0, "minimum ballots for a valid tally")
	f.Bool("sealed", false, "hide ballots until the decision resolves")
	f.Bool("voter-health", false, "exclude voters below the health threshold")
	f.Float64("health-threshold", 0, "participation rate a voter needs to stay eligible")
	f.StringSlice("auto-approve", nil, "decision types approved without a vote")
	f.Duration("announcement-delay", time.Duration(0), "objection window for announcements")
	f.Duration("voting-timeout", time.Duration(0), "time before an open vote expires")

	roomMemberAddCmd.Flags().String("role", "", "queen, worker or keeper (default worker)")
	roomMemberCmd.AddCommand(roomMemberAddCmd, roomMemberRemoveCmd)

	roomHealthCmd.Flags().Float64("threshold", 0, "participation threshold (default: the room's)")

	roomCmd.AddCommand(roomCreateCmd, roomListCmd, roomShowCmd, roomGovernanceCmd, roomMemberCmd, roomHealthCmd)
}

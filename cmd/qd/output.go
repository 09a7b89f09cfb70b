package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/quorum/internal/client"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// --- Rooms ---

func printRoom(w io.Writer, room *model.Room, members []*model.RoomMember) {
	fmt.Fprintf(w, "ID:       %s\n", room.ID)
	fmt.Fprintf(w, "Name:     %s\n", room.Name)
	fmt.Fprintf(w, "Created:  %s\n", formatTime(&room.CreatedAt))
	if len(members) > 0 {
		fmt.Fprintln(w)
		printMembers(w, members)
	}
}

func printRoomList(w io.Writer, rooms []*model.Room) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Name, formatTime(&r.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d rooms\n", len(rooms))
}

func printMembers(w io.Writer, members []*model.RoomMember) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOTER\tROLE\tJOINED")
	for _, m := range members {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.VoterID, m.Role, formatTime(&m.JoinedAt))
	}
	tw.Flush()
}

func printGovernance(w io.Writer, cfg *model.GovernanceConfig) {
	auto := make([]string, len(cfg.AutoApprove))
	for i, t := range cfg.AutoApprove {
		auto[i] = string(t)
	}
	autoStr := strings.Join(auto, ", ")
	if autoStr == "" {
		autoStr = ui.RenderMuted("none")
	}
	fmt.Fprintf(w, "Threshold:           %s\n", cfg.Threshold)
	fmt.Fprintf(w, "Tie breaker:         %s\n", cfg.TieBreaker)
	fmt.Fprintf(w, "Min voters:          %d\n", cfg.MinVoters)
	fmt.Fprintf(w, "Sealed ballot:       %t\n", cfg.SealedBallot)
	fmt.Fprintf(w, "Voter health:        %t (threshold %.2f)\n", cfg.VoterHealth, cfg.VoterHealthThreshold)
	fmt.Fprintf(w, "Auto approve:        %s\n", autoStr)
	fmt.Fprintf(w, "Announcement delay:  %s\n", cfg.AnnouncementDelay)
	fmt.Fprintf(w, "Voting timeout:      %s\n", cfg.VotingTimeout)
}

func printVoterHealth(w io.Writer, resp *client.VoterHealthResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOTER\tROLE\tCAST\tMISSED\tRATE\tHEALTH")
	for _, v := range resp.Voters {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f%%\t%s\n",
			v.VoterID, v.Role, v.VotesCast, v.VotesMissed, v.ParticipationRate*100, ui.RenderHealth(v.IsHealthy))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nthreshold %.0f%%\n", resp.Threshold*100)
}

func printActivity(w io.Writer, entries []*model.Activity) {
	for _, a := range entries {
		who := a.Actor
		if who == "" {
			who = "system"
		}
		fmt.Fprintf(w, "%s  %-8s %-12s %s\n",
			ui.RenderMuted(formatTime(&a.CreatedAt)), a.Kind, who, a.Summary)
	}
}

// --- Decisions ---

func printDecision(w io.Writer, view *client.DecisionView) {
	d := view.Decision
	fmt.Fprintf(w, "ID:        %s\n", d.ID)
	fmt.Fprintf(w, "Room:      %s\n", d.RoomID)
	fmt.Fprintf(w, "Proposer:  %s\n", d.ProposerID)
	fmt.Fprintf(w, "Proposal:  %s\n", d.Proposal)
	fmt.Fprintf(w, "Type:      %s (%s)\n", d.Type, d.Pathway)
	fmt.Fprintf(w, "Status:    %s\n", ui.RenderStatus(d.Status))
	fmt.Fprintf(w, "Rules:     %s, tie %s, min %d voters\n", d.Snapshot.Threshold, d.Snapshot.TieBreaker, d.Snapshot.MinVoters)
	if d.Sealed {
		fmt.Fprintf(w, "Sealed:    yes\n")
	}
	if deadline := d.Deadline(); deadline != nil {
		label := "Timeout:"
		if d.Pathway == model.PathwayAnnouncement {
			label = "Effective:"
		}
		fmt.Fprintf(w, "%-10s %s\n", label, formatTime(deadline))
	}
	if d.Result != "" {
		fmt.Fprintf(w, "Result:    %s\n", d.Result)
	}
	fmt.Fprintf(w, "Created:   %s\n", formatTime(&d.CreatedAt))
	if d.ResolvedAt != nil {
		fmt.Fprintf(w, "Resolved:  %s\n", formatTime(d.ResolvedAt))
	}
	if len(view.Votes) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOTER\tCHOICE\tREASONING")
	for _, v := range view.Votes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.VoterID, ui.RenderChoice(v.Choice), truncate(v.Reasoning, 60))
	}
	tw.Flush()
}

func printDecisionList(w io.Writer, ds []*model.Decision) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTYPE\tPROPOSER\tPROPOSAL")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.ID, ui.RenderStatus(d.Status), d.Type, d.ProposerID, truncate(d.Proposal, 50))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d decisions\n", len(ds))
}

func printDecisionSummary(w io.Writer, d *model.Decision) {
	fmt.Fprintf(w, "%s %s", d.ID, ui.RenderStatus(d.Status))
	if d.Result != "" {
		fmt.Fprintf(w, ": %s", d.Result)
	}
	fmt.Fprintln(w)
}

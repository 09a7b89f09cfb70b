package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// Source is the read side of the store used by the exporter.
type Source interface {
	ListRooms(ctx context.Context) ([]*model.Room, error)
	GetRoomGovernanceConfig(ctx context.Context, roomID string) (*model.GovernanceConfig, error)
	GetRoomVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error)
	ListDecisions(ctx context.Context, filter model.DecisionFilter) ([]*model.Decision, error)
	GetVotes(ctx context.Context, decisionID string) ([]*model.Vote, error)
}

// FormatVersion is written in the header record.
const FormatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	RoomCount     int       `json:"room_count"`
	DecisionCount int       `json:"decision_count"`
	VoteCount     int       `json:"vote_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// roomEntry is a room with its governance and roster embedded.
type roomEntry struct {
	*model.Room
	Governance *model.GovernanceConfig `json:"governance,omitempty"`
	Members    []*model.RoomMember     `json:"members"`
}

// ExportJSONL writes every room, decision and vote from src as JSONL to w.
// Each record kind is sorted by ID. Ballots are written in full regardless
// of whether the decision is sealed.
func ExportJSONL(ctx context.Context, src Source, w io.Writer) error {
	rooms, err := src.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	entries := make([]roomEntry, 0, len(rooms))
	for _, r := range rooms {
		e := roomEntry{Room: r}
		cfg, err := src.GetRoomGovernanceConfig(ctx, r.ID)
		switch {
		case err == nil:
			e.Governance = cfg
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("get governance for %s: %w", r.ID, err)
		}
		if e.Members, err = src.GetRoomVoters(ctx, r.ID); err != nil {
			return fmt.Errorf("get roster for %s: %w", r.ID, err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	decisions, err := src.ListDecisions(ctx, model.DecisionFilter{})
	if err != nil {
		return fmt.Errorf("list decisions: %w", err)
	}
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].ID < decisions[j].ID })

	var votes []*model.Vote
	for _, d := range decisions {
		vs, err := src.GetVotes(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("get votes for %s: %w", d.ID, err)
		}
		votes = append(votes, vs...)
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].ID < votes[j].ID })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       FormatVersion,
		Type:          "header",
		Timestamp:     time.Now().UTC(),
		RoomCount:     len(entries),
		DecisionCount: len(decisions),
		VoteCount:     len(votes),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, e := range entries {
		if err := enc.Encode(record{Type: "room", Data: e}); err != nil {
			return fmt.Errorf("encode room %s: %w", e.ID, err)
		}
	}
	for _, d := range decisions {
		if err := enc.Encode(record{Type: "decision", Data: d}); err != nil {
			return fmt.Errorf("encode decision %s: %w", d.ID, err)
		}
	}
	for _, v := range votes {
		if err := enc.Encode(record{Type: "vote", Data: v}); err != nil {
			return fmt.Errorf("encode vote %s: %w", v.ID, err)
		}
	}

	return nil
}

package quorum

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/quorum/internal/model"
)

// GetVoterHealth reports participation for every member of the room's
// roster. Members with no recorded history have a rate of 1 and are healthy.
func (e *Engine) GetVoterHealth(ctx context.Context, roomID string, threshold float64) ([]model.VoterHealth, error) {
	if threshold < 0 || threshold > 1 {
		return nil, model.Invalid("threshold", "must be between 0 and 1, got %v", threshold)
	}
	if _, err := e.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	roster, err := e.store.GetRoomVoters(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get roster for %s: %w", roomID, err)
	}
	records, err := e.store.GetVoterHealth(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get voter health for %s: %w", roomID, err)
	}
	return voterHealth(roster, records, threshold), nil
}

func voterHealth(roster []*model.RoomMember, records []*model.VoterHealthRecord, threshold float64) []model.VoterHealth {
	byVoter := make(map[string]*model.VoterHealthRecord, len(records))
	for _, r := range records {
		byVoter[r.VoterID] = r
	}

	out := make([]model.VoterHealth, 0, len(roster))
	for _, m := range roster {
		rec := byVoter[m.VoterID]
		if rec == nil {
			rec = &model.VoterHealthRecord{RoomID: m.RoomID, VoterID: m.VoterID}
		}
		out = append(out, model.VoterHealth{
			VoterID:           m.VoterID,
			Role:              m.Role,
			VotesCast:         rec.VotesCast,
			VotesMissed:       rec.VotesMissed,
			ParticipationRate: rec.ParticipationRate(),
			IsHealthy:         rec.IsHealthy(threshold),
		})
	}
	return out
}

// GetEligibleVoters returns the roster, restricted to healthy members when
// the room tracks voter health. The result is informational: tallies and
// quorum always use the full roster.
func (e *Engine) GetEligibleVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	if _, err := e.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	cfg, err := e.governance(ctx, e.store, roomID)
	if err != nil {
		return nil, err
	}
	roster, err := e.store.GetRoomVoters(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get roster for %s: %w", roomID, err)
	}
	if !cfg.VoterHealth {
		return roster, nil
	}

	records, err := e.store.GetVoterHealth(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get voter health for %s: %w", roomID, err)
	}
	health := voterHealth(roster, records, cfg.VoterHealthThreshold)

	eligible := make([]*model.RoomMember, 0, len(roster))
	for i, m := range roster {
		if health[i].IsHealthy {
			eligible = append(eligible, m)
		}
	}
	return eligible, nil
}

package quorum

import (
	"context"
	"errors"
	"testing"

	"github.com/alfredjeanlab/quorum/internal/model"
)

func healthByVoter(t *testing.T, hs []model.VoterHealth) map[string]model.VoterHealth {
	t.Helper()
	out := make(map[string]model.VoterHealth, len(hs))
	for _, h := range hs {
		out[h.VoterID] = h
	}
	return out
}

func TestGetVoterHealth_ColdStart(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, func(c *model.GovernanceConfig) { c.VoterHealth = true }, queen, w1)

	hs, err := e.GetVoterHealth(context.Background(), roomID, 0.9)
	if err != nil {
		t.Fatalf("GetVoterHealth: %v", err)
	}
	if len(hs) != 2 {
		t.Fatalf("got %d entries, want one per roster member", len(hs))
	}
	for _, h := range hs {
		if h.ParticipationRate != 1 || !h.IsHealthy {
			t.Errorf("%s: rate=%v healthy=%v, want 1/true", h.VoterID, h.ParticipationRate, h.IsHealthy)
		}
	}
}

func TestGetVoterHealth_Counts(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, func(c *model.GovernanceConfig) { c.VoterHealth = true }, queen, w1, w2)

	// w2 sits out three decisions and votes on a fourth.
	for i := 0; i < 3; i++ {
		d := submit(t, e, roomID, model.PathwayVoting)
		mustVote(t, e, d.ID, "queen", model.ChoiceYes)
		mustVote(t, e, d.ID, "w1", model.ChoiceYes)
		if _, err := e.Tally(context.Background(), d.ID); err != nil {
			t.Fatalf("Tally: %v", err)
		}
	}
	d := submit(t, e, roomID, model.PathwayVoting)
	mustVote(t, e, d.ID, "queen", model.ChoiceYes)
	mustVote(t, e, d.ID, "w1", model.ChoiceYes)
	mustVote(t, e, d.ID, "w2", model.ChoiceNo)

	hs, err := e.GetVoterHealth(context.Background(), roomID, 0.5)
	if err != nil {
		t.Fatalf("GetVoterHealth: %v", err)
	}
	byVoter := healthByVoter(t, hs)

	q := byVoter["queen"]
	if q.VotesCast != 4 || q.VotesMissed != 0 || !q.IsHealthy || q.Role != model.RoleQueen {
		t.Errorf("queen = %+v", q)
	}
	w := byVoter["w2"]
	if w.VotesCast != 1 || w.VotesMissed != 3 {
		t.Errorf("w2 counts = %d/%d, want 1 cast, 3 missed", w.VotesCast, w.VotesMissed)
	}
	if w.ParticipationRate != 0.25 || w.IsHealthy {
		t.Errorf("w2 rate=%v healthy=%v, want 0.25/false", w.ParticipationRate, w.IsHealthy)
	}

	lenient, err := e.GetVoterHealth(context.Background(), roomID, 0.25)
	if err != nil {
		t.Fatalf("GetVoterHealth: %v", err)
	}
	if !healthByVoter(t, lenient)["w2"].IsHealthy {
		t.Error("w2 should be healthy at a 0.25 threshold")
	}
}

func TestGetVoterHealth_Validation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen)

	for _, th := range []float64{-0.1, 1.5} {
		if _, err := e.GetVoterHealth(context.Background(), roomID, th); !errors.Is(err, ErrValidation) {
			t.Errorf("threshold %v: expected validation error, got %v", th, err)
		}
	}
	if _, err := e.GetVoterHealth(context.Background(), "rm-missing", 0.5); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestGetEligibleVoters(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, func(c *model.GovernanceConfig) {
		c.VoterHealth = true
		c.VoterHealthThreshold = 0.5
	}, queen, w1, w2)

	for i := 0; i < 2; i++ {
		d := submit(t, e, roomID, model.PathwayVoting)
		mustVote(t, e, d.ID, "queen", model.ChoiceYes)
		mustVote(t, e, d.ID, "w1", model.ChoiceYes)
		if _, err := e.Tally(context.Background(), d.ID); err != nil {
			t.Fatalf("Tally: %v", err)
		}
	}

	eligible, err := e.GetEligibleVoters(context.Background(), roomID)
	if err != nil {
		t.Fatalf("GetEligibleVoters: %v", err)
	}
	if len(eligible) != 2 {
		t.Fatalf("got %d eligible voters, want 2", len(eligible))
	}
	for _, m := range eligible {
		if m.VoterID == "w2" {
			t.Fatal("w2 missed every vote and should not be eligible")
		}
	}

	// Unhealthy members still count on the roster for auto-tally.
	d := submit(t, e, roomID, model.PathwayVoting)
	mustVote(t, e, d.ID, "queen", model.ChoiceYes)
	mustVote(t, e, d.ID, "w1", model.ChoiceYes)
	if got := mustGet(t, e, d.ID); got.Status != model.StatusVoting {
		t.Fatalf("status = %s, want voting until w2 votes", got.Status)
	}
}

func TestGetEligibleVoters_HealthDisabled(t *testing.T) {
	e, ms, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, w1)
	if err := ms.IncrementVotesMissed(context.Background(), roomID, "w1"); err != nil {
		t.Fatal(err)
	}

	eligible, err := e.GetEligibleVoters(context.Background(), roomID)
	if err != nil {
		t.Fatalf("GetEligibleVoters: %v", err)
	}
	if len(eligible) != 2 {
		t.Fatalf("got %d eligible voters, want the full roster", len(eligible))
	}
}

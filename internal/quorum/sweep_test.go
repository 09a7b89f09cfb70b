package quorum

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
)

func TestCheckExpiredDecisions_Announcement(t *testing.T) {
	e, _, clk := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, w1)
	d := submit(t, e, roomID, model.PathwayAnnouncement)

	clk.Advance(11 * time.Minute)
	n, err := e.CheckExpiredDecisions(context.Background(), clk.Now())
	if err != nil {
		t.Fatalf("CheckExpiredDecisions: %v", err)
	}
	if n != 1 {
		t.Fatalf("resolved %d, want 1", n)
	}
	got := mustGet(t, e, d.ID)
	if got.Status != model.StatusEffective || !strings.Contains(got.Result, "No objections") {
		t.Fatalf("status/result = %s/%q, want effective with no objections", got.Status, got.Result)
	}

	n, err = e.CheckExpiredDecisions(context.Background(), clk.Now())
	if err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v; want 0, nil", n, err)
	}
}

func TestCheckExpiredDecisions_FutureUntouched(t *testing.T) {
	e, _, clk := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen)
	announced := submit(t, e, roomID, model.PathwayAnnouncement)
	voting := submit(t, e, roomID, model.PathwayVoting)

	clk.Advance(9 * time.Minute)
	n, err := e.CheckExpiredDecisions(context.Background(), clk.Now())
	if err != nil {
		t.Fatalf("CheckExpiredDecisions: %v", err)
	}
	if n != 0 {
		t.Fatalf("resolved %d, want 0", n)
	}
	for _, id := range []string{announced.ID, voting.ID} {
		if got := mustGet(t, e, id); got.Status.IsTerminal() {
			t.Errorf("%s resolved early: %s", id, got.Status)
		}
	}
}

func TestCheckExpiredDecisions_EffectiveAtBoundary(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen)
	d := submit(t, e, roomID, model.PathwayAnnouncement)

	n, err := e.CheckExpiredDecisions(context.Background(), *d.EffectiveAt)
	if err != nil || n != 1 {
		t.Fatalf("sweep at effective_at = %d, %v; want 1, nil", n, err)
	}
}

func TestCheckExpiredDecisions_VotingTimeout(t *testing.T) {
	e, _, clk := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, w1, w2)
	d := submit(t, e, roomID, model.PathwayVoting)
	mustVote(t, e, d.ID, "queen", model.ChoiceYes)

	clk.Advance(time.Hour + time.Second)
	n, err := e.CheckExpiredDecisions(context.Background(), clk.Now())
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v; want 1, nil", n, err)
	}
	got := mustGet(t, e, d.ID)
	if got.Status != model.StatusApproved {
		t.Fatalf("status = %s, want approved", got.Status)
	}
	if got.Result != "Voting timed out: Approved by majority (1 yes, 0 no, 0 abstain)" {
		t.Errorf("result = %q", got.Result)
	}
}

func TestCheckExpiredDecisions_VotingTimeoutQuorumNotMet(t *testing.T) {
	e, _, clk := newTestEngine(t)
	roomID := seedRoom(t, e, func(c *model.GovernanceConfig) { c.MinVoters = 2 }, queen, w1)
	d := submit(t, e, roomID, model.PathwayVoting)
	mustVote(t, e, d.ID, "queen", model.ChoiceYes)

	clk.Advance(2 * time.Hour)
	if _, err := e.CheckExpiredDecisions(context.Background(), clk.Now()); err != nil {
		t.Fatalf("CheckExpiredDecisions: %v", err)
	}
	got := mustGet(t, e, d.ID)
	if got.Status != model.StatusRejected {
		t.Fatalf("status = %s, want rejected", got.Status)
	}
	if got.Result != "Quorum not met (1 of 2 required votes)" {
		t.Errorf("result = %q, want quorum failure without timeout prefix", got.Result)
	}
}

func TestCheckExpiredDecisions_SkipsBrokenDecisions(t *testing.T) {
	e, ms, clk := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen)
	broken := submit(t, e, roomID, model.PathwayAnnouncement)
	healthy := submit(t, e, roomID, model.PathwayAnnouncement)

	past := testEpoch.Add(-time.Minute)
	mismatched := &model.Decision{
		ID: "dc-mismatch", RoomID: roomID, ProposerID: "w1", Proposal: "x",
		Type: model.TypeResource, Pathway: model.PathwayVoting, Status: model.StatusAnnounced,
		Snapshot: model.DefaultGovernanceConfig().Snapshot(), TimeoutAt: &past, CreatedAt: past,
	}
	if err := ms.CreateDecision(context.Background(), mismatched); err != nil {
		t.Fatal(err)
	}

	ms.mu.Lock()
	ms.getErr[broken.ID] = errors.New("corrupt row")
	ms.mu.Unlock()

	clk.Advance(time.Hour)
	n, err := e.CheckExpiredDecisions(context.Background(), clk.Now())
	if err != nil {
		t.Fatalf("CheckExpiredDecisions: %v", err)
	}
	if n != 1 {
		t.Fatalf("resolved %d, want only the healthy decision", n)
	}
	if got := mustGet(t, e, healthy.ID); got.Status != model.StatusEffective {
		t.Errorf("healthy decision status = %s, want effective", got.Status)
	}
	if got := mustGet(t, e, mismatched.ID); got.Status != model.StatusAnnounced {
		t.Errorf("mismatched decision status = %s, want untouched", got.Status)
	}
}

func TestCheckExpiredDecisions_ListFailure(t *testing.T) {
	e, ms, clk := newTestEngine(t)
	ms.listErr = errors.New("connection reset")

	if _, err := e.CheckExpiredDecisions(context.Background(), clk.Now()); err == nil {
		t.Fatal("expected list failure to be returned")
	}
}

func TestCheckExpiredDecisions_RaceWithKeeper(t *testing.T) {
	e, _, clk := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, keeper)
	d := submit(t, e, roomID, model.PathwayAnnouncement)
	clk.Advance(time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		swept   int
		keepers int
	)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n, err := e.CheckExpiredDecisions(context.Background(), clk.Now())
			if err != nil {
				t.Errorf("CheckExpiredDecisions: %v", err)
				return
			}
			mu.Lock()
			swept += n
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			_, err := e.KeeperVote(context.Background(), d.ID, model.ChoiceNo)
			if err == nil {
				mu.Lock()
				keepers++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("KeeperVote: %v", err)
			}
		}()
	}
	wg.Wait()

	if swept+keepers != 1 {
		t.Fatalf("swept=%d keeper=%d, want exactly one resolution", swept, keepers)
	}
	got := mustGet(t, e, d.ID)
	switch {
	case keepers == 1 && got.Status != model.StatusObjected:
		t.Errorf("keeper won but status = %s", got.Status)
	case swept == 1 && got.Status != model.StatusEffective:
		t.Errorf("sweep won but status = %s", got.Status)
	}
}

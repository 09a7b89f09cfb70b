package quorum

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alfredjeanlab/quorum/internal/model"
)

func TestObject_FirstObjectionWins(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, w1, w2)
	d := submit(t, e, roomID, model.PathwayAnnouncement)

	got, err := e.Object(context.Background(), d.ID, "w2", "  too risky ")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	if got.Status != model.StatusObjected {
		t.Fatalf("status = %s, want objected", got.Status)
	}
	if !strings.Contains(got.Result, "Objected") || !strings.Contains(got.Result, "too risky") {
		t.Errorf("result = %q, want objection and reason", got.Result)
	}
	if got.Result != "Objected by w2: too risky" {
		t.Errorf("result = %q", got.Result)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(testEpoch) {
		t.Errorf("resolved_at = %v", got.ResolvedAt)
	}

	_, err = e.Object(context.Background(), d.ID, "w1", "me too")
	se := requireInvalidState(t, err)
	if se.Status != model.StatusObjected {
		t.Errorf("state error status = %s, want objected", se.Status)
	}
	if stored := mustGet(t, e, d.ID); stored.Result != "Objected by w2: too risky" {
		t.Errorf("second objection overwrote result: %q", stored.Result)
	}
}

func TestObject_WithoutReason(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen)
	d := submit(t, e, roomID, "")

	got, err := e.Object(context.Background(), d.ID, "queen", "")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	if got.Result != "Objected by queen" {
		t.Errorf("result = %q", got.Result)
	}
}

func TestObject_Errors(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, w1)
	voting := submit(t, e, roomID, model.PathwayVoting)

	if _, err := e.Object(context.Background(), voting.ID, "w1", "no"); err == nil {
		t.Fatal("expected objection to a voting decision to fail")
	} else {
		requireInvalidState(t, err)
	}
	if _, err := e.Object(context.Background(), "dc-missing", "w1", ""); !errors.Is(err, ErrDecisionNotFound) {
		t.Fatalf("expected ErrDecisionNotFound, got %v", err)
	}
	if _, err := e.Object(context.Background(), voting.ID, " ", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank voter, got %v", err)
	}
}

func TestKeeperVote(t *testing.T) {
	for _, tc := range []struct {
		choice     model.Choice
		wantStatus model.Status
		wantResult string
	}{
		{model.ChoiceYes, model.StatusEffective, ResultKeeperApproved},
		{model.ChoiceAbstain, model.StatusEffective, ResultKeeperApproved},
		{model.ChoiceNo, model.StatusObjected, ResultKeeperObjected},
	} {
		t.Run(string(tc.choice), func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			roomID := seedRoom(t, e, nil, queen, keeper)
			d := submit(t, e, roomID, model.PathwayAnnouncement)

			got, err := e.KeeperVote(context.Background(), d.ID, tc.choice)
			if err != nil {
				t.Fatalf("KeeperVote: %v", err)
			}
			if got.Status != tc.wantStatus || got.Result != tc.wantResult {
				t.Fatalf("status/result = %s/%q, want %s/%q", got.Status, got.Result, tc.wantStatus, tc.wantResult)
			}

			_, err = e.KeeperVote(context.Background(), d.ID, tc.choice)
			requireInvalidState(t, err)
		})
	}
}

func TestKeeperVote_Rejects(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, keeper)
	announced := submit(t, e, roomID, model.PathwayAnnouncement)
	voting := submit(t, e, roomID, model.PathwayVoting)

	if _, err := e.KeeperVote(context.Background(), announced.ID, "maybe"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := mustGet(t, e, announced.ID); got.Status != model.StatusAnnounced {
		t.Fatalf("invalid keeper vote changed status to %s", got.Status)
	}

	_, err := e.KeeperVote(context.Background(), voting.ID, model.ChoiceYes)
	requireInvalidState(t, err)
}

func TestObject_ConcurrentRace(t *testing.T) {
	e, _, _ := newTestEngine(t)
	roomID := seedRoom(t, e, nil, queen, w1, w2, keeper)
	d := submit(t, e, roomID, model.PathwayAnnouncement)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = e.Object(context.Background(), d.ID, "w1", "racing")
			} else {
				_, err = e.KeeperVote(context.Background(), d.ID, model.ChoiceYes)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidState):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != n-1 {
		t.Fatalf("successes=%d conflicts=%d, want 1 and %d", successes, conflicts, n-1)
	}
	if got := mustGet(t, e, d.ID); !got.Status.IsTerminal() {
		t.Fatalf("status = %s, want terminal", got.Status)
	}
}

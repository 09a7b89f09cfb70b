package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// decisionRowColumns mirrors decisionColumns for scanDecision results.
var decisionRowColumns = []string{
	"id", "room_id", "proposer_id", "proposal", "type", "pathway", "status",
	"threshold", "tie_breaker", "min_voters", "sealed", "effective_at", "timeout_at",
	"result", "created_at", "resolved_at",
}

func addDecisionRow(rows *sqlmock.Rows, id, status string, timeoutAt any, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "rm-1", "worker-1", "Buy more disks", "resource", "voting", status,
		"majority", "queen", 2, false, nil, timeoutAt,
		nil, now, nil,
	)
}

func TestQueryGetDecision(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	timeout := now.Add(time.Hour)

	mock.ExpectQuery("SELECT .+ FROM decisions WHERE id = \\$1$").
		WithArgs("dc-1").
		WillReturnRows(addDecisionRow(sqlmock.NewRows(decisionRowColumns), "dc-1", "voting", timeout, now))

	d, err := queryGetDecision(context.Background(), db, "dc-1", false)
	if err != nil {
		t.Fatalf("queryGetDecision: %v", err)
	}
	if d.Status != model.StatusVoting || d.Pathway != model.PathwayVoting {
		t.Errorf("status/pathway = %s/%s", d.Status, d.Pathway)
	}
	if d.Snapshot.Threshold != model.ThresholdMajority || d.Snapshot.TieBreaker != model.TieBreakerQueen || d.Snapshot.MinVoters != 2 {
		t.Errorf("snapshot = %+v", d.Snapshot)
	}
	if d.TimeoutAt == nil || !d.TimeoutAt.Equal(timeout) {
		t.Errorf("timeout_at = %v, want %v", d.TimeoutAt, timeout)
	}
	if d.EffectiveAt != nil || d.ResolvedAt != nil {
		t.Errorf("expected nil effective_at/resolved_at, got %v/%v", d.EffectiveAt, d.ResolvedAt)
	}
	if d.Result != "" {
		t.Errorf("result = %q, want empty", d.Result)
	}
}

func TestQueryGetDecision_ForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM decisions WHERE id = \\$1 FOR UPDATE").
		WithArgs("dc-1").
		WillReturnRows(addDecisionRow(sqlmock.NewRows(decisionRowColumns), "dc-1", "voting", now, now))

	if _, err := queryGetDecision(context.Background(), db, "dc-1", true); err != nil {
		t.Fatalf("queryGetDecision: %v", err)
	}
}

func TestQueryGetDecision_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM decisions WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := queryGetDecision(context.Background(), db, "missing", false)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryCreateDecision(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	timeout := now.Add(time.Hour)

	d := &model.Decision{
		ID:         "dc-1",
		RoomID:     "rm-1",
		ProposerID: "worker-1",
		Proposal:   "Buy more disks",
		Type:       model.TypeResource,
		Pathway:    model.PathwayVoting,
		Status:     model.StatusVoting,
		Snapshot:   model.Snapshot{Threshold: model.ThresholdMajority, TieBreaker: model.TieBreakerQueen},
		TimeoutAt:  &timeout,
	}

	mock.ExpectQuery("INSERT INTO decisions").
		WithArgs("dc-1", "rm-1", "worker-1", "Buy more disks", "resource", "voting", "voting",
			"majority", "queen", int64(0), false, nil, sqlmock.AnyArg(), "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	if err := queryCreateDecision(context.Background(), db, d); err != nil {
		t.Fatalf("queryCreateDecision: %v", err)
	}
	if !d.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", d.CreatedAt, now)
	}
}

func TestQueryListDecisions(t *testing.T) {
	now := time.Now()

	for _, tc := range []struct {
		name   string
		filter model.DecisionFilter
		query  string
		args   []driver.Value
	}{
		{
			name:  "NoFilter",
			query: "SELECT .+ FROM decisions ORDER BY created_at DESC, id ASC$",
		},
		{
			name:   "RoomAndLimit",
			filter: model.DecisionFilter{RoomID: "rm-1", Limit: 10},
			query:  "SELECT .+ FROM decisions WHERE room_id = \\$1 ORDER BY .+ LIMIT \\$2",
			args:   []driver.Value{"rm-1", int64(10)},
		},
		{
			name:   "PendingDue",
			filter: model.DecisionFilter{Status: []model.Status{model.StatusVoting, model.StatusAnnounced}, DueBefore: &now},
			query:  "WHERE status IN \\(\\$1, \\$2\\) AND COALESCE\\(effective_at, timeout_at\\) <= \\$3",
			args:   []driver.Value{"voting", "announced", now},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			rows := sqlmock.NewRows(decisionRowColumns)
			addDecisionRow(rows, "dc-2", "voting", now, now)
			addDecisionRow(rows, "dc-1", "announced", nil, now)

			exp := mock.ExpectQuery(tc.query)
			if len(tc.args) > 0 {
				exp = exp.WithArgs(tc.args...)
			}
			exp.WillReturnRows(rows)

			got, err := queryListDecisions(context.Background(), db, tc.filter)
			if err != nil {
				t.Fatalf("queryListDecisions: %v", err)
			}
			if len(got) != 2 || got[0].ID != "dc-2" || got[1].ID != "dc-1" {
				t.Fatalf("unexpected decisions: %+v", got)
			}
		})
	}
}

func TestQueryUpdateDecisionStatus(t *testing.T) {
	for _, tc := range []struct {
		name     string
		affected int64
		want     bool
	}{
		{"Applied", 1, true},
		{"LostRace", 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec("UPDATE decisions SET status = \\$3, result = \\$4, resolved_at = \\$5 WHERE id = \\$1 AND status = \\$2").
				WithArgs("dc-1", "voting", "approved", "Approved (2 yes, 1 no)", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			ok, err := queryUpdateDecisionStatus(context.Background(), db, "dc-1",
				model.StatusVoting, model.StatusApproved, "Approved (2 yes, 1 no)", time.Now())
			if err != nil {
				t.Fatalf("queryUpdateDecisionStatus: %v", err)
			}
			if ok != tc.want {
				t.Errorf("updated = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestQueryCreateVote_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO votes").
		WithArgs("vt-1", "dc-1", "worker-1", "yes", "").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := queryCreateVote(context.Background(), db, &model.Vote{
		ID: "vt-1", DecisionID: "dc-1", VoterID: "worker-1", Choice: model.ChoiceYes,
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestQueryGetVotes(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM votes WHERE decision_id = \\$1").
		WithArgs("dc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "decision_id", "voter_id", "choice", "reasoning", "cast_at"}).
			AddRow("vt-1", "dc-1", "worker-1", "yes", nil, now).
			AddRow("vt-2", "dc-1", "queen", "no", "too expensive", now.Add(time.Second)))

	votes, err := queryGetVotes(context.Background(), db, "dc-1")
	if err != nil {
		t.Fatalf("queryGetVotes: %v", err)
	}
	if len(votes) != 2 {
		t.Fatalf("got %d votes, want 2", len(votes))
	}
	if votes[0].Reasoning != "" || votes[1].Reasoning != "too expensive" {
		t.Errorf("reasoning = %q/%q", votes[0].Reasoning, votes[1].Reasoning)
	}
	if votes[1].Choice != model.ChoiceNo {
		t.Errorf("choice = %s, want no", votes[1].Choice)
	}
}

func TestQueryIncrementHealth(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO voter_health .+ ON CONFLICT .+ votes_cast = voter_health.votes_cast \\+ 1").
		WithArgs("rm-1", "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO voter_health .+ ON CONFLICT .+ votes_missed = voter_health.votes_missed \\+ 1").
		WithArgs("rm-1", "worker-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := queryIncrementVotesCast(ctx, db, "rm-1", "worker-1"); err != nil {
		t.Fatalf("queryIncrementVotesCast: %v", err)
	}
	if err := queryIncrementVotesMissed(ctx, db, "rm-1", "worker-2"); err != nil {
		t.Fatalf("queryIncrementVotesMissed: %v", err)
	}
}

func TestQueryGetGovernance(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT config FROM room_governance WHERE room_id = \\$1").
		WithArgs("rm-1").
		WillReturnRows(sqlmock.NewRows([]string{"config"}).
			AddRow([]byte(`{"threshold":"supermajority","tie_breaker":"none","min_voters":3,"voting_timeout":"30m"}`)))

	cfg, err := queryGetGovernance(context.Background(), db, "rm-1")
	if err != nil {
		t.Fatalf("queryGetGovernance: %v", err)
	}
	if cfg.Threshold != model.ThresholdSupermajority || cfg.MinVoters != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.VotingTimeout.Std() != 30*time.Minute {
		t.Errorf("voting_timeout = %s, want 30m", cfg.VotingTimeout)
	}
}

func TestQueryGetGovernance_NotConfigured(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT config FROM room_governance").
		WithArgs("rm-2").
		WillReturnError(sql.ErrNoRows)

	if _, err := queryGetGovernance(context.Background(), db, "rm-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryRemoveMember_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM room_members WHERE room_id = \\$1 AND voter_id = \\$2").
		WithArgs("rm-1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryRemoveMember(context.Background(), db, "rm-1", "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryGetQueen(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM room_members WHERE room_id = \\$1 AND role = 'queen'").
		WithArgs("rm-1").
		WillReturnRows(sqlmock.NewRows([]string{"room_id", "voter_id", "role", "joined_at"}).
			AddRow("rm-1", "queen-bee", "queen", now))

	m, err := queryGetQueen(context.Background(), db, "rm-1")
	if err != nil {
		t.Fatalf("queryGetQueen: %v", err)
	}
	if m.VoterID != "queen-bee" || m.Role != model.RoleQueen {
		t.Errorf("unexpected member: %+v", m)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRunInTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO voter_health").
		WithArgs("rm-1", "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.IncrementVotesCast(context.Background(), "rm-1", "worker-1")
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

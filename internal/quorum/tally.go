package quorum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/quorum/internal/idgen"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

const (
	ResultQuorumNotMet   = "Quorum not met"
	timeoutResultPrefix  = "Voting timed out: "
	reasonNotOpenForVote = "is not open for voting"
)

// Outcome is the result of applying a decision's snapshotted rules to its votes.
type Outcome struct {
	Status    model.Status
	Yes       int
	No        int
	Abstain   int
	QuorumMet bool
	// Tie is set when a majority vote split exactly in half.
	Tie bool
	// QueenChoice is the queen's vote when it decided a tie.
	QueenChoice model.Choice
}

// Active returns the number of votes that count toward quorum and the ratio.
func (o Outcome) Active() int {
	return o.Yes + o.No
}

// Evaluate applies snap to votes. queenID names the room's queen and may be
// empty when the room has none. Abstentions, including the keeper's, never
// count toward quorum or the ratio.
func Evaluate(snap model.Snapshot, votes []*model.Vote, queenID string) Outcome {
	var o Outcome
	for _, v := range votes {
		switch v.Choice {
		case model.ChoiceYes:
			o.Yes++
		case model.ChoiceNo:
			o.No++
		case model.ChoiceAbstain:
			o.Abstain++
		}
	}

	active := o.Active()
	if active < snap.MinVoters {
		o.Status = model.StatusRejected
		return o
	}
	o.QuorumMet = true

	approved := false
	switch snap.Threshold {
	case model.ThresholdSupermajority:
		approved = active > 0 && 3*o.Yes >= 2*active
	case model.ThresholdUnanimous:
		approved = o.No == 0 && o.Yes == active
	default:
		if o.Yes*2 == active {
			o.Tie = true
			approved = breakTie(&o, snap.TieBreaker, votes, queenID)
		} else {
			approved = o.Yes*2 > active
		}
	}

	o.Status = model.StatusRejected
	if approved {
		o.Status = model.StatusApproved
	}
	return o
}

// breakTie resolves an exact majority split. Under the queen rule the
// queen's own ballot decides; a queen who abstained or never voted rejects.
func breakTie(o *Outcome, tb model.TieBreaker, votes []*model.Vote, queenID string) bool {
	if tb != model.TieBreakerQueen || queenID == "" {
		return false
	}
	for _, v := range votes {
		if v.VoterID == queenID {
			o.QueenChoice = v.Choice
			return v.Choice == model.ChoiceYes
		}
	}
	return false
}

// Result renders the outcome as the human-readable result string stored on
// the decision.
func (o Outcome) Result(snap model.Snapshot) string {
	if !o.QuorumMet {
		return fmt.Sprintf("%s (%d of %d required votes)", ResultQuorumNotMet, o.Active(), snap.MinVoters)
	}
	verdict := "Approved"
	if o.Status != model.StatusApproved {
		verdict = "Rejected"
	}
	counts := fmt.Sprintf("%d yes, %d no, %d abstain", o.Yes, o.No, o.Abstain)
	if !o.Tie {
		return fmt.Sprintf("%s by %s (%s)", verdict, snap.Threshold, counts)
	}
	switch {
	case snap.TieBreaker != model.TieBreakerQueen:
		return fmt.Sprintf("%s: tie with no tie-breaker (%s)", verdict, counts)
	case o.QueenChoice == "":
		return fmt.Sprintf("%s: tie, queen did not vote (%s)", verdict, counts)
	default:
		return fmt.Sprintf("%s: tie broken by queen voting %s (%s)", verdict, o.QueenChoice, counts)
	}
}

// CastVote records a vote on a decision that is open for voting. The voter
// must be on the room's roster. Once every roster member has voted the
// decision is tallied in the same transaction.
func (e *Engine) CastVote(ctx context.Context, decisionID, voterID string, choice model.Choice, reasoning string) (*model.Vote, error) {
	return e.castVote(ctx, "vote", decisionID, voterID, choice, reasoning, castReason)
}

// Vote is the legacy entry point. It behaves like CastVote but reports every
// non-voting decision the same way.
func (e *Engine) Vote(ctx context.Context, decisionID, voterID string, choice model.Choice, reasoning string) (*model.Vote, error) {
	return e.castVote(ctx, "vote", decisionID, voterID, choice, reasoning, func(model.Status) string {
		return reasonNotOpenForVote
	})
}

// castReason explains why a decision does not accept votes.
func castReason(s model.Status) string {
	switch {
	case s == model.StatusAnnounced:
		return "is an announcement and takes objections, not votes"
	case s.IsTerminal():
		return "is already resolved"
	}
	return reasonNotOpenForVote
}

func (e *Engine) castVote(ctx context.Context, op, decisionID, voterID string, choice model.Choice, reasoning string, reason func(model.Status) string) (*model.Vote, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, model.Invalid("voter_id", "is required")
	}
	if !choice.IsValid() {
		return nil, model.Invalid("choice", "invalid value %q", choice)
	}
	id, err := idgen.New(idgen.Vote)
	if err != nil {
		return nil, err
	}
	vote := &model.Vote{
		ID:         id,
		DecisionID: decisionID,
		VoterID:    voterID,
		Choice:     choice,
		Reasoning:  strings.TrimSpace(reasoning),
	}

	var (
		d       *model.Decision
		tallied bool
	)
	err = e.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		d, err = loadDecision(ctx, tx, decisionID)
		if err != nil {
			return err
		}
		if d.Status != model.StatusVoting {
			return stateError(op, d, reason(d.Status))
		}

		roster, err := tx.GetRoomVoters(ctx, d.RoomID)
		if err != nil {
			return fmt.Errorf("get roster for %s: %w", d.RoomID, err)
		}
		if !onRoster(roster, voterID) {
			return model.Invalid("voter_id", "%s is not a member of room %s", voterID, d.RoomID)
		}

		vote.CastAt = e.now()
		if err := tx.CreateVote(ctx, vote); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: %s already voted on %s", ErrDuplicateVote, voterID, decisionID)
			}
			return fmt.Errorf("create vote: %w", err)
		}

		cfg, err := e.governance(ctx, tx, d.RoomID)
		if err != nil {
			return err
		}
		if cfg.VoterHealth {
			if err := tx.IncrementVotesCast(ctx, d.RoomID, voterID); err != nil {
				return fmt.Errorf("increment votes cast: %w", err)
			}
		}

		votes, err := tx.GetVotes(ctx, decisionID)
		if err != nil {
			return fmt.Errorf("get votes for %s: %w", decisionID, err)
		}
		if !everyoneVoted(roster, votes) {
			return nil
		}
		tallied, err = e.tallyLocked(ctx, tx, d, votes, roster, cfg.VoterHealth, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("vote cast", "decision", decisionID, "voter", voterID, "choice", choice, "status", d.Status)
	if tallied {
		e.resolved(ctx, d, "")
	}
	return vote, nil
}

// Tally resolves a voting decision from the votes cast so far. Calling it
// on a decision that is already resolved returns the existing status and
// changes nothing.
func (e *Engine) Tally(ctx context.Context, decisionID string) (model.Status, error) {
	var (
		status  model.Status
		tallied *model.Decision
	)
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		d, err := loadDecision(ctx, tx, decisionID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			status = d.Status
			return nil
		}
		if d.Status != model.StatusVoting {
			return stateError("tally", d, reasonNotOpenForVote)
		}

		votes, roster, healthOn, err := e.ballotContext(ctx, tx, d)
		if err != nil {
			return err
		}
		ok, err := e.tallyLocked(ctx, tx, d, votes, roster, healthOn, false)
		if err != nil {
			return err
		}
		if !ok {
			return stateError("tally", d, "was resolved concurrently")
		}
		status, tallied = d.Status, d
		return nil
	})
	if err != nil {
		return "", err
	}
	if tallied != nil {
		e.resolved(ctx, tallied, "")
	}
	return status, nil
}

// ballotContext loads what a tally needs besides the decision itself.
func (e *Engine) ballotContext(ctx context.Context, tx store.Store, d *model.Decision) ([]*model.Vote, []*model.RoomMember, bool, error) {
	votes, err := tx.GetVotes(ctx, d.ID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("get votes for %s: %w", d.ID, err)
	}
	roster, err := tx.GetRoomVoters(ctx, d.RoomID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("get roster for %s: %w", d.RoomID, err)
	}
	cfg, err := e.governance(ctx, tx, d.RoomID)
	if err != nil {
		return nil, nil, false, err
	}
	return votes, roster, cfg.VoterHealth, nil
}

// tallyLocked evaluates and resolves a voting decision inside tx. It reports
// whether this caller's compare-and-set won; only the winner charges missed
// votes, so each absent member is penalised exactly once per decision.
func (e *Engine) tallyLocked(ctx context.Context, tx store.Store, d *model.Decision, votes []*model.Vote, roster []*model.RoomMember, healthOn, timedOut bool) (bool, error) {
	queenID := ""
	if d.Snapshot.TieBreaker == model.TieBreakerQueen {
		queen, err := tx.GetQueen(ctx, d.RoomID)
		switch {
		case err == nil:
			queenID = queen.VoterID
		case !errors.Is(err, store.ErrNotFound):
			return false, fmt.Errorf("get queen for %s: %w", d.RoomID, err)
		}
	}

	outcome := Evaluate(d.Snapshot, votes, queenID)
	result := outcome.Result(d.Snapshot)
	if timedOut && outcome.QuorumMet {
		result = timeoutResultPrefix + result
	}

	ok, err := resolve(ctx, tx, d, outcome.Status, result, e.now())
	if err != nil || !ok {
		return false, err
	}

	if healthOn {
		voted := make(map[string]bool, len(votes))
		for _, v := range votes {
			voted[v.VoterID] = true
		}
		for _, m := range roster {
			if voted[m.VoterID] {
				continue
			}
			if err := tx.IncrementVotesMissed(ctx, d.RoomID, m.VoterID); err != nil {
				return false, fmt.Errorf("increment votes missed for %s: %w", m.VoterID, err)
			}
		}
	}

	e.logger.Info("decision tallied",
		"decision", d.ID, "status", d.Status, "yes", outcome.Yes, "no", outcome.No,
		"abstain", outcome.Abstain, "quorum_met", outcome.QuorumMet, "timed_out", timedOut)
	return true, nil
}

// expireVote resolves a voting decision whose timeout has passed.
func (e *Engine) expireVote(ctx context.Context, tx store.Store, d *model.Decision) (bool, error) {
	if d.TimeoutAt == nil {
		return false, fmt.Errorf("voting decision %s has no timeout_at", d.ID)
	}
	votes, roster, healthOn, err := e.ballotContext(ctx, tx, d)
	if err != nil {
		return false, err
	}
	return e.tallyLocked(ctx, tx, d, votes, roster, healthOn, true)
}

func onRoster(roster []*model.RoomMember, voterID string) bool {
	for _, m := range roster {
		if m.VoterID == voterID {
			return true
		}
	}
	return false
}

// everyoneVoted reports whether every roster member has a vote, healthy
// or not.
func everyoneVoted(roster []*model.RoomMember, votes []*model.Vote) bool {
	if len(roster) == 0 {
		return false
	}
	voted := make(map[string]bool, len(votes))
	for _, v := range votes {
		voted[v.VoterID] = true
	}
	for _, m := range roster {
		if !voted[m.VoterID] {
			return false
		}
	}
	return true
}

// deadlinePassed reports whether d's pathway deadline is at or before now.
func deadlinePassed(d *model.Decision, now time.Time) bool {
	dl := d.Deadline()
	return dl != nil && !dl.After(now)
}

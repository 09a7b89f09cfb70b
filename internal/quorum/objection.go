package quorum

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

const (
	ResultKeeperApproved = "Keeper approved"
	ResultKeeperObjected = "Keeper objected"
	ResultNoObjections   = "No objections — auto-approved"
)

const reasonNotAnnounced = "is not open for objection"

// Object blocks an announced decision. The first objection wins; every
// later call, including one that lost a race, fails with ErrInvalidState.
func (e *Engine) Object(ctx context.Context, decisionID, voterID, reason string) (*model.Decision, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, model.Invalid("voter_id", "is required")
	}
	reason = strings.TrimSpace(reason)

	result := "Objected by " + voterID
	if reason != "" {
		result += ": " + reason
	}

	var d *model.Decision
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		d, err = e.closeAnnouncement(ctx, tx, "object", decisionID, model.StatusObjected, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("decision objected", "decision", d.ID, "room", d.RoomID, "voter", voterID)
	e.resolved(ctx, d, voterID)
	return d, nil
}

// KeeperVote lets the keeper settle an announced decision early. "yes" and
// "abstain" make it effective; "no" objects.
func (e *Engine) KeeperVote(ctx context.Context, decisionID string, choice model.Choice) (*model.Decision, error) {
	next, result := model.StatusEffective, ResultKeeperApproved
	switch choice {
	case model.ChoiceYes, model.ChoiceAbstain:
	case model.ChoiceNo:
		next, result = model.StatusObjected, ResultKeeperObjected
	default:
		return nil, model.Invalid("choice", "invalid value %q", choice)
	}

	var d *model.Decision
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		d, err = e.closeAnnouncement(ctx, tx, "keeper-vote", decisionID, next, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("keeper settled decision", "decision", d.ID, "room", d.RoomID, "choice", choice, "status", d.Status)
	e.resolved(ctx, d, model.KeeperVoterID)
	return d, nil
}

// closeAnnouncement moves an announced decision to next.
func (e *Engine) closeAnnouncement(ctx context.Context, tx store.Store, op, decisionID string, next model.Status, result string) (*model.Decision, error) {
	d, err := loadDecision(ctx, tx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.Status != model.StatusAnnounced {
		return nil, stateError(op, d, reasonNotAnnounced)
	}
	ok, err := resolve(ctx, tx, d, next, result, e.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stateError(op, d, "was resolved concurrently")
	}
	return d, nil
}

// expireAnnouncement makes an announced decision effective once its
// objection window has closed.
func (e *Engine) expireAnnouncement(ctx context.Context, tx store.Store, d *model.Decision) (bool, error) {
	if d.EffectiveAt == nil {
		return false, fmt.Errorf("announced decision %s has no effective_at", d.ID)
	}
	return resolve(ctx, tx, d, model.StatusEffective, ResultNoObjections, e.now())
}

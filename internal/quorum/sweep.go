package quorum

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// CheckExpiredDecisions resolves every pending decision whose deadline is at
// or before now: announcements become effective and votes are tallied over
// whatever ballots exist. It returns how many decisions this call resolved.
// A decision that cannot be resolved is logged and skipped; only a failure
// to list candidates is returned.
//
// Overlapping sweeps are safe. Each resolution is a compare-and-set, so a
// decision resolved elsewhere in the meantime is a no-op here.
func (e *Engine) CheckExpiredDecisions(ctx context.Context, now time.Time) (int, error) {
	due := now.UTC()
	candidates, err := e.store.ListDecisions(ctx, model.DecisionFilter{
		Status:    []model.Status{model.StatusAnnounced, model.StatusVoting},
		DueBefore: &due,
	})
	if err != nil {
		return 0, fmt.Errorf("list expired decisions: %w", err)
	}

	resolved := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		ok, err := e.expire(ctx, c.ID, due)
		if err != nil {
			e.logger.Warn("skipping decision in expiry sweep", "decision", c.ID, "err", err)
			continue
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

// expire resolves one decision if it is still pending and past its deadline.
func (e *Engine) expire(ctx context.Context, id string, now time.Time) (bool, error) {
	var resolved bool
	var d *model.Decision
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		d, err = loadDecision(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case d.Status.IsTerminal():
			return nil
		case d.Pathway == model.PathwayAnnouncement && d.Status == model.StatusAnnounced:
			if d.EffectiveAt != nil && !deadlinePassed(d, now) {
				return nil
			}
			resolved, err = e.expireAnnouncement(ctx, tx, d)
		case d.Pathway == model.PathwayVoting && d.Status == model.StatusVoting:
			if d.TimeoutAt != nil && !deadlinePassed(d, now) {
				return nil
			}
			resolved, err = e.expireVote(ctx, tx, d)
		default:
			err = fmt.Errorf("decision %s has status %s on pathway %s", d.ID, d.Status, d.Pathway)
		}
		return err
	})
	if err != nil {
		return false, err
	}
	if resolved {
		e.logger.Info("expired decision resolved", "decision", d.ID, "room", d.RoomID, "status", d.Status)
		e.resolved(ctx, d, "")
	}
	return resolved, nil
}

package quorum

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/quorum/internal/idgen"
	"github.com/alfredjeanlab/quorum/internal/model"
)

// ResultAutoApproved is the result recorded on auto-approved decisions.
const ResultAutoApproved = "Auto-approved"

// SubmitRequest describes a new proposal.
type SubmitRequest struct {
	RoomID     string
	ProposerID string
	Proposal   string
	Type       model.DecisionType
	// Pathway defaults to announcement when empty.
	Pathway model.Pathway
	// Delay overrides the room's announcement delay when non-nil.
	Delay *time.Duration
}

// Submit admits a proposal into a room. Decision types on the room's
// auto-approve list are created already approved; everything else opens an
// announcement window or a vote, with the room's tally rules snapshotted
// onto the decision.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*model.Decision, error) {
	if err := model.ValidateProposal(req.ProposerID, req.Proposal, req.Type, req.Pathway); err != nil {
		return nil, err
	}
	if req.Delay != nil && *req.Delay < 0 {
		return nil, model.Invalid("delay", "must be non-negative, got %s", *req.Delay)
	}

	if _, err := e.GetRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}
	cfg, err := e.governance(ctx, e.store, req.RoomID)
	if err != nil {
		return nil, err
	}

	id, err := idgen.New(idgen.Decision)
	if err != nil {
		return nil, err
	}

	pathway := req.Pathway
	if pathway == "" {
		pathway = model.PathwayAnnouncement
	}

	now := e.now()
	d := &model.Decision{
		ID:         id,
		RoomID:     req.RoomID,
		ProposerID: req.ProposerID,
		Proposal:   req.Proposal,
		Type:       req.Type,
		Pathway:    pathway,
		Snapshot:   cfg.Snapshot(),
		Sealed:     cfg.SealedBallot,
		CreatedAt:  now,
	}

	switch {
	case cfg.AutoApproves(req.Type):
		d.Status = model.StatusApproved
		d.Result = ResultAutoApproved
		d.ResolvedAt = &now
	case pathway == model.PathwayAnnouncement:
		delay := cfg.AnnouncementDelay.Std()
		if req.Delay != nil {
			delay = *req.Delay
		}
		at := now.Add(delay)
		d.Status = model.StatusAnnounced
		d.EffectiveAt = &at
	default:
		at := now.Add(cfg.VotingTimeout.Std())
		d.Status = model.StatusVoting
		d.TimeoutAt = &at
	}

	if err := e.store.CreateDecision(ctx, d); err != nil {
		return nil, fmt.Errorf("create decision: %w", err)
	}

	e.logger.Info("decision submitted",
		"decision", d.ID, "room", d.RoomID, "type", d.Type, "pathway", d.Pathway, "status", d.Status)
	e.recordActivity(ctx, d.RoomID, d.ProposerID, d.ID, submitSummary(d))

	return d, nil
}

func submitSummary(d *model.Decision) string {
	switch d.Status {
	case model.StatusApproved:
		return fmt.Sprintf("%s decision auto-approved: %s", d.Type, d.Proposal)
	case model.StatusAnnounced:
		return fmt.Sprintf("%s decision announced, effective %s: %s", d.Type, d.EffectiveAt.Format(time.RFC3339), d.Proposal)
	default:
		return fmt.Sprintf("%s decision put to a vote (%s): %s", d.Type, d.Snapshot.Threshold, d.Proposal)
	}
}

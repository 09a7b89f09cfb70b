package server

import (
	"context"
	"net/http"
	"time"

	"github.com/alfredjeanlab/quorum/internal/events"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/quorum"
)

type submitInput struct {
	ProposerID string             `json:"proposer_id"`
	Proposal   string             `json:"proposal"`
	Type       model.DecisionType `json:"type"`
	Pathway    model.Pathway      `json:"pathway,omitempty"`
	Delay      *model.Duration    `json:"delay,omitempty"`
}

// handleSubmitDecision handles POST /v1/rooms/{id}/decisions.
func (s *Server) handleSubmitDecision(w http.ResponseWriter, r *http.Request) {
	var in submitInput
	if !decodeBody(w, r, &in) {
		return
	}
	req := quorum.SubmitRequest{
		RoomID:     r.PathValue("id"),
		ProposerID: in.ProposerID,
		Proposal:   in.Proposal,
		Type:       in.Type,
		Pathway:    in.Pathway,
	}
	if in.Delay != nil {
		delay := in.Delay.Std()
		req.Delay = &delay
	}

	d, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.publish(r.Context(), events.TopicDecisionCreated, events.DecisionCreated{Decision: d})
	if d.Status.IsTerminal() {
		s.publish(r.Context(), events.TopicDecisionResolved, events.DecisionResolved{Decision: d})
	}
	writeJSON(w, http.StatusCreated, d)
}

// handleListDecisions handles GET /v1/rooms/{id}/decisions?status=a,b&limit=n.
func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	var statuses []model.Status
	for _, st := range splitList(r.URL.Query().Get("status")) {
		statuses = append(statuses, model.Status(st))
	}

	ds, err := s.engine.ListDecisions(r.Context(), r.PathValue("id"), statuses, limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if ds == nil {
		ds = []*model.Decision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": ds})
}

// decisionView is a decision with its ballots as they may be shown.
type decisionView struct {
	Decision *model.Decision `json:"decision"`
	Votes    []*model.Vote   `json:"votes"`
}

// handleGetDecision handles GET /v1/decisions/{id}. Ballots on a sealed
// decision are redacted until it resolves.
func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.engine.GetDecision(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	votes, err := s.engine.GetVotes(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if votes == nil {
		votes = []*model.Vote{}
	}
	writeJSON(w, http.StatusOK, decisionView{Decision: d, Votes: presentVotes(d, votes)})
}

type voteInput struct {
	VoterID   string       `json:"voter_id"`
	Choice    model.Choice `json:"choice"`
	Reasoning string       `json:"reasoning,omitempty"`
}

type castFunc func(ctx context.Context, decisionID, voterID string, choice model.Choice, reasoning string) (*model.Vote, error)

// handleCastVote handles POST /v1/decisions/{id}/votes.
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	s.serveVote(w, r, s.engine.CastVote)
}

// handleLegacyVote handles POST /v1/decisions/{id}/vote.
func (s *Server) handleLegacyVote(w http.ResponseWriter, r *http.Request) {
	s.serveVote(w, r, s.engine.Vote)
}

func (s *Server) serveVote(w http.ResponseWriter, r *http.Request, cast castFunc) {
	var in voteInput
	if !decodeBody(w, r, &in) {
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")

	vote, err := cast(ctx, id, in.VoterID, in.Choice, in.Reasoning)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.announceVote(ctx, vote)
	writeJSON(w, http.StatusCreated, vote)
}

// announceVote records and publishes a committed ballot, redacting its
// content while the decision is sealed and open.
func (s *Server) announceVote(ctx context.Context, vote *model.Vote) {
	d, err := s.engine.GetDecision(ctx, vote.DecisionID)
	if err != nil {
		s.logger.Warn("failed to load decision after vote", "decision", vote.DecisionID, "err", err)
		return
	}
	shown, summary := vote, "voted "+vote.Choice.String()
	if !ballotsVisible(d) {
		shown, summary = vote.Redacted(), "cast a sealed ballot"
	}
	s.record(ctx, model.ActivityKindVote, d.RoomID, vote.VoterID, d.ID, summary)
	s.publish(ctx, events.TopicVoteCast, events.VoteCast{RoomID: d.RoomID, Vote: shown, Status: d.Status})
}

type objectInput struct {
	VoterID string `json:"voter_id"`
	Reason  string `json:"reason,omitempty"`
}

// handleObject handles POST /v1/decisions/{id}/object.
func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	var in objectInput
	if !decodeBody(w, r, &in) {
		return
	}
	d, err := s.engine.Object(r.Context(), r.PathValue("id"), in.VoterID, in.Reason)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type keeperVoteInput struct {
	Choice model.Choice `json:"choice"`
}

// handleKeeperVote handles POST /v1/decisions/{id}/keeper-vote.
func (s *Server) handleKeeperVote(w http.ResponseWriter, r *http.Request) {
	var in keeperVoteInput
	if !decodeBody(w, r, &in) {
		return
	}
	d, err := s.engine.KeeperVote(r.Context(), r.PathValue("id"), in.Choice)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleTally handles POST /v1/decisions/{id}/tally.
func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, err := s.engine.Tally(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	d, err := s.engine.GetDecision(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "decision": d})
}

// handleSweep handles POST /v1/sweep, running one expiry sweep now.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.CheckExpiredDecisions(r.Context(), time.Now().UTC())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"resolved": n})
}

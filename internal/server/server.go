// Package server exposes the decision engine over HTTP/JSON, with a gRPC
// listener for health probes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/quorum/internal/events"
	"github.com/alfredjeanlab/quorum/internal/idgen"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/quorum"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// Server wires the engine to its transports. It records activity and
// publishes events for every mutation it serves, and for resolutions the
// engine makes on its own (sweeps and auto-tallies).
type Server struct {
	engine    *quorum.Engine
	activity  quorum.ActivityLog
	publisher events.Publisher
	sseHub    *sseHub
	logger    *slog.Logger
}

// New builds the engine over st and returns a Server around it. opts are
// passed through to quorum.New.
func New(st store.Store, p events.Publisher, logger *slog.Logger, opts ...quorum.Option) *Server {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		activity:  st,
		publisher: p,
		sseHub:    newSSEHub(),
		logger:    logger,
	}
	opts = append([]quorum.Option{quorum.WithLogger(logger)}, opts...)
	opts = append(opts, quorum.WithResolveHook(s.onResolve))
	s.engine = quorum.New(st, opts...)
	return s
}

// Engine returns the engine the server drives.
func (s *Server) Engine() *quorum.Engine {
	return s.engine
}

// onResolve announces a committed resolution.
func (s *Server) onResolve(ctx context.Context, d *model.Decision, actor string) {
	var event any = events.DecisionResolved{Decision: d, ResolvedBy: actor}
	if d.Status == model.StatusObjected {
		event = events.DecisionObjected{Decision: d, VoterID: actor}
	}
	s.record(ctx, model.ActivityKindDecision, d.RoomID, actor, d.ID, fmt.Sprintf("%s: %s", d.Status, d.Result))
	s.publish(ctx, events.ResolutionTopic(d), event)
}

// record appends an activity entry. Best-effort.
func (s *Server) record(ctx context.Context, kind, roomID, actor, subject, summary string) {
	id, err := idgen.New(idgen.Activity)
	if err != nil {
		s.logger.Warn("activity id generation failed", "room", roomID, "err", err)
		return
	}
	a := &model.Activity{
		ID:        id,
		RoomID:    roomID,
		Kind:      kind,
		Actor:     actor,
		Subject:   subject,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.activity.RecordActivity(ctx, a); err != nil {
		s.logger.Warn("failed to record activity", "room", roomID, "kind", kind, "err", err)
	}
}

// publish sends an event to the bus and to connected SSE clients. Failures
// are logged but do not block the caller.
func (s *Server) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event for SSE broadcast", "topic", topic, "err", err)
		return
	}
	s.sseHub.broadcast(topic, payload)
}

// ballotsVisible reports whether vote content on d may be shown.
func ballotsVisible(d *model.Decision) bool {
	return !d.Sealed || d.Status.IsTerminal()
}

// presentVotes returns votes as they may be shown for d.
func presentVotes(d *model.Decision, votes []*model.Vote) []*model.Vote {
	if ballotsVisible(d) {
		return votes
	}
	out := make([]*model.Vote, len(votes))
	for i, v := range votes {
		out[i] = v.Redacted()
	}
	return out
}

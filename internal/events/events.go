// Package events publishes decision lifecycle events to the message bus.
package events

import (
	"context"

	"github.com/alfredjeanlab/quorum/internal/model"
)

// Event topic constants
const (
	TopicDecisionCreated  = "quorum.decision.created"
	TopicDecisionResolved = "quorum.decision.resolved"
	TopicDecisionObjected = "quorum.decision.objected"
	TopicVoteCast         = "quorum.vote.cast"

	// TopicAll matches every quorum topic.
	TopicAll = "quorum.>"
)

// Event types

type DecisionCreated struct {
	Decision *model.Decision `json:"decision"`
}

// DecisionResolved is emitted once per decision, when it reaches a terminal
// status other than objected.
type DecisionResolved struct {
	Decision *model.Decision `json:"decision"`
	// ResolvedBy is the actor that triggered resolution; empty for a tally
	// or sweep.
	ResolvedBy string `json:"resolved_by,omitempty"`
}

// DecisionObjected is emitted when an objection or a keeper "no" closes an
// announcement. The reason, if any, is part of Decision.Result.
type DecisionObjected struct {
	Decision *model.Decision `json:"decision"`
	VoterID  string          `json:"voter_id"`
}

// VoteCast carries the ballot, redacted when the decision is sealed.
type VoteCast struct {
	RoomID string       `json:"room_id"`
	Vote   *model.Vote  `json:"vote"`
	Status model.Status `json:"status"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// ResolutionTopic returns the topic announcing that d left its pathway's
// open state.
func ResolutionTopic(d *model.Decision) string {
	if d.Status == model.StatusObjected {
		return TopicDecisionObjected
	}
	return TopicDecisionResolved
}

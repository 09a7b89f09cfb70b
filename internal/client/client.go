// Package client provides a transport-agnostic interface for the quorum
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/quorum/internal/model"
)

// Client is the interface the qd CLI uses to talk to a quorum server.
type Client interface {
	// Rooms
	CreateRoom(ctx context.Context, name string) (*model.Room, error)
	ListRooms(ctx context.Context) ([]*model.Room, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	GetGovernance(ctx context.Context, roomID string) (*model.GovernanceConfig, error)
	SetGovernance(ctx context.Context, roomID string, cfg model.GovernanceConfig) (*model.GovernanceConfig, error)

	// Members
	ListMembers(ctx context.Context, roomID string) ([]*model.RoomMember, error)
	AddMember(ctx context.Context, roomID, voterID string, role model.Role) (*model.RoomMember, error)
	RemoveMember(ctx context.Context, roomID, voterID string) error
	EligibleVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error)
	VoterHealth(ctx context.Context, roomID string, threshold *float64) (*VoterHealthResponse, error)
	Activity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error)

	// Decisions
	SubmitDecision(ctx context.Context, roomID string, req *SubmitRequest) (*model.Decision, error)
	ListDecisions(ctx context.Context, roomID string, req *ListDecisionsRequest) ([]*model.Decision, error)
	GetDecision(ctx context.Context, id string) (*DecisionView, error)
	CastVote(ctx context.Context, decisionID string, req *VoteRequest) (*model.Vote, error)
	Vote(ctx context.Context, decisionID string, req *VoteRequest) (*model.Vote, error)
	Object(ctx context.Context, decisionID, voterID, reason string) (*model.Decision, error)
	KeeperVote(ctx context.Context, decisionID string, choice model.Choice) (*model.Decision, error)
	Tally(ctx context.Context, decisionID string) (*TallyResponse, error)
	Sweep(ctx context.Context) (int, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// SubmitRequest holds parameters for submitting a decision.
type SubmitRequest struct {
	ProposerID string             `json:"proposer_id"`
	Proposal   string             `json:"proposal"`
	Type       model.DecisionType `json:"type"`
	Pathway    model.Pathway      `json:"pathway,omitempty"`
	Delay      *model.Duration    `json:"delay,omitempty"`
}

// ListDecisionsRequest filters a room's decisions.
type ListDecisionsRequest struct {
	Status []model.Status
	Limit  int
}

// VoteRequest holds a single ballot.
type VoteRequest struct {
	VoterID   string       `json:"voter_id"`
	Choice    model.Choice `json:"choice"`
	Reasoning string       `json:"reasoning,omitempty"`
}

// DecisionView is a decision with its ballots. Sealed ballots come back
// without choice or reasoning until the decision resolves.
type DecisionView struct {
	Decision *model.Decision `json:"decision"`
	Votes    []*model.Vote   `json:"votes"`
}

// TallyResponse is the outcome of a tally request.
type TallyResponse struct {
	Status   model.Status    `json:"status"`
	Decision *model.Decision `json:"decision"`
}

// VoterHealthResponse is a room's per-voter participation report.
type VoterHealthResponse struct {
	Threshold float64             `json:"threshold"`
	Voters    []model.VoterHealth `json:"voters"`
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)

// Store defines the persistence interface for rooms, decisions and votes.
type Store interface {
	// Rooms
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	ListRooms(ctx context.Context) ([]*model.Room, error)

	// Governance. GetRoomGovernanceConfig returns ErrNotFound for rooms that
	// have never been configured.
	SetRoomGovernanceConfig(ctx context.Context, roomID string, cfg *model.GovernanceConfig) error
	GetRoomGovernanceConfig(ctx context.Context, roomID string) (*model.GovernanceConfig, error)

	// Roster
	AddRoomMember(ctx context.Context, member *model.RoomMember) error
	RemoveRoomMember(ctx context.Context, roomID, voterID string) error
	GetRoomVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error)
	GetQueen(ctx context.Context, roomID string) (*model.RoomMember, error)

	// Decisions
	CreateDecision(ctx context.Context, d *model.Decision) error
	GetDecision(ctx context.Context, id string) (*model.Decision, error)
	// GetDecisionForUpdate reads a decision and locks it for the remainder
	// of the enclosing transaction where the backend supports row locks.
	GetDecisionForUpdate(ctx context.Context, id string) (*model.Decision, error)
	ListDecisions(ctx context.Context, filter model.DecisionFilter) ([]*model.Decision, error)
	// UpdateDecisionStatus writes newStatus and result only if the stored
	// status still equals expected. It reports whether the row was updated.
	UpdateDecisionStatus(ctx context.Context, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error)

	// Votes
	CreateVote(ctx context.Context, vote *model.Vote) error
	GetVotes(ctx context.Context, decisionID string) ([]*model.Vote, error)

	// Voter health
	IncrementVotesCast(ctx context.Context, roomID, voterID string) error
	IncrementVotesMissed(ctx context.Context, roomID, voterID string) error
	GetVoterHealth(ctx context.Context, roomID string) ([]*model.VoterHealthRecord, error)

	// Activity log
	RecordActivity(ctx context.Context, a *model.Activity) error
	ListActivity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

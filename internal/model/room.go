package model

import "time"

// KeeperVoterID is the voter slot used for the human keeper when a room has
// no explicit keeper member.
const KeeperVoterID = "keeper"

// Role is a room member's function.
type Role string

const (
	RoleQueen  Role = "queen"
	RoleWorker Role = "worker"
	RoleKeeper Role = "keeper"
)

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleQueen, RoleWorker, RoleKeeper:
		return true
	}
	return false
}

// Room is the organizational unit decisions are made in.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomMember is one entry on a room's voting roster.
type RoomMember struct {
	RoomID   string    `json:"room_id"`
	VoterID  string    `json:"voter_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// GovernanceConfig is a room's mutable decision policy. Decisions copy the
// tally rules out of it via Snapshot when they are created.
type GovernanceConfig struct {
	Threshold            Threshold      `json:"threshold" toml:"threshold"`
	TieBreaker           TieBreaker     `json:"tie_breaker" toml:"tie_breaker"`
	MinVoters            int            `json:"min_voters" toml:"min_voters"`
	SealedBallot         bool           `json:"sealed_ballot" toml:"sealed_ballot"`
	VoterHealth          bool           `json:"voter_health" toml:"voter_health"`
	VoterHealthThreshold float64        `json:"voter_health_threshold" toml:"voter_health_threshold"`
	AutoApprove          []DecisionType `json:"auto_approve,omitempty" toml:"auto_approve"`
	AnnouncementDelay    Duration       `json:"announcement_delay" toml:"announcement_delay"`
	VotingTimeout        Duration       `json:"voting_timeout" toml:"voting_timeout"`
}

// DefaultGovernanceConfig returns the policy applied to rooms that have never
// been configured.
func DefaultGovernanceConfig() GovernanceConfig {
	return GovernanceConfig{
		Threshold:            ThresholdMajority,
		TieBreaker:           TieBreakerQueen,
		MinVoters:            0,
		VoterHealthThreshold: 0.5,
		AnnouncementDelay:    Duration(10 * time.Minute),
		VotingTimeout:        Duration(time.Hour),
	}
}

// Snapshot returns the tally rules to copy onto a new decision.
func (c GovernanceConfig) Snapshot() Snapshot {
	return Snapshot{
		Threshold:  c.Threshold,
		TieBreaker: c.TieBreaker,
		MinVoters:  c.MinVoters,
	}
}

// AutoApproves reports whether decisions of type t skip voting entirely.
func (c GovernanceConfig) AutoApproves(t DecisionType) bool {
	for _, at := range c.AutoApprove {
		if at == t {
			return true
		}
	}
	return false
}

package model

import "time"

// DecisionType classifies a proposal. Well-known constants are provided below,
// but decision types are extensible; rooms may auto-approve custom types.
type DecisionType string

const (
	TypeLowImpact DecisionType = "low_impact"
	TypeResource  DecisionType = "resource"
	TypeStrategy  DecisionType = "strategy"
)

// String returns the string representation of the decision type.
func (t DecisionType) String() string {
	return string(t)
}

// Pathway selects how a decision is resolved.
type Pathway string

const (
	// PathwayVoting resolves through an explicit yes/no/abstain tally.
	PathwayVoting Pathway = "voting"
	// PathwayAnnouncement takes effect after a delay unless someone objects.
	PathwayAnnouncement Pathway = "announcement"
)

// String returns the string representation of the pathway.
func (p Pathway) String() string {
	return string(p)
}

// IsValid checks whether the pathway is a known value.
func (p Pathway) IsValid() bool {
	switch p {
	case PathwayVoting, PathwayAnnouncement:
		return true
	}
	return false
}

// Status is the lifecycle state of a decision.
type Status string

const (
	StatusVoting    Status = "voting"
	StatusAnnounced Status = "announced"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusEffective Status = "effective"
	StatusObjected  Status = "objected"
	StatusExpired   Status = "expired"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusVoting, StatusAnnounced, StatusApproved, StatusRejected,
		StatusEffective, StatusObjected, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusEffective, StatusObjected, StatusExpired:
		return true
	}
	return false
}

// Threshold is the approval rule applied by a tally.
type Threshold string

const (
	ThresholdMajority      Threshold = "majority"
	ThresholdSupermajority Threshold = "supermajority"
	ThresholdUnanimous     Threshold = "unanimous"
)

// IsValid checks whether the threshold is a known value.
func (t Threshold) IsValid() bool {
	switch t {
	case ThresholdMajority, ThresholdSupermajority, ThresholdUnanimous:
		return true
	}
	return false
}

// TieBreaker decides exact majority ties.
type TieBreaker string

const (
	TieBreakerQueen TieBreaker = "queen"
	TieBreakerNone  TieBreaker = "none"
)

// IsValid checks whether the tie breaker is a known value.
func (t TieBreaker) IsValid() bool {
	switch t {
	case TieBreakerQueen, TieBreakerNone:
		return true
	}
	return false
}

// Snapshot holds the tally rules copied from the room's governance config at
// the moment a decision is created. It is a value type so a Decision never
// shares state with the mutable room config.
type Snapshot struct {
	Threshold  Threshold  `json:"threshold"`
	TieBreaker TieBreaker `json:"tie_breaker"`
	MinVoters  int        `json:"min_voters"`
}

// Decision is a proposal submitted to a room for collective approval.
type Decision struct {
	ID          string       `json:"id"`
	RoomID      string       `json:"room_id"`
	ProposerID  string       `json:"proposer_id"`
	Proposal    string       `json:"proposal"`
	Type        DecisionType `json:"type"`
	Pathway     Pathway      `json:"pathway"`
	Status      Status       `json:"status"`
	Snapshot    Snapshot     `json:"snapshot"`
	Sealed      bool         `json:"sealed"`
	EffectiveAt *time.Time   `json:"effective_at,omitempty"`
	TimeoutAt   *time.Time   `json:"timeout_at,omitempty"`
	Result      string       `json:"result,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
}

// Deadline returns the pathway-specific instant after which the expiry sweep
// resolves the decision, or nil when none is set.
func (d *Decision) Deadline() *time.Time {
	switch d.Pathway {
	case PathwayAnnouncement:
		return d.EffectiveAt
	case PathwayVoting:
		return d.TimeoutAt
	}
	return nil
}

// DecisionFilter holds the filter criteria for listing decisions.
type DecisionFilter struct {
	RoomID    string
	Status    []Status
	DueBefore *time.Time // matches effective_at/timeout_at <= DueBefore
	Limit     int
}

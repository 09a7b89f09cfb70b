package model

import "time"

// Choice is a single voter's ballot.
type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

// String returns the string representation of the choice.
func (c Choice) String() string {
	return string(c)
}

// IsValid checks whether the choice is a known value.
func (c Choice) IsValid() bool {
	switch c {
	case ChoiceYes, ChoiceNo, ChoiceAbstain:
		return true
	}
	return false
}

// Vote is one voter's ballot on one decision. At most one Vote exists per
// (DecisionID, VoterID).
type Vote struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	VoterID    string    `json:"voter_id"`
	Choice     Choice    `json:"choice"`
	Reasoning  string    `json:"reasoning,omitempty"`
	CastAt     time.Time `json:"cast_at"`
}

// Redacted returns a copy of v with the ballot content removed. Used when a
// decision is sealed; the stored vote is never modified.
func (v *Vote) Redacted() *Vote {
	return &Vote{
		ID:         v.ID,
		DecisionID: v.DecisionID,
		VoterID:    v.VoterID,
		CastAt:     v.CastAt,
	}
}

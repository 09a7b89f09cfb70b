package model

// VoterHealthRecord holds the persisted participation counters for one voter
// in one room.
type VoterHealthRecord struct {
	RoomID      string `json:"room_id"`
	VoterID     string `json:"voter_id"`
	VotesCast   int    `json:"votes_cast"`
	VotesMissed int    `json:"votes_missed"`
}

// ParticipationRate returns cast/(cast+missed). A voter with no history has
// a rate of 1 so that cold start is never penalized.
func (r *VoterHealthRecord) ParticipationRate() float64 {
	total := r.VotesCast + r.VotesMissed
	if total == 0 {
		return 1
	}
	return float64(r.VotesCast) / float64(total)
}

// IsHealthy reports whether the participation rate meets threshold.
func (r *VoterHealthRecord) IsHealthy(threshold float64) bool {
	if r.VotesCast+r.VotesMissed == 0 {
		return true
	}
	return r.ParticipationRate() >= threshold
}

// VoterHealth is the derived health view returned to callers.
type VoterHealth struct {
	VoterID           string  `json:"voter_id"`
	Role              Role    `json:"role,omitempty"`
	VotesCast         int     `json:"votes_cast"`
	VotesMissed       int     `json:"votes_missed"`
	ParticipationRate float64 `json:"participation_rate"`
	IsHealthy         bool    `json:"is_healthy"`
}

package model

import "time"

// Activity kinds.
const (
	// ActivityKindDecision tags submissions and resolutions.
	ActivityKindDecision = "decision"
	ActivityKindVote     = "vote"
	// ActivityKindRoom tags roster and governance changes.
	ActivityKindRoom = "room"
)

// Activity is one entry in a room's activity log.
type Activity struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor,omitempty"`
	Subject   string    `json:"subject,omitempty"` // decision or voter ID
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

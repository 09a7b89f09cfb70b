package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrInvalid is matched by every *ValidationError via errors.Is.
var ErrInvalid = errors.New("validation failed")

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// result returns e as an error, or nil when no rule failed.
func (e *ValidationError) result() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Invalid returns a *ValidationError with a single field error.
func Invalid(field, format string, args ...any) error {
	var ve ValidationError
	ve.add(field, format, args...)
	return &ve
}

var decisionTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateDecisionType checks that t is a lowercase snake_case identifier.
func ValidateDecisionType(t DecisionType) error {
	if !decisionTypePattern.MatchString(string(t)) {
		return Invalid("type", "invalid decision type %q (want lowercase snake_case)", t)
	}
	return nil
}

// ValidateGovernanceConfig checks a GovernanceConfig for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the config is valid.
func ValidateGovernanceConfig(c *GovernanceConfig) error {
	var ve ValidationError

	if !c.Threshold.IsValid() {
		ve.add("threshold", "invalid value %q", c.Threshold)
	}
	if !c.TieBreaker.IsValid() {
		ve.add("tie_breaker", "invalid value %q", c.TieBreaker)
	}
	if c.MinVoters < 0 {
		ve.add("min_voters", "must be non-negative, got %d", c.MinVoters)
	}
	if math.IsNaN(c.VoterHealthThreshold) || c.VoterHealthThreshold < 0 || c.VoterHealthThreshold > 1 {
		ve.add("voter_health_threshold", "must be between 0 and 1, got %v", c.VoterHealthThreshold)
	}
	if c.AnnouncementDelay < 0 {
		ve.add("announcement_delay", "must be non-negative, got %s", c.AnnouncementDelay)
	}
	if c.VotingTimeout <= 0 {
		ve.add("voting_timeout", "must be positive, got %s", c.VotingTimeout)
	}
	for _, t := range c.AutoApprove {
		if !decisionTypePattern.MatchString(string(t)) {
			ve.add("auto_approve", "invalid decision type %q", t)
		}
	}

	return ve.result()
}

// ValidateRoomMember checks a RoomMember for constraint violations.
func ValidateRoomMember(m *RoomMember) error {
	var ve ValidationError

	if strings.TrimSpace(m.RoomID) == "" {
		ve.add("room_id", "is required")
	}
	if strings.TrimSpace(m.VoterID) == "" {
		ve.add("voter_id", "is required")
	}
	if !m.Role.IsValid() {
		ve.add("role", "invalid value %q", m.Role)
	}

	return ve.result()
}

// ValidateProposal checks the caller-supplied fields of a new decision.
// An empty pathway is accepted and means "use the default".
func ValidateProposal(proposerID, proposal string, t DecisionType, p Pathway) error {
	var ve ValidationError

	if strings.TrimSpace(proposerID) == "" {
		ve.add("proposer_id", "is required")
	}
	if strings.TrimSpace(proposal) == "" {
		ve.add("proposal", "is required")
	}
	if !decisionTypePattern.MatchString(string(t)) {
		ve.add("type", "invalid decision type %q (want lowercase snake_case)", t)
	}
	if p != "" && !p.IsValid() {
		ve.add("pathway", "invalid value %q", p)
	}

	return ve.result()
}

package quorum

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/quorum/internal/model"
)

var (
	// ErrNotFound is matched by every missing-entity error.
	ErrNotFound = errors.New("not found")
	// ErrRoomNotFound is returned when the referenced room does not exist.
	ErrRoomNotFound = fmt.Errorf("room %w", ErrNotFound)
	// ErrDecisionNotFound is returned when the referenced decision does not exist.
	ErrDecisionNotFound = fmt.Errorf("decision %w", ErrNotFound)
	// ErrInvalidState is returned when an operation requires a decision
	// status other than the current one.
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicateVote is returned when a voter has already voted on a decision.
	ErrDuplicateVote = errors.New("duplicate vote")
	// ErrValidation is matched by every *model.ValidationError.
	ErrValidation = model.ErrInvalid
)

// StateError reports an operation attempted on a decision that is not in
// the required source status. It matches ErrInvalidState.
type StateError struct {
	DecisionID string
	Status     model.Status
	Op         string
	Reason     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: decision %s %s (status %s)", e.Op, e.DecisionID, e.Reason, e.Status)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

func stateError(op string, d *model.Decision, reason string) error {
	return &StateError{DecisionID: d.ID, Status: d.Status, Op: op, Reason: reason}
}

func roomNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
}

func decisionNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
}

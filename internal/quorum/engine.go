// Package quorum implements the decision engine: proposal admission, the
// announce-then-object window, the vote ledger and tally, voter health
// tracking and the expiry sweep.
//
// Every state change is a compare-and-set on the decision's status, run
// inside a store transaction, so the engine can be called concurrently from
// many request handlers and replicas while a periodic sweep runs alongside.
package quorum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/quorum/internal/idgen"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ActivityLog receives activity entries produced by the engine.
type ActivityLog interface {
	RecordActivity(ctx context.Context, a *model.Activity) error
}

// ResolveHook is called after a decision reaches a terminal status and the
// transition has committed. actor is empty for tallies and sweeps.
type ResolveHook func(ctx context.Context, d *model.Decision, actor string)

// Engine is the decision/quorum engine.
type Engine struct {
	store     store.Store
	activity  ActivityLog
	clock     Clock
	logger    *slog.Logger
	defaults  model.GovernanceConfig
	onResolve ResolveHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithActivityLog routes activity entries somewhere other than the store.
func WithActivityLog(a ActivityLog) Option {
	return func(e *Engine) { e.activity = a }
}

// WithDefaultGovernance sets the governance config applied to rooms that
// have never been configured.
func WithDefaultGovernance(cfg model.GovernanceConfig) Option {
	return func(e *Engine) { e.defaults = cfg }
}

// WithResolveHook registers fn to run after every committed resolution,
// including those made by the expiry sweep and by the last ballot of a vote.
// Decisions auto-approved at submission do not trigger it.
func WithResolveHook(fn ResolveHook) Option {
	return func(e *Engine) { e.onResolve = fn }
}

// New creates an Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		activity: s,
		clock:    systemClock{},
		logger:   slog.Default(),
		defaults: model.DefaultGovernanceConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

// governance returns the room's live config, falling back to the engine
// defaults for rooms that have never been configured.
func (e *Engine) governance(ctx context.Context, s store.Store, roomID string) (model.GovernanceConfig, error) {
	cfg, err := s.GetRoomGovernanceConfig(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return e.defaults, nil
	}
	if err != nil {
		return model.GovernanceConfig{}, fmt.Errorf("get governance for %s: %w", roomID, err)
	}
	return *cfg, nil
}

// loadDecision reads a decision with a row lock, translating store misses.
func loadDecision(ctx context.Context, s store.Store, id string) (*model.Decision, error) {
	d, err := s.GetDecisionForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, decisionNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision %s: %w", id, err)
	}
	return d, nil
}

// resolve moves d from its current status to next through the store's
// compare-and-set. It reports whether this caller won the transition.
func resolve(ctx context.Context, s store.Store, d *model.Decision, next model.Status, result string, at time.Time) (bool, error) {
	ok, err := s.UpdateDecisionStatus(ctx, d.ID, d.Status, next, result, at)
	if err != nil {
		return false, fmt.Errorf("update decision %s: %w", d.ID, err)
	}
	if !ok {
		return false, nil
	}
	d.Status = next
	d.Result = result
	d.ResolvedAt = &at
	return true, nil
}

func (e *Engine) resolved(ctx context.Context, d *model.Decision, actor string) {
	if e.onResolve != nil {
		e.onResolve(ctx, d, actor)
	}
}

// recordActivity appends an activity entry. Failures are logged, never returned.
func (e *Engine) recordActivity(ctx context.Context, roomID, actor, subject, summary string) {
	id, err := idgen.New(idgen.Activity)
	if err != nil {
		e.logger.Warn("activity id generation failed", "room", roomID, "err", err)
		return
	}
	a := &model.Activity{
		ID:        id,
		RoomID:    roomID,
		Kind:      model.ActivityKindDecision,
		Actor:     actor,
		Subject:   subject,
		Summary:   summary,
		CreatedAt: e.now(),
	}
	if err := e.activity.RecordActivity(ctx, a); err != nil {
		e.logger.Warn("failed to record activity", "room", roomID, "decision", subject, "err", err)
	}
}

// GetDecision returns a decision by ID.
func (e *Engine) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	d, err := e.store.GetDecision(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, decisionNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision %s: %w", id, err)
	}
	return d, nil
}

// GetVotes returns every vote cast on a decision, in cast order.
func (e *Engine) GetVotes(ctx context.Context, decisionID string) ([]*model.Vote, error) {
	if _, err := e.GetDecision(ctx, decisionID); err != nil {
		return nil, err
	}
	votes, err := e.store.GetVotes(ctx, decisionID)
	if err != nil {
		return nil, fmt.Errorf("get votes for %s: %w", decisionID, err)
	}
	return votes, nil
}

// ListDecisions returns a room's decisions, newest first, optionally
// filtered by status.
func (e *Engine) ListDecisions(ctx context.Context, roomID string, statuses []model.Status, limit int) ([]*model.Decision, error) {
	if _, err := e.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, model.Invalid("status", "invalid value %q", st)
		}
	}
	ds, err := e.store.ListDecisions(ctx, model.DecisionFilter{RoomID: roomID, Status: statuses, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list decisions for %s: %w", roomID, err)
	}
	return ds, nil
}

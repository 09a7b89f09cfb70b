package quorum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/quorum/internal/idgen"
	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// CreateRoom creates a room and stores the engine's default governance
// config for it.
func (e *Engine) CreateRoom(ctx context.Context, name string) (*model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Invalid("name", "is required")
	}
	id, err := idgen.New(idgen.Room)
	if err != nil {
		return nil, err
	}
	room := &model.Room{ID: id, Name: name, CreatedAt: e.now()}
	cfg := e.defaults

	err = e.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		if err := tx.SetRoomGovernanceConfig(ctx, room.ID, &cfg); err != nil {
			return fmt.Errorf("set governance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom returns a room by ID.
func (e *Engine) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	room, err := e.store.GetRoom(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, roomNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	return room, nil
}

// ListRooms returns every room.
func (e *Engine) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return e.store.ListRooms(ctx)
}

// Governance returns the room's effective governance config.
func (e *Engine) Governance(ctx context.Context, roomID string) (*model.GovernanceConfig, error) {
	if _, err := e.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	cfg, err := e.governance(ctx, e.store, roomID)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetGovernance validates and replaces the room's governance config.
// Decisions already in flight keep their snapshot.
func (e *Engine) SetGovernance(ctx context.Context, roomID string, cfg *model.GovernanceConfig) error {
	if err := model.ValidateGovernanceConfig(cfg); err != nil {
		return err
	}
	if _, err := e.GetRoom(ctx, roomID); err != nil {
		return err
	}
	if err := e.store.SetRoomGovernanceConfig(ctx, roomID, cfg); err != nil {
		return fmt.Errorf("set governance for %s: %w", roomID, err)
	}
	return nil
}

// AddMember adds a voter to the room's roster, or changes the role of an
// existing member. A room holds at most one queen.
func (e *Engine) AddMember(ctx context.Context, m *model.RoomMember) error {
	if err := model.ValidateRoomMember(m); err != nil {
		return err
	}
	if _, err := e.GetRoom(ctx, m.RoomID); err != nil {
		return err
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = e.now()
	}
	err := e.store.AddRoomMember(ctx, m)
	if errors.Is(err, store.ErrDuplicate) {
		return model.Invalid("role", "room %s already has a queen", m.RoomID)
	}
	if err != nil {
		return fmt.Errorf("add member %s: %w", m.VoterID, err)
	}
	return nil
}

// RemoveMember removes a voter from the roster. Votes already cast stay.
func (e *Engine) RemoveMember(ctx context.Context, roomID, voterID string) error {
	err := e.store.RemoveRoomMember(ctx, roomID, voterID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("member %s of room %s: %w", voterID, roomID, ErrNotFound)
	}
	return err
}

// Members returns the room's full roster.
func (e *Engine) Members(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	if _, err := e.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return e.store.GetRoomVoters(ctx, roomID)
}

// Activity returns the room's most recent activity entries.
func (e *Engine) Activity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error) {
	if _, err := e.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return e.store.ListActivity(ctx, roomID, limit)
}

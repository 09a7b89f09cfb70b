// Package sqlite implements the store.Store interface backed by a single
// SQLite database file. It is intended for single-node deployments and
// local development.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.Store backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens the SQLite database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite serialises writers; a single connection turns concurrent
	// transactions into a queue instead of SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTransaction runs fn inside a single SQLite transaction. fn must only
// use the store it is handed; the parent store's one connection is held by
// the transaction until it finishes.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&txStore{q: queries{db: tx, now: s.now}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) q() queries { return queries{db: s.db, now: s.now} }

func (s *Store) CreateRoom(ctx context.Context, room *model.Room) error {
	return s.q().createRoom(ctx, room)
}

func (s *Store) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return s.q().getRoom(ctx, id)
}

func (s *Store) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return s.q().listRooms(ctx)
}

func (s *Store) SetRoomGovernanceConfig(ctx context.Context, roomID string, cfg *model.GovernanceConfig) error {
	return s.q().setGovernance(ctx, roomID, cfg)
}

func (s *Store) GetRoomGovernanceConfig(ctx context.Context, roomID string) (*model.GovernanceConfig, error) {
	return s.q().getGovernance(ctx, roomID)
}

func (s *Store) AddRoomMember(ctx context.Context, member *model.RoomMember) error {
	return s.q().addMember(ctx, member)
}

func (s *Store) RemoveRoomMember(ctx context.Context, roomID, voterID string) error {
	return s.q().removeMember(ctx, roomID, voterID)
}

func (s *Store) GetRoomVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	return s.q().getRoomVoters(ctx, roomID)
}

func (s *Store) GetQueen(ctx context.Context, roomID string) (*model.RoomMember, error) {
	return s.q().getQueen(ctx, roomID)
}

func (s *Store) CreateDecision(ctx context.Context, d *model.Decision) error {
	return s.q().createDecision(ctx, d)
}

func (s *Store) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	return s.q().getDecision(ctx, id)
}

// GetDecisionForUpdate is a plain read. With one connection, any enclosing
// transaction already excludes every other writer.
func (s *Store) GetDecisionForUpdate(ctx context.Context, id string) (*model.Decision, error) {
	return s.q().getDecision(ctx, id)
}

func (s *Store) ListDecisions(ctx context.Context, filter model.DecisionFilter) ([]*model.Decision, error) {
	return s.q().listDecisions(ctx, filter)
}

func (s *Store) UpdateDecisionStatus(ctx context.Context, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error) {
	return s.q().updateDecisionStatus(ctx, id, expected, newStatus, result, resolvedAt)
}

func (s *Store) CreateVote(ctx context.Context, vote *model.Vote) error {
	return s.q().createVote(ctx, vote)
}

func (s *Store) GetVotes(ctx context.Context, decisionID string) ([]*model.Vote, error) {
	return s.q().getVotes(ctx, decisionID)
}

func (s *Store) IncrementVotesCast(ctx context.Context, roomID, voterID string) error {
	return s.q().incrementHealth(ctx, roomID, voterID, "votes_cast")
}

func (s *Store) IncrementVotesMissed(ctx context.Context, roomID, voterID string) error {
	return s.q().incrementHealth(ctx, roomID, voterID, "votes_missed")
}

func (s *Store) GetVoterHealth(ctx context.Context, roomID string) ([]*model.VoterHealthRecord, error) {
	return s.q().getVoterHealth(ctx, roomID)
}

func (s *Store) RecordActivity(ctx context.Context, a *model.Activity) error {
	return s.q().recordActivity(ctx, a)
}

func (s *Store) ListActivity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error) {
	return s.q().listActivity(ctx, roomID, limit)
}

// txStore implements store.Store inside an open transaction.
type txStore struct {
	q queries
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateRoom(ctx context.Context, room *model.Room) error {
	return s.q.createRoom(ctx, room)
}

func (s *txStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return s.q.getRoom(ctx, id)
}

func (s *txStore) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return s.q.listRooms(ctx)
}

func (s *txStore) SetRoomGovernanceConfig(ctx context.Context, roomID string, cfg *model.GovernanceConfig) error {
	return s.q.setGovernance(ctx, roomID, cfg)
}

func (s *txStore) GetRoomGovernanceConfig(ctx context.Context, roomID string) (*model.GovernanceConfig, error) {
	return s.q.getGovernance(ctx, roomID)
}

func (s *txStore) AddRoomMember(ctx context.Context, member *model.RoomMember) error {
	return s.q.addMember(ctx, member)
}

func (s *txStore) RemoveRoomMember(ctx context.Context, roomID, voterID string) error {
	return s.q.removeMember(ctx, roomID, voterID)
}

func (s *txStore) GetRoomVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	return s.q.getRoomVoters(ctx, roomID)
}

func (s *txStore) GetQueen(ctx context.Context, roomID string) (*model.RoomMember, error) {
	return s.q.getQueen(ctx, roomID)
}

func (s *txStore) CreateDecision(ctx context.Context, d *model.Decision) error {
	return s.q.createDecision(ctx, d)
}

func (s *txStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	return s.q.getDecision(ctx, id)
}

func (s *txStore) GetDecisionForUpdate(ctx context.Context, id string) (*model.Decision, error) {
	return s.q.getDecision(ctx, id)
}

func (s *txStore) ListDecisions(ctx context.Context, filter model.DecisionFilter) ([]*model.Decision, error) {
	return s.q.listDecisions(ctx, filter)
}

func (s *txStore) UpdateDecisionStatus(ctx context.Context, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error) {
	return s.q.updateDecisionStatus(ctx, id, expected, newStatus, result, resolvedAt)
}

func (s *txStore) CreateVote(ctx context.Context, vote *model.Vote) error {
	return s.q.createVote(ctx, vote)
}

func (s *txStore) GetVotes(ctx context.Context, decisionID string) ([]*model.Vote, error) {
	return s.q.getVotes(ctx, decisionID)
}

func (s *txStore) IncrementVotesCast(ctx context.Context, roomID, voterID string) error {
	return s.q.incrementHealth(ctx, roomID, voterID, "votes_cast")
}

func (s *txStore) IncrementVotesMissed(ctx context.Context, roomID, voterID string) error {
	return s.q.incrementHealth(ctx, roomID, voterID, "votes_missed")
}

func (s *txStore) GetVoterHealth(ctx context.Context, roomID string) ([]*model.VoterHealthRecord, error) {
	return s.q.getVoterHealth(ctx, roomID)
}

func (s *txStore) RecordActivity(ctx context.Context, a *model.Activity) error {
	return s.q.recordActivity(ctx, a)
}

func (s *txStore) ListActivity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error) {
	return s.q.listActivity(ctx, roomID, limit)
}

// RunInTransaction on a txStore reuses the existing transaction.
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error {
	return nil
}

// isConstraintError reports whether err is a SQLite uniqueness failure.
func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateRoom(ctx context.Context, room *model.Room) error {
	return queryCreateRoom(ctx, s.db, room)
}

func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return queryGetRoom(ctx, s.db, id)
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return queryListRooms(ctx, s.db)
}

func (s *PostgresStore) SetRoomGovernanceConfig(ctx context.Context, roomID string, cfg *model.GovernanceConfig) error {
	return querySetGovernance(ctx, s.db, roomID, cfg)
}

func (s *PostgresStore) GetRoomGovernanceConfig(ctx context.Context, roomID string) (*model.GovernanceConfig, error) {
	return queryGetGovernance(ctx, s.db, roomID)
}

func (s *PostgresStore) AddRoomMember(ctx context.Context, member *model.RoomMember) error {
	return queryAddMember(ctx, s.db, member)
}

func (s *PostgresStore) RemoveRoomMember(ctx context.Context, roomID, voterID string) error {
	return queryRemoveMember(ctx, s.db, roomID, voterID)
}

func (s *PostgresStore) GetRoomVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	return queryGetRoomVoters(ctx, s.db, roomID)
}

func (s *PostgresStore) GetQueen(ctx context.Context, roomID string) (*model.RoomMember, error) {
	return queryGetQueen(ctx, s.db, roomID)
}

func (s *PostgresStore) CreateDecision(ctx context.Context, d *model.Decision) error {
	return queryCreateDecision(ctx, s.db, d)
}

func (s *PostgresStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	return queryGetDecision(ctx, s.db, id, false)
}

// GetDecisionForUpdate outside a transaction cannot hold a lock past the
// statement, so it behaves like GetDecision.
func (s *PostgresStore) GetDecisionForUpdate(ctx context.Context, id string) (*model.Decision, error) {
	return queryGetDecision(ctx, s.db, id, false)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter model.DecisionFilter) ([]*model.Decision, error) {
	return queryListDecisions(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateDecisionStatus(ctx context.Context, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error) {
	return queryUpdateDecisionStatus(ctx, s.db, id, expected, newStatus, result, resolvedAt)
}

func (s *PostgresStore) CreateVote(ctx context.Context, vote *model.Vote) error {
	return queryCreateVote(ctx, s.db, vote)
}

func (s *PostgresStore) GetVotes(ctx context.Context, decisionID string) ([]*model.Vote, error) {
	return queryGetVotes(ctx, s.db, decisionID)
}

func (s *PostgresStore) IncrementVotesCast(ctx context.Context, roomID, voterID string) error {
	return queryIncrementVotesCast(ctx, s.db, roomID, voterID)
}

func (s *PostgresStore) IncrementVotesMissed(ctx context.Context, roomID, voterID string) error {
	return queryIncrementVotesMissed(ctx, s.db, roomID, voterID)
}

func (s *PostgresStore) GetVoterHealth(ctx context.Context, roomID string) ([]*model.VoterHealthRecord, error) {
	return queryGetVoterHealth(ctx, s.db, roomID)
}

func (s *PostgresStore) RecordActivity(ctx context.Context, a *model.Activity) error {
	return queryRecordActivity(ctx, s.db, a)
}

func (s *PostgresStore) ListActivity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error) {
	return queryListActivity(ctx, s.db, roomID, limit)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateRoom(ctx context.Context, room *model.Room) error {
	return queryCreateRoom(ctx, s.tx, room)
}

func (s *txStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return queryGetRoom(ctx, s.tx, id)
}

func (s *txStore) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return queryListRooms(ctx, s.tx)
}

func (s *txStore) SetRoomGovernanceConfig(ctx context.Context, roomID string, cfg *model.GovernanceConfig) error {
	return querySetGovernance(ctx, s.tx, roomID, cfg)
}

func (s *txStore) GetRoomGovernanceConfig(ctx context.Context, roomID string) (*model.GovernanceConfig, error) {
	return queryGetGovernance(ctx, s.tx, roomID)
}

func (s *txStore) AddRoomMember(ctx context.Context, member *model.RoomMember) error {
	return queryAddMember(ctx, s.tx, member)
}

func (s *txStore) RemoveRoomMember(ctx context.Context, roomID, voterID string) error {
	return queryRemoveMember(ctx, s.tx, roomID, voterID)
}

func (s *txStore) GetRoomVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	return queryGetRoomVoters(ctx, s.tx, roomID)
}

func (s *txStore) GetQueen(ctx context.Context, roomID string) (*model.RoomMember, error) {
	return queryGetQueen(ctx, s.tx, roomID)
}

func (s *txStore) CreateDecision(ctx context.Context, d *model.Decision) error {
	return queryCreateDecision(ctx, s.tx, d)
}

func (s *txStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	return queryGetDecision(ctx, s.tx, id, false)
}

func (s *txStore) GetDecisionForUpdate(ctx context.Context, id string) (*model.Decision, error) {
	return queryGetDecision(ctx, s.tx, id, true)
}

func (s *txStore) ListDecisions(ctx context.Context, filter model.DecisionFilter) ([]*model.Decision, error) {
	return queryListDecisions(ctx, s.tx, filter)
}

func (s *txStore) UpdateDecisionStatus(ctx context.Context, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error) {
	return queryUpdateDecisionStatus(ctx, s.tx, id, expected, newStatus, result, resolvedAt)
}

func (s *txStore) CreateVote(ctx context.Context, vote *model.Vote) error {
	return queryCreateVote(ctx, s.tx, vote)
}

func (s *txStore) GetVotes(ctx context.Context, decisionID string) ([]*model.Vote, error) {
	return queryGetVotes(ctx, s.tx, decisionID)
}

func (s *txStore) IncrementVotesCast(ctx context.Context, roomID, voterID string) error {
	return queryIncrementVotesCast(ctx, s.tx, roomID, voterID)
}

func (s *txStore) IncrementVotesMissed(ctx context.Context, roomID, voterID string) error {
	return queryIncrementVotesMissed(ctx, s.tx, roomID, voterID)
}

func (s *txStore) GetVoterHealth(ctx context.Context, roomID string) ([]*model.VoterHealthRecord, error) {
	return queryGetVoterHealth(ctx, s.tx, roomID)
}

func (s *txStore) RecordActivity(ctx context.Context, a *model.Activity) error {
	return queryRecordActivity(ctx, s.tx, a)
}

func (s *txStore) ListActivity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error) {
	return queryListActivity(ctx, s.tx, roomID, limit)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}

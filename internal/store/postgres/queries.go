package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// decisionColumns is the column list used for SELECT statements on the decisions table.
const decisionColumns = `id, room_id, proposer_id, proposal, type, pathway, status,
	threshold, tie_breaker, min_voters, sealed, effective_at, timeout_at,
	result, created_at, resolved_at`

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notFound maps sql.ErrNoRows to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique constraint failure.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// requireRowsAffected returns store.ErrNotFound when res touched no rows.
func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Rooms ---

func queryCreateRoom(ctx context.Context, db executor, r *model.Room) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO rooms (id, name)
		VALUES ($1, $2)
		RETURNING created_at`,
		r.ID, r.Name,
	).Scan(&r.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func queryGetRoom(ctx context.Context, db executor, id string) (*model.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, created_at FROM rooms WHERE id = $1`, id)
	r, err := scanRoom(row)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func queryListRooms(ctx context.Context, db executor) ([]*model.Room, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, created_at FROM rooms ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// --- Governance ---

func querySetGovernance(ctx context.Context, db executor, roomID string, cfg *model.GovernanceConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal governance config: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO room_governance (room_id, config)
		VALUES ($1, $2)
		ON CONFLICT (room_id) DO UPDATE SET config = $2, updated_at = NOW()`,
		roomID, data,
	)
	return err
}

func queryGetGovernance(ctx context.Context, db executor, roomID string) (*model.GovernanceConfig, error) {
	var data []byte
	err := db.QueryRowContext(ctx, `SELECT config FROM room_governance WHERE room_id = $1`, roomID).Scan(&data)
	if err != nil {
		return nil, notFound(err)
	}
	var cfg model.GovernanceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode governance config for %s: %w", roomID, err)
	}
	return &cfg, nil
}

// --- Roster ---

func queryAddMember(ctx context.Context, db executor, m *model.RoomMember) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO room_members (room_id, voter_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, voter_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING joined_at`,
		m.RoomID, m.VoterID, string(m.Role),
	).Scan(&m.JoinedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func queryRemoveMember(ctx context.Context, db executor, roomID, voterID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = $1 AND voter_id = $2`, roomID, voterID)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func queryGetRoomVoters(ctx context.Context, db executor, roomID string) ([]*model.RoomMember, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT room_id, voter_id, role, joined_at
		FROM room_members
		WHERE room_id = $1
		ORDER BY joined_at ASC, voter_id ASC`,
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMembers(rows)
}

func queryGetQueen(ctx context.Context, db executor, roomID string) (*model.RoomMember, error) {
	row := db.QueryRowContext(ctx, `
		SELECT room_id, voter_id, role, joined_at
		FROM room_members
		WHERE room_id = $1 AND role = 'queen'`,
		roomID,
	)
	m, err := scanMember(row)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// --- Decisions ---

func queryCreateDecision(ctx context.Context, db executor, d *model.Decision) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO decisions (
			id, room_id, proposer_id, proposal, type, pathway, status,
			threshold, tie_breaker, min_voters, sealed, effective_at, timeout_at,
			result, resolved_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15
		)
		RETURNING created_at`,
		d.ID,
		d.RoomID,
		d.ProposerID,
		d.Proposal,
		string(d.Type),
		string(d.Pathway),
		string(d.Status),
		string(d.Snapshot.Threshold),
		string(d.Snapshot.TieBreaker),
		d.Snapshot.MinVoters,
		d.Sealed,
		nullTimePtr(d.EffectiveAt),
		nullTimePtr(d.TimeoutAt),
		d.Result,
		nullTimePtr(d.ResolvedAt),
	).Scan(&d.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func queryGetDecision(ctx context.Context, db executor, id string, forUpdate bool) (*model.Decision, error) {
	q := `SELECT ` + decisionColumns + ` FROM decisions WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	d, err := scanDecision(db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func queryListDecisions(ctx context.Context, db executor, filter model.DecisionFilter) ([]*model.Decision, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.RoomID != "" {
		whereClauses = append(whereClauses, "room_id = "+nextArg())
		args = append(args, filter.RoomID)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.DueBefore != nil {
		whereClauses = append(whereClauses, "COALESCE(effective_at, timeout_at) <= "+nextArg())
		args = append(args, *filter.DueBefore)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	q := "SELECT " + decisionColumns + " FROM decisions" + whereSQL + " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		q += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decisions: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan decisions: %w", err)
	}
	return decisions, nil
}

func queryUpdateDecisionStatus(ctx context.Context, db executor, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE decisions
		SET status = $3, result = $4, resolved_at = $5
		WHERE id = $1 AND status = $2`,
		id, string(expected), string(newStatus), result, resolvedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update decision status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// --- Votes ---

func queryCreateVote(ctx context.Context, db executor, v *model.Vote) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO votes (id, decision_id, voter_id, choice, reasoning)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING cast_at`,
		v.ID, v.DecisionID, v.VoterID, string(v.Choice), v.Reasoning,
	).Scan(&v.CastAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func queryGetVotes(ctx context.Context, db executor, decisionID string) ([]*model.Vote, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, decision_id, voter_id, choice, reasoning, cast_at
		FROM votes
		WHERE decision_id = $1
		ORDER BY cast_at ASC, id ASC`,
		decisionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVotes(rows)
}

// --- Voter health ---

func queryIncrementVotesCast(ctx context.Context, db executor, roomID, voterID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO voter_health (room_id, voter_id, votes_cast)
		VALUES ($1, $2, 1)
		ON CONFLICT (room_id, voter_id) DO UPDATE
		SET votes_cast = voter_health.votes_cast + 1, updated_at = NOW()`,
		roomID, voterID,
	)
	return err
}

func queryIncrementVotesMissed(ctx context.Context, db executor, roomID, voterID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO voter_health (room_id, voter_id, votes_missed)
		VALUES ($1, $2, 1)
		ON CONFLICT (room_id, voter_id) DO UPDATE
		SET votes_missed = voter_health.votes_missed + 1, updated_at = NOW()`,
		roomID, voterID,
	)
	return err
}

func queryGetVoterHealth(ctx context.Context, db executor, roomID string) ([]*model.VoterHealthRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT room_id, voter_id, votes_cast, votes_missed
		FROM voter_health
		WHERE room_id = $1
		ORDER BY voter_id ASC`,
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.VoterHealthRecord
	for rows.Next() {
		var r model.VoterHealthRecord
		if err := rows.Scan(&r.RoomID, &r.VoterID, &r.VotesCast, &r.VotesMissed); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// --- Activity ---

func queryRecordActivity(ctx context.Context, db executor, a *model.Activity) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO activity (id, room_id, kind, actor, subject, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		a.ID, a.RoomID, a.Kind, a.Actor, a.Subject, a.Summary,
	).Scan(&a.CreatedAt)
}

func queryListActivity(ctx context.Context, db executor, roomID string, limit int) ([]*model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, kind, actor, subject, summary, created_at
		FROM activity
		WHERE room_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.RoomID, &a.Kind, &a.Actor, &a.Subject, &a.Summary, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &a)
	}
	return entries, rows.Err()
}

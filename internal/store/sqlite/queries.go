package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

const decisionColumns = `id, room_id, proposer_id, proposal, type, pathway, status,
	threshold, tie_breaker, min_voters, sealed, effective_at, timeout_at,
	result, created_at, resolved_at`

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scannable interface {
	Scan(dest ...any) error
}

// queries binds the SQL statements to an executor, either the database or
// an open transaction.
type queries struct {
	db  executor
	now func() time.Time
}

func (q queries) stamp(t *time.Time) {
	if t.IsZero() {
		*t = q.now().UTC()
	}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if isConstraintError(err) {
		return store.ErrDuplicate
	}
	return err
}

// --- Rooms ---

func (q queries) createRoom(ctx context.Context, r *model.Room) error {
	q.stamp(&r.CreatedAt)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, created_at) VALUES (?, ?, ?)`,
		r.ID, r.Name, toMillis(r.CreatedAt),
	)
	return duplicate(err)
}

func scanRoom(row scannable) (*model.Room, error) {
	var r model.Room
	var created int64
	if err := row.Scan(&r.ID, &r.Name, &created); err != nil {
		return nil, err
	}
	r.CreatedAt = fromMillis(created)
	return &r, nil
}

func (q queries) getRoom(ctx context.Context, id string) (*model.Room, error) {
	r, err := scanRoom(q.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM rooms WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (q queries) listRooms(ctx context.Context) ([]*model.Room, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, created_at FROM rooms ORDER BY created_at ASC, id ASC`)
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

func (q queries) setGovernance(ctx context.Context, roomID string, cfg *model.GovernanceConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal governance config: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
INSERT INTO room_governance (room_id, config, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (room_id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		roomID, string(data), toMillis(q.now()),
	)
	return err
}

func (q queries) getGovernance(ctx context.Context, roomID string) (*model.GovernanceConfig, error) {
	var data string
	err := q.db.QueryRowContext(ctx, `SELECT config FROM room_governance WHERE room_id = ?`, roomID).Scan(&data)
	if err != nil {
		return nil, notFound(err)
	}
	var cfg model.GovernanceConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode governance config for %s: %w", roomID, err)
	}
	return &cfg, nil
}

// --- Roster ---

func (q queries) addMember(ctx context.Context, m *model.RoomMember) error {
	q.stamp(&m.JoinedAt)
	_, err := q.db.ExecContext(ctx, `
INSERT INTO room_members (room_id, voter_id, role, joined_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (room_id, voter_id) DO UPDATE SET role = excluded.role`,
		m.RoomID, m.VoterID, string(m.Role), toMillis(m.JoinedAt),
	)
	if err != nil {
		return duplicate(err)
	}
	// Re-read so an updated member reports its original join time.
	got, err := q.getMember(ctx, m.RoomID, m.VoterID)
	if err != nil {
		return err
	}
	m.JoinedAt = got.JoinedAt
	return nil
}

func scanMember(row scannable) (*model.RoomMember, error) {
	var m model.RoomMember
	var joined int64
	if err := row.Scan(&m.RoomID, &m.VoterID, &m.Role, &joined); err != nil {
		return nil, err
	}
	m.JoinedAt = fromMillis(joined)
	return &m, nil
}

func (q queries) getMember(ctx context.Context, roomID, voterID string) (*model.RoomMember, error) {
	m, err := scanMember(q.db.QueryRowContext(ctx,
		`SELECT room_id, voter_id, role, joined_at FROM room_members WHERE room_id = ? AND voter_id = ?`,
		roomID, voterID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (q queries) removeMember(ctx context.Context, roomID, voterID string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ? AND voter_id = ?`, roomID, voterID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q queries) getRoomVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT room_id, voter_id, role, joined_at
FROM room_members
WHERE room_id = ?
ORDER BY joined_at ASC, voter_id ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*model.RoomMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (q queries) getQueen(ctx context.Context, roomID string) (*model.RoomMember, error) {
	m, err := scanMember(q.db.QueryRowContext(ctx,
		`SELECT room_id, voter_id, role, joined_at FROM room_members WHERE room_id = ? AND role = 'queen'`,
		roomID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// --- Decisions ---

func (q queries) createDecision(ctx context.Context, d *model.Decision) error {
	q.stamp(&d.CreatedAt)
	_, err := q.db.ExecContext(ctx, `
INSERT INTO decisions (`+decisionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		nullMillis(d.EffectiveAt),
		nullMillis(d.TimeoutAt),
		d.Result,
		toMillis(d.CreatedAt),
		nullMillis(d.ResolvedAt),
	)
	return duplicate(err)
}

func scanDecision(row scannable) (*model.Decision, error) {
	var d model.Decision
	var (
		effectiveAt, timeoutAt, resolvedAt sql.NullInt64
		created                            int64
	)
	err := row.Scan(
		&d.ID,
		&d.RoomID,
		&d.ProposerID,
		&d.Proposal,
		&d.Type,
		&d.Pathway,
		&d.Status,
		&d.Snapshot.Threshold,
		&d.Snapshot.TieBreaker,
		&d.Snapshot.MinVoters,
		&d.Sealed,
		&effectiveAt,
		&timeoutAt,
		&d.Result,
		&created,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	d.EffectiveAt = timePtr(effectiveAt)
	d.TimeoutAt = timePtr(timeoutAt)
	d.ResolvedAt = timePtr(resolvedAt)
	d.CreatedAt = fromMillis(created)
	return &d, nil
}

func (q queries) getDecision(ctx context.Context, id string) (*model.Decision, error) {
	d, err := scanDecision(q.db.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (q queries) listDecisions(ctx context.Context, filter model.DecisionFilter) ([]*model.Decision, error) {
	var (
		where []string
		args  []any
	)
	if filter.RoomID != "" {
		where = append(where, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if len(filter.Status) > 0 {
		where = append(where, "status IN (?"+strings.Repeat(", ?", len(filter.Status)-1)+")")
		for _, s := range filter.Status {
			args = append(args, string(s))
		}
	}
	if filter.DueBefore != nil {
		where = append(where, "COALESCE(effective_at, timeout_at) <= ?")
		args = append(args, toMillis(*filter.DueBefore))
	}

	query := "SELECT " + decisionColumns + " FROM decisions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
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

func (q queries) updateDecisionStatus(ctx context.Context, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE decisions
SET status = ?, result = ?, resolved_at = ?
WHERE id = ? AND status = ?`,
		string(newStatus), result, toMillis(resolvedAt), id, string(expected),
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

func (q queries) createVote(ctx context.Context, v *model.Vote) error {
	q.stamp(&v.CastAt)
	_, err := q.db.ExecContext(ctx, `
INSERT INTO votes (id, decision_id, voter_id, choice, reasoning, cast_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.DecisionID, v.VoterID, string(v.Choice), v.Reasoning, toMillis(v.CastAt),
	)
	return duplicate(err)
}

func (q queries) getVotes(ctx context.Context, decisionID string) ([]*model.Vote, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, decision_id, voter_id, choice, reasoning, cast_at
FROM votes
WHERE decision_id = ?
ORDER BY cast_at ASC, id ASC`, decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []*model.Vote
	for rows.Next() {
		var v model.Vote
		var cast int64
		if err := rows.Scan(&v.ID, &v.DecisionID, &v.VoterID, &v.Choice, &v.Reasoning, &cast); err != nil {
			return nil, err
		}
		v.CastAt = fromMillis(cast)
		votes = append(votes, &v)
	}
	return votes, rows.Err()
}

// --- Voter health ---

// incrementHealth bumps one counter column; column is always a constant
// supplied by this package.
func (q queries) incrementHealth(ctx context.Context, roomID, voterID, column string) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO voter_health (room_id, voter_id, `+column+`, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (room_id, voter_id) DO UPDATE
SET `+column+` = voter_health.`+column+` + 1, updated_at = excluded.updated_at`,
		roomID, voterID, toMillis(q.now()),
	)
	return err
}

func (q queries) getVoterHealth(ctx context.Context, roomID string) ([]*model.VoterHealthRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT room_id, voter_id, votes_cast, votes_missed
FROM voter_health
WHERE room_id = ?
ORDER BY voter_id ASC`, roomID)
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

func (q queries) recordActivity(ctx context.Context, a *model.Activity) error {
	q.stamp(&a.CreatedAt)
	_, err := q.db.ExecContext(ctx, `
INSERT INTO activity (id, room_id, kind, actor, subject, summary, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RoomID, a.Kind, a.Actor, a.Subject, a.Summary, toMillis(a.CreatedAt),
	)
	return err
}

func (q queries) listActivity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT id, room_id, kind, actor, subject, summary, created_at
FROM activity
WHERE room_id = ?
ORDER BY created_at DESC, id ASC
LIMIT ?`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.Activity
	for rows.Next() {
		var a model.Activity
		var created int64
		if err := rows.Scan(&a.ID, &a.RoomID, &a.Kind, &a.Actor, &a.Subject, &a.Summary, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(created)
		entries = append(entries, &a)
	}
	return entries, rows.Err()
}

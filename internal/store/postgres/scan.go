package postgres

import (
	"database/sql"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanDecision scans a single row into a model.Decision.
// The row must contain columns in the order defined by decisionColumns.
func scanDecision(row scannable) (*model.Decision, error) {
	var d model.Decision
	var (
		effectiveAt sql.NullTime
		timeoutAt   sql.NullTime
		resolvedAt  sql.NullTime
		result      sql.NullString
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
		&result,
		&d.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Result = result.String
	d.EffectiveAt = timePtr(effectiveAt)
	d.TimeoutAt = timePtr(timeoutAt)
	d.ResolvedAt = timePtr(resolvedAt)

	return &d, nil
}

func scanRoom(row scannable) (*model.Room, error) {
	var r model.Room
	if err := row.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanMember(row scannable) (*model.RoomMember, error) {
	var m model.RoomMember
	if err := row.Scan(&m.RoomID, &m.VoterID, &m.Role, &m.JoinedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMembers(rows *sql.Rows) ([]*model.RoomMember, error) {
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

func scanVote(row scannable) (*model.Vote, error) {
	var v model.Vote
	var reasoning sql.NullString
	if err := row.Scan(&v.ID, &v.DecisionID, &v.VoterID, &v.Choice, &reasoning, &v.CastAt); err != nil {
		return nil, err
	}
	v.Reasoning = reasoning.String
	return &v, nil
}

func scanVotes(rows *sql.Rows) ([]*model.Vote, error) {
	var votes []*model.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// nullTimePtr converts a *time.Time to sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a sql.NullTime to *time.Time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

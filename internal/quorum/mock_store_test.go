package quorum

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/quorum/internal/model"
	"github.com/alfredjeanlab/quorum/internal/store"
)

// mockStore is an in-memory store.Store. RunInTransaction holds txMu for the
// whole callback, which gives the same exclusion a row lock would.
type mockStore struct {
	txMu sync.Mutex

	mu         sync.Mutex
	rooms      map[string]*model.Room
	governance map[string]*model.GovernanceConfig
	members    map[string][]*model.RoomMember
	decisions  map[string]*model.Decision
	votes      map[string][]*model.Vote
	health     map[string]*model.VoterHealthRecord
	activity   []*model.Activity

	// getErr, when set for a decision ID, is returned by GetDecisionForUpdate.
	getErr map[string]error
	// listErr is returned by ListDecisions.
	listErr error
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		rooms:      make(map[string]*model.Room),
		governance: make(map[string]*model.GovernanceConfig),
		members:    make(map[string][]*model.RoomMember),
		decisions:  make(map[string]*model.Decision),
		votes:      make(map[string][]*model.Vote),
		health:     make(map[string]*model.VoterHealthRecord),
		getErr:     make(map[string]error),
	}
}

func copyDecision(d *model.Decision) *model.Decision {
	c := *d
	return &c
}

func (m *mockStore) CreateRoom(_ context.Context, r *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[r.ID]; ok {
		return store.ErrDuplicate
	}
	c := *r
	m.rooms[r.ID] = &c
	return nil
}

func (m *mockStore) GetRoom(_ context.Context, id string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *mockStore) ListRooms(_ context.Context) ([]*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Room
	for _, r := range m.rooms {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) SetRoomGovernanceConfig(_ context.Context, roomID string, cfg *model.GovernanceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cfg
	c.AutoApprove = append([]model.DecisionType(nil), cfg.AutoApprove...)
	m.governance[roomID] = &c
	return nil
}

func (m *mockStore) GetRoomGovernanceConfig(_ context.Context, roomID string) (*model.GovernanceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.governance[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *cfg
	return &c, nil
}

func (m *mockStore) AddRoomMember(_ context.Context, member *model.RoomMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.members[member.RoomID]
	for _, existing := range list {
		if member.Role == model.RoleQueen && existing.Role == model.RoleQueen && existing.VoterID != member.VoterID {
			return store.ErrDuplicate
		}
	}
	for _, existing := range list {
		if existing.VoterID == member.VoterID {
			existing.Role = member.Role
			member.JoinedAt = existing.JoinedAt
			return nil
		}
	}
	c := *member
	m.members[member.RoomID] = append(list, &c)
	return nil
}

func (m *mockStore) RemoveRoomMember(_ context.Context, roomID, voterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.members[roomID]
	for i, existing := range list {
		if existing.VoterID == voterID {
			m.members[roomID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockStore) GetRoomVoters(_ context.Context, roomID string) ([]*model.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RoomMember
	for _, mem := range m.members[roomID] {
		c := *mem
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockStore) GetQueen(_ context.Context, roomID string) (*model.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members[roomID] {
		if mem.Role == model.RoleQueen {
			c := *mem
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) CreateDecision(_ context.Context, d *model.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decisions[d.ID]; ok {
		return store.ErrDuplicate
	}
	m.decisions[d.ID] = copyDecision(d)
	return nil
}

func (m *mockStore) GetDecision(_ context.Context, id string) (*model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyDecision(d), nil
}

func (m *mockStore) GetDecisionForUpdate(ctx context.Context, id string) (*model.Decision, error) {
	m.mu.Lock()
	err := m.getErr[id]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.GetDecision(ctx, id)
}

func (m *mockStore) ListDecisions(_ context.Context, filter model.DecisionFilter) ([]*model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*model.Decision
	for _, d := range m.decisions {
		if filter.RoomID != "" && d.RoomID != filter.RoomID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, d.Status) {
			continue
		}
		if filter.DueBefore != nil {
			dl := d.Deadline()
			if dl == nil || dl.After(*filter.DueBefore) {
				continue
			}
		}
		out = append(out, copyDecision(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (m *mockStore) UpdateDecisionStatus(_ context.Context, id string, expected, newStatus model.Status, result string, resolvedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[id]
	if !ok || d.Status != expected {
		return false, nil
	}
	d.Status = newStatus
	d.Result = result
	at := resolvedAt
	d.ResolvedAt = &at
	return true, nil
}

func (m *mockStore) CreateVote(_ context.Context, v *model.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.votes[v.DecisionID] {
		if existing.VoterID == v.VoterID {
			return store.ErrDuplicate
		}
	}
	c := *v
	m.votes[v.DecisionID] = append(m.votes[v.DecisionID], &c)
	return nil
}

func (m *mockStore) GetVotes(_ context.Context, decisionID string) ([]*model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Vote
	for _, v := range m.votes[decisionID] {
		c := *v
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockStore) healthRecord(roomID, voterID string) *model.VoterHealthRecord {
	key := roomID + "/" + voterID
	r, ok := m.health[key]
	if !ok {
		r = &model.VoterHealthRecord{RoomID: roomID, VoterID: voterID}
		m.health[key] = r
	}
	return r
}

func (m *mockStore) IncrementVotesCast(_ context.Context, roomID, voterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthRecord(roomID, voterID).VotesCast++
	return nil
}

func (m *mockStore) IncrementVotesMissed(_ context.Context, roomID, voterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthRecord(roomID, voterID).VotesMissed++
	return nil
}

func (m *mockStore) GetVoterHealth(_ context.Context, roomID string) ([]*model.VoterHealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.VoterHealthRecord
	for _, r := range m.health {
		if r.RoomID == roomID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoterID < out[j].VoterID })
	return out, nil
}

func (m *mockStore) RecordActivity(_ context.Context, a *model.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.activity = append(m.activity, &c)
	return nil
}

func (m *mockStore) ListActivity(_ context.Context, roomID string, limit int) ([]*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Activity
	for i := len(m.activity) - 1; i >= 0; i-- {
		if m.activity[i].RoomID == roomID {
			out = append(out, m.activity[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *mockStore) Close() error { return nil }

// counters returns the stored health counters for one voter.
func (m *mockStore) counters(roomID, voterID string) (cast, missed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.health[roomID+"/"+voterID]
	if !ok {
		return 0, 0
	}
	return r.VotesCast, r.VotesMissed
}

func (m *mockStore) voteCount(decisionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes[decisionID])
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

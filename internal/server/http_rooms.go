package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/quorum/internal/model"
)

type createRoomInput struct {
	Name string `json:"name"`
}

// handleCreateRoom handles POST /v1/rooms.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var in createRoomInput
	if !decodeBody(w, r, &in) {
		return
	}
	room, err := s.engine.CreateRoom(r.Context(), in.Name)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.record(r.Context(), model.ActivityKindRoom, room.ID, actor(r), "", "created room "+room.Name)
	writeJSON(w, http.StatusCreated, room)
}

// handleListRooms handles GET /v1/rooms.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.engine.ListRooms(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []*model.Room{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// handleGetRoom handles GET /v1/rooms/{id}.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.engine.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleGetGovernance handles GET /v1/rooms/{id}/governance.
func (s *Server) handleGetGovernance(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Governance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSetGovernance handles PUT /v1/rooms/{id}/governance. The body
// replaces the whole config; omitted fields take their defaults.
func (s *Server) handleSetGovernance(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	cfg := model.DefaultGovernanceConfig()
	if !decodeBody(w, r, &cfg) {
		return
	}
	if err := s.engine.SetGovernance(r.Context(), roomID, &cfg); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.record(r.Context(), model.ActivityKindRoom, roomID, actor(r), "",
		fmt.Sprintf("governance set: %s, tie-breaker %s, min voters %d", cfg.Threshold, cfg.TieBreaker, cfg.MinVoters))
	writeJSON(w, http.StatusOK, cfg)
}

// handleListMembers handles GET /v1/rooms/{id}/members.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.engine.Members(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": nonNilMembers(members)})
}

type addMemberInput struct {
	VoterID string     `json:"voter_id"`
	Role    model.Role `json:"role"`
}

// handleAddMember handles POST /v1/rooms/{id}/members.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var in addMemberInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Role == "" {
		in.Role = model.RoleWorker
	}
	m := &model.RoomMember{RoomID: r.PathValue("id"), VoterID: in.VoterID, Role: in.Role}
	if err := s.engine.AddMember(r.Context(), m); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.record(r.Context(), model.ActivityKindRoom, m.RoomID, actor(r), m.VoterID,
		fmt.Sprintf("%s joined as %s", m.VoterID, m.Role))
	writeJSON(w, http.StatusCreated, m)
}

// handleRemoveMember handles DELETE /v1/rooms/{id}/members/{voter}.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	roomID, voterID := r.PathValue("id"), r.PathValue("voter")
	if err := s.engine.RemoveMember(r.Context(), roomID, voterID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.record(r.Context(), model.ActivityKindRoom, roomID, actor(r), voterID, voterID+" left the room")
	w.WriteHeader(http.StatusNoContent)
}

// handleVoterHealth handles GET /v1/rooms/{id}/health. The threshold query
// parameter defaults to the room's configured health threshold.
func (s *Server) handleVoterHealth(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	var threshold float64
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "threshold must be a number")
			return
		}
		threshold = f
	} else {
		cfg, err := s.engine.Governance(r.Context(), roomID)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		threshold = cfg.VoterHealthThreshold
	}

	health, err := s.engine.GetVoterHealth(r.Context(), roomID, threshold)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if health == nil {
		health = []model.VoterHealth{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threshold": threshold, "voters": health})
}

// handleEligibleVoters handles GET /v1/rooms/{id}/eligible.
func (s *Server) handleEligibleVoters(w http.ResponseWriter, r *http.Request) {
	members, err := s.engine.GetEligibleVoters(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voters": nonNilMembers(members)})
}

// handleListActivity handles GET /v1/rooms/{id}/activity.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if limit == 0 {
		limit = 50
	}
	entries, err := s.engine.Activity(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*model.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func nonNilMembers(ms []*model.RoomMember) []*model.RoomMember {
	if ms == nil {
		return []*model.RoomMember{}
	}
	return ms
}

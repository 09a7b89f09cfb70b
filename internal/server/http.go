package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/quorum/internal/quorum"
)

// ActorHeader names the caller for activity entries on requests whose body
// carries no voter or proposer.
const ActorHeader = "X-Quorum-Actor"

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /v1/rooms", s.handleListRooms)
	mux.HandleFunc("GET /v1/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("GET /v1/rooms/{id}/governance", s.handleGetGovernance)
	mux.HandleFunc("PUT /v1/rooms/{id}/governance", s.handleSetGovernance)
	mux.HandleFunc("GET /v1/rooms/{id}/members", s.handleListMembers)
	mux.HandleFunc("POST /v1/rooms/{id}/members", s.handleAddMember)
	mux.HandleFunc("DELETE /v1/rooms/{id}/members/{voter}", s.handleRemoveMember)
	mux.HandleFunc("GET /v1/rooms/{id}/health", s.handleVoterHealth)
	mux.HandleFunc("GET /v1/rooms/{id}/eligible", s.handleEligibleVoters)
	mux.HandleFunc("GET /v1/rooms/{id}/activity", s.handleListActivity)
	mux.HandleFunc("POST /v1/rooms/{id}/decisions", s.handleSubmitDecision)
	mux.HandleFunc("GET /v1/rooms/{id}/decisions", s.handleListDecisions)
	mux.HandleFunc("GET /v1/decisions/{id}", s.handleGetDecision)
	mux.HandleFunc("POST /v1/decisions/{id}/votes", s.handleCastVote)
	mux.HandleFunc("POST /v1/decisions/{id}/vote", s.handleLegacyVote)
	mux.HandleFunc("POST /v1/decisions/{id}/object", s.handleObject)
	mux.HandleFunc("POST /v1/decisions/{id}/keeper-vote", s.handleKeeperVote)
	mux.HandleFunc("POST /v1/decisions/{id}/tally", s.handleTally)
	mux.HandleFunc("POST /v1/sweep", s.handleSweep)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RequestIDMiddleware(AuthMiddleware(authToken, mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// inputError indicates invalid user input outside the engine's own
// validation. Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// decodeBody decodes the JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// queryLimit parses the optional limit query parameter.
func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, inputError("limit must be a non-negative integer")
	}
	return n, nil
}

// splitList splits a comma-separated query value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	var ie inputError
	switch {
	case errors.As(err, &ie), errors.Is(err, quorum.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, quorum.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, quorum.ErrInvalidState), errors.Is(err, quorum.ErrDuplicateVote):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeEngineError writes err with the status it maps to. Internal errors
// are logged and their detail withheld from the client.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()), "err", err)
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

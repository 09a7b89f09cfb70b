package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/quorum/internal/model"
)

// ActorHeader names the caller in the server's activity log. It matches
// server.ActorHeader.
const ActorHeader = "X-Quorum-Actor"

// HTTPClient implements Client using the quorum HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a client targeting baseURL (e.g.
// "http://localhost:8080"). When token is non-empty an Authorization header
// is set on every request; when actor is non-empty it is sent as
// ActorHeader.
func NewHTTPClient(baseURL, token, actor string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		actor:      actor,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Rooms ---

func (c *HTTPClient) CreateRoom(ctx context.Context, name string) (*model.Room, error) {
	var room model.Room
	if err := c.doJSON(ctx, http.MethodPost, "/v1/rooms", map[string]string{"name": name}, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *HTTPClient) ListRooms(ctx context.Context) ([]*model.Room, error) {
	var resp struct {
		Rooms []*model.Room `json:"rooms"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

func (c *HTTPClient) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	if err := c.doJSON(ctx, http.MethodGet, roomPath(id), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *HTTPClient) GetGovernance(ctx context.Context, roomID string) (*model.GovernanceConfig, error) {
	var cfg model.GovernanceConfig
	if err := c.doJSON(ctx, http.MethodGet, roomPath(roomID)+"/governance", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) SetGovernance(ctx context.Context, roomID string, cfg model.GovernanceConfig) (*model.GovernanceConfig, error) {
	var out model.GovernanceConfig
	if err := c.doJSON(ctx, http.MethodPut, roomPath(roomID)+"/governance", cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Members ---

func (c *HTTPClient) ListMembers(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	var resp struct {
		Members []*model.RoomMember `json:"members"`
	}
	if err := c.doJSON(ctx, http.MethodGet, roomPath(roomID)+"/members", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

func (c *HTTPClient) AddMember(ctx context.Context, roomID, voterID string, role model.Role) (*model.RoomMember, error) {
	body := map[string]string{"voter_id": voterID}
	if role != "" {
		body["role"] = string(role)
	}
	var m model.RoomMember
	if err := c.doJSON(ctx, http.MethodPost, roomPath(roomID)+"/members", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) RemoveMember(ctx context.Context, roomID, voterID string) error {
	return c.doJSON(ctx, http.MethodDelete, roomPath(roomID)+"/members/"+url.PathEscape(voterID), nil, nil)
}

func (c *HTTPClient) EligibleVoters(ctx context.Context, roomID string) ([]*model.RoomMember, error) {
	var resp struct {
		Voters []*model.RoomMember `json:"voters"`
	}
	if err := c.doJSON(ctx, http.MethodGet, roomPath(roomID)+"/eligible", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Voters, nil
}

// VoterHealth fetches participation health. A nil threshold uses the room's
// configured threshold.
func (c *HTTPClient) VoterHealth(ctx context.Context, roomID string, threshold *float64) (*VoterHealthResponse, error) {
	path := roomPath(roomID) + "/health"
	if threshold != nil {
		path += "?threshold=" + strconv.FormatFloat(*threshold, 'f', -1, 64)
	}
	var resp VoterHealthResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Activity(ctx context.Context, roomID string, limit int) ([]*model.Activity, error) {
	path := roomPath(roomID) + "/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Activity []*model.Activity `json:"activity"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activity, nil
}

// --- Decisions ---

func (c *HTTPClient) SubmitDecision(ctx context.Context, roomID string, req *SubmitRequest) (*model.Decision, error) {
	var d model.Decision
	if err := c.doJSON(ctx, http.MethodPost, roomPath(roomID)+"/decisions", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) ListDecisions(ctx context.Context, roomID string, req *ListDecisionsRequest) ([]*model.Decision, error) {
	q := url.Values{}
	if req != nil {
		if len(req.Status) > 0 {
			statuses := make([]string, len(req.Status))
			for i, s := range req.Status {
				statuses[i] = string(s)
			}
			q.Set("status", strings.Join(statuses, ","))
		}
		if req.Limit > 0 {
			q.Set("limit", strconv.Itoa(req.Limit))
		}
	}
	path := roomPath(roomID) + "/decisions"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp struct {
		Decisions []*model.Decision `json:"decisions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Decisions, nil
}

func (c *HTTPClient) GetDecision(ctx context.Context, id string) (*DecisionView, error) {
	var view DecisionView
	if err := c.doJSON(ctx, http.MethodGet, decisionPath(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// CastVote records a ballot and lets the server tally when it completes the
// electorate.
func (c *HTTPClient) CastVote(ctx context.Context, decisionID string, req *VoteRequest) (*model.Vote, error) {
	return c.vote(ctx, decisionPath(decisionID)+"/votes", req)
}

// Vote uses the legacy single-ballot endpoint.
func (c *HTTPClient) Vote(ctx context.Context, decisionID string, req *VoteRequest) (*model.Vote, error) {
	return c.vote(ctx, decisionPath(decisionID)+"/vote", req)
}

func (c *HTTPClient) vote(ctx context.Context, path string, req *VoteRequest) (*model.Vote, error) {
	var v model.Vote
	if err := c.doJSON(ctx, http.MethodPost, path, req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) Object(ctx context.Context, decisionID, voterID, reason string) (*model.Decision, error) {
	body := map[string]string{"voter_id": voterID}
	if reason != "" {
		body["reason"] = reason
	}
	var d model.Decision
	if err := c.doJSON(ctx, http.MethodPost, decisionPath(decisionID)+"/object", body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) KeeperVote(ctx context.Context, decisionID string, choice model.Choice) (*model.Decision, error) {
	var d model.Decision
	body := map[string]model.Choice{"choice": choice}
	if err := c.doJSON(ctx, http.MethodPost, decisionPath(decisionID)+"/keeper-vote", body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) Tally(ctx context.Context, decisionID string) (*TallyResponse, error) {
	var resp TallyResponse
	if err := c.doJSON(ctx, http.MethodPost, decisionPath(decisionID)+"/tally", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sweep asks the server to resolve every expired decision now and returns
// how many it resolved.
func (c *HTTPClient) Sweep(ctx context.Context) (int, error) {
	var resp struct {
		Resolved int `json:"resolved"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sweep", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Resolved, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func roomPath(id string) string     { return "/v1/rooms/" + url.PathEscape(id) }
func decisionPath(id string) string { return "/v1/decisions/" + url.PathEscape(id) }

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the server, returned for
// state conflicts and duplicate ballots.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set(ActorHeader, c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

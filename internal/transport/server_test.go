package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/push"
	"github.com/stretchr/testify/require"
)

type stubContracts struct {
	ContractService
	get  func(actorID, id string) (*contract.Contract, error)
	sign func(actorID string, req contract.SignRequest) (*contract.SignResult, error)
}

func (s *stubContracts) Get(_ context.Context, actorID, id string) (*contract.Contract, error) {
	return s.get(actorID, id)
}

func (s *stubContracts) Sign(_ context.Context, actorID string, req contract.SignRequest) (*contract.SignResult, error) {
	return s.sign(actorID, req)
}

type stubWorkspaces struct {
	WorkspaceService
	view func(actorID, id string, role party.Role) (*workspace.RoleView, error)
}

func (s *stubWorkspaces) View(_ context.Context, actorID, id string, role party.Role) (*workspace.RoleView, error) {
	return s.view(actorID, id, role)
}

type stubMilestones struct {
	MilestoneService
	start func(actorID string, req milestone.StartRequest) (*milestone.Milestone, error)
	list  func(actorID, workspaceID string) ([]milestone.Milestone, error)
}

func (s *stubMilestones) List(_ context.Context, actorID, workspaceID string) ([]milestone.Milestone, error) {
	return s.list(actorID, workspaceID)
}

func (s *stubMilestones) Stats(_ context.Context, actorID, workspaceID string) (*milestone.Stats, error) {
	list, err := s.list(actorID, workspaceID)
	if err != nil {
		return nil, err
	}
	stats := milestone.ComputeStats(list)
	return &stats, nil
}

func (s *stubMilestones) Start(_ context.Context, actorID string, req milestone.StartRequest) (*milestone.Milestone, error) {
	return s.start(actorID, req)
}

func newTestServer(t *testing.T, services Services, events EventSource) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(Config{
		Services: services,
		Resolver: StaticResolver{},
		Events:   events,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, actorID, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set("Authorization", "Bearer "+actorID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := envelope["code"].(string)
	return code
}

func TestServer_Health(t *testing.T) {
	srv := httptest.NewServer(NewServer(Config{}))
	defer srv.Close()

	resp, body := do(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	down := httptest.NewServer(NewServer(Config{Ready: func(context.Context) error { return errors.New("db down") }}))
	defer down.Close()
	resp, body = do(t, down, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "unavailable", body["status"])
}

func TestServer_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, Services{}, nil)

	resp, body := do(t, srv, http.MethodGet, "/v1/contracts/c1", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthorized", errorCode(t, body))
}

func TestServer_ErrorMapping(t *testing.T) {
	contracts := &stubContracts{
		get: func(_, id string) (*contract.Contract, error) {
			switch id {
			case "missing":
				return nil, contract.ErrContractNotFound
			case "private":
				return nil, contract.ErrAccessDenied
			case "broken":
				return nil, errors.New("disk on fire")
			}
			return &contract.Contract{ID: id, Status: contract.StatusSent, Phases: []contract.Phase{}}, nil
		},
		sign: func(string, contract.SignRequest) (*contract.SignResult, error) {
			return nil, contract.ErrAlreadySigned
		},
	}
	srv := newTestServer(t, Services{Contracts: contracts}, nil)

	resp, body := do(t, srv, http.MethodGet, "/v1/contracts/c1", "client-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "c1", body["id"])

	resp, body = do(t, srv, http.MethodGet, "/v1/contracts/missing", "client-1", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", errorCode(t, body))

	resp, body = do(t, srv, http.MethodGet, "/v1/contracts/private", "client-1", "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "access_denied", errorCode(t, body))

	resp, body = do(t, srv, http.MethodGet, "/v1/contracts/broken", "client-1", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "internal_error", errorCode(t, body))

	resp, body = do(t, srv, http.MethodPost, "/v1/contracts/c1/sign", "client-1", `{"token":"sig"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "already_signed", errorCode(t, body))
}

func TestServer_ValidationUsesEnvelope(t *testing.T) {
	srv := newTestServer(t, Services{}, nil)

	resp, body := do(t, srv, http.MethodPost, "/v1/contracts", "client-1", `{"title":"missing fields"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_failed", errorCode(t, body))
}

func TestServer_WorkspaceRoleQuery(t *testing.T) {
	var gotRole party.Role
	workspaces := &stubWorkspaces{
		view: func(actorID, id string, role party.Role) (*workspace.RoleView, error) {
			gotRole = role
			if role == party.RoleFreelancer {
				return nil, workspace.ErrAccessDenied
			}
			return &workspace.RoleView{WorkspaceID: id, Role: party.RoleClient}, nil
		},
	}
	srv := newTestServer(t, Services{Workspaces: workspaces}, nil)

	resp, body := do(t, srv, http.MethodGet, "/v1/workspaces/ws1?role=client", "client-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, party.RoleClient, gotRole)
	require.Equal(t, "ws1", body["workspace_id"])

	resp, _ = do(t, srv, http.MethodGet, "/v1/workspaces/ws1?role=freelancer", "client-1", "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/v1/workspaces/ws1?role=admin", "client-1", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_MilestoneStartVersionGuard(t *testing.T) {
	var got milestone.StartRequest
	milestones := &stubMilestones{
		start: func(actorID string, req milestone.StartRequest) (*milestone.Milestone, error) {
			got = req
			if req.ExpectedVersion != nil && *req.ExpectedVersion != 1 {
				return nil, milestone.ErrConflict
			}
			return &milestone.Milestone{ID: req.MilestoneID, Status: milestone.StatusInProgress, Version: 2}, nil
		},
	}
	srv := newTestServer(t, Services{Milestones: milestones}, nil)

	resp, body := do(t, srv, http.MethodPost, "/v1/milestones/m1/start", "freelancer-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, got.ExpectedVersion)
	require.Equal(t, "in_progress", body["status"])

	resp, body = do(t, srv, http.MethodPost, "/v1/milestones/m1/start", "freelancer-1", `{"expected_version":7}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "conflict", errorCode(t, body))
	require.NotNil(t, got.ExpectedVersion)
	require.EqualValues(t, 7, *got.ExpectedVersion)
}

func TestServer_OpenAPI(t *testing.T) {
	srv := newTestServer(t, Services{}, nil)

	resp, body := do(t, srv, http.MethodGet, "/v1/openapi.json", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paths, ok := body["paths"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, paths, "/v1/contracts/{id}/sign")
	require.Contains(t, paths, "/v1/milestones/{id}/approve")
}

func TestServer_EventsUnavailable(t *testing.T) {
	srv := newTestServer(t, Services{}, nil)

	resp, body := do(t, srv, http.MethodGet, "/v1/events", "client-1", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "dependency_failure", errorCode(t, body))
}

func TestServer_StreamEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	pusher := push.NewRedisPusher(rdb)

	srv := newTestServer(t, Services{}, pusher)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer client-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	ev := notify.NewEvent(notify.KindWorkspaceReady, "client-1", "ws1", map[string]any{"workspace_id": "ws1"})
	require.NoError(t, pusher.Publish(ctx, "client-1", ev))

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	require.Equal(t, string(notify.KindWorkspaceReady), eventLine)

	var got notify.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &got))
	require.Equal(t, "ws1", got.SubjectID)
	require.Equal(t, "client-1", got.PartyID)
}

func TestServer_UnknownWorkspaceMilestones(t *testing.T) {
	milestones := &stubMilestones{
		list: func(actorID, workspaceID string) ([]milestone.Milestone, error) {
			return nil, milestone.ErrWorkspaceNotFound
		},
	}
	srv := newTestServer(t, Services{Milestones: milestones}, nil)

	resp, body := do(t, srv, http.MethodGet, "/v1/workspaces/nope/milestones", "client-1", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", errorCode(t, body))

	resp, body = do(t, srv, http.MethodGet, "/v1/workspaces/nope/stats", "client-1", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", errorCode(t, body))
}

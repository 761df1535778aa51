package testserver

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/sqlite"
	"github.com/stretchr/testify/require"
)

const (
	clientID     = "client-1"
	freelancerID = "freelancer-1"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type signResult struct {
	Contract    contract.Contract `json:"contract"`
	Activated   bool              `json:"activated"`
	WorkspaceID string            `json:"workspace_id"`
}

// draftThreePhase creates and sends the 30/50/20 split of a 1000.00 budget.
func draftThreePhase(t *testing.T, ts *TestServer) string {
	t.Helper()
	var c contract.Contract
	status := ts.Do(t, http.MethodPost, "/v1/contracts", clientID, map[string]any{
		"freelancer_id": freelancerID,
		"proposal_id":   "proposal-1",
		"title":         "Marketing site",
		"total_amount":  100000,
		"currency":      "USD",
		"phases": []map[string]any{
			{"number": 1, "title": "Design", "amount": 30000},
			{"number": 2, "title": "Build", "amount": 50000},
			{"number": 3, "title": "Launch", "amount": 20000},
		},
	}, &c)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, contract.StatusDraft, c.Status)

	status = ts.Do(t, http.MethodPost, "/v1/contracts/"+c.ID+"/send", clientID, nil, &c)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, contract.StatusSent, c.Status)
	return c.ID
}

func sign(t *testing.T, ts *TestServer, actorID, contractID string) (int, signResult) {
	t.Helper()
	var res signResult
	status := ts.Do(t, http.MethodPost, "/v1/contracts/"+contractID+"/sign", actorID, map[string]any{"token": actorID + "-sig"}, &res)
	return status, res
}

func workspaceCount(t *testing.T, ts *TestServer, contractID string) int {
	t.Helper()
	var n int
	require.NoError(t, ts.DB.QueryRow(`SELECT COUNT(*) FROM workspaces WHERE contract_id = ?`, contractID).Scan(&n))
	return n
}

func TestScenarioA_ClientSignsFirst(t *testing.T) {
	ts := New(t)
	contractID := draftThreePhase(t, ts)

	status, res := sign(t, ts, clientID, contractID)
	require.Equal(t, http.StatusOK, status)
	require.False(t, res.Activated)
	require.Equal(t, contract.StatusPendingFreelancer, res.Contract.Status)

	status, res = sign(t, ts, freelancerID, contractID)
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Activated)
	require.Equal(t, contract.StatusActive, res.Contract.Status)
	require.Equal(t, workspace.NewID(contractID), res.WorkspaceID)
	require.Equal(t, 1, workspaceCount(t, ts, contractID))

	var milestones []milestone.Milestone
	status = ts.Do(t, http.MethodGet, "/v1/workspaces/"+res.WorkspaceID+"/milestones", freelancerID, nil, &milestones)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, milestones, 3)
	for i, m := range milestones {
		require.Equal(t, i+1, m.PhaseNumber)
		require.Equal(t, milestone.StatusPending, m.Status)
	}
	require.EqualValues(t, 30000, milestones[0].Amount)
	require.EqualValues(t, 50000, milestones[1].Amount)
	require.EqualValues(t, 20000, milestones[2].Amount)

	var view workspace.RoleView
	status = ts.Do(t, http.MethodGet, "/v1/contracts/"+contractID+"/workspace", clientID, nil, &view)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, res.WorkspaceID, view.WorkspaceID)
	require.EqualValues(t, 100000, view.Ledger.Remaining)

	require.Len(t, ts.Recorder.EventsFor(clientID, notify.KindWorkspaceReady), 1)
	require.Len(t, ts.Recorder.EventsFor(freelancerID, notify.KindWorkspaceReady), 1)
}

func TestScenarioB_FreelancerSignsFirst(t *testing.T) {
	ts := New(t)
	contractID := draftThreePhase(t, ts)

	status, res := sign(t, ts, freelancerID, contractID)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, contract.StatusPendingClient, res.Contract.Status)

	status, res = sign(t, ts, clientID, contractID)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, contract.StatusActive, res.Contract.Status)
	require.Equal(t, workspace.NewID(contractID), res.WorkspaceID)
	require.Equal(t, 1, workspaceCount(t, ts, contractID))
}

func TestScenarioC_NoDoubleSign(t *testing.T) {
	ts := New(t)
	contractID := draftThreePhase(t, ts)

	status, first := sign(t, ts, freelancerID, contractID)
	require.Equal(t, http.StatusOK, status)
	signedAt := first.Contract.FreelancerSignature.SignedAt
	require.NotNil(t, signedAt)

	var errBody errorBody
	status = ts.Do(t, http.MethodPost, "/v1/contracts/"+contractID+"/sign", freelancerID, map[string]any{"token": "again"}, &errBody)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "already_signed", errBody.Error.Code)

	var c contract.Contract
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/v1/contracts/"+contractID, freelancerID, nil, &c))
	require.Equal(t, contract.StatusPendingClient, c.Status)
	require.True(t, signedAt.Equal(*c.FreelancerSignature.SignedAt))
}

func TestScenarioD_ConcurrentProvisioning(t *testing.T) {
	ts := New(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, sqlite.NewContractRepository(ts.DB).Create(ctx, &contract.Contract{
		ID:           "just-activated",
		ClientID:     clientID,
		FreelancerID: freelancerID,
		ProposalID:   "proposal-d",
		Title:        "Race",
		TotalAmount:  1000,
		Currency:     "USD",
		Phases:       []contract.Phase{{Number: 1, Title: "One", Amount: 400}, {Number: 2, Title: "Two", Amount: 600}},
		Status:       contract.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}))

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[string]bool)
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, isNew, err := ts.App.Provisioner.Provision(ctx, "just-activated")
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[ws.ID] = true
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()

	require.Len(t, ids, 1)
	require.Equal(t, 1, created)
	require.Equal(t, 1, workspaceCount(t, ts, "just-activated"))

	var n int
	require.NoError(t, ts.DB.QueryRow(`SELECT COUNT(*) FROM milestones WHERE contract_id = ?`, "just-activated").Scan(&n))
	require.Equal(t, 2, n)
}

func TestScenarioE_ApprovalRequiresSubmission(t *testing.T) {
	ts := New(t)
	contractID := draftThreePhase(t, ts)
	sign(t, ts, clientID, contractID)
	_, res := sign(t, ts, freelancerID, contractID)

	var milestones []milestone.Milestone
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/v1/workspaces/"+res.WorkspaceID+"/milestones", clientID, nil, &milestones))
	first := milestones[0].ID

	var errBody errorBody
	status := ts.Do(t, http.MethodPost, "/v1/milestones/"+first+"/approve", clientID, map[string]any{}, &errBody)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "invalid_transition", errBody.Error.Code)

	var m milestone.Milestone
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/v1/milestones/"+first+"/start", freelancerID, nil, &m))
	require.Equal(t, milestone.StatusInProgress, m.Status)

	status = ts.Do(t, http.MethodPost, "/v1/milestones/"+first+"/approve", clientID, map[string]any{}, &errBody)
	require.Equal(t, http.StatusConflict, status)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/v1/milestones/"+first+"/submit", freelancerID, map[string]any{
		"deliverables": []map[string]any{{"name": "designs", "url": "https://files.example/designs.fig"}},
	}, &m))
	require.Equal(t, milestone.StatusAwaitingApproval, m.Status)

	var approval milestone.ApprovalResult
	status = ts.Do(t, http.MethodPost, "/v1/milestones/"+first+"/approve", clientID, map[string]any{
		"expected_version": m.Version,
		"feedback":         "ship it",
	}, &approval)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, milestone.StatusCompleted, approval.Milestone.Status)
	require.True(t, approval.Milestone.PaymentEligible)
	require.Equal(t, 2, approval.Progress.CurrentPhase)
	require.Equal(t, 33, approval.Progress.OverallProgress)

	var view workspace.RoleView
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/v1/workspaces/"+res.WorkspaceID, freelancerID, nil, &view))
	require.Equal(t, 2, view.Shared.CurrentPhase)
	require.Equal(t, 33, view.Shared.OverallProgress)
}

func TestPartyIsolation(t *testing.T) {
	ts := New(t)
	contractID := draftThreePhase(t, ts)
	sign(t, ts, clientID, contractID)
	_, res := sign(t, ts, freelancerID, contractID)

	var note workspace.Note
	require.Equal(t, http.StatusCreated, ts.Do(t, http.MethodPost, "/v1/workspaces/"+res.WorkspaceID+"/notes", clientID,
		map[string]any{"text": "max budget 1200"}, &note))

	var view workspace.RoleView
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/v1/workspaces/"+res.WorkspaceID, freelancerID, nil, &view))
	require.Empty(t, view.Private.Notes)

	var errBody errorBody
	require.Equal(t, http.StatusForbidden, ts.Do(t, http.MethodGet, "/v1/workspaces/"+res.WorkspaceID, "stranger", nil, &errBody))
	require.Equal(t, http.StatusForbidden, ts.Do(t, http.MethodGet, "/v1/workspaces/"+res.WorkspaceID+"?role=client", freelancerID, nil, &errBody))
	require.Equal(t, http.StatusForbidden, ts.Do(t, http.MethodGet, "/v1/contracts/"+contractID+"/activity", "stranger", nil, &errBody))
	require.Equal(t, http.StatusForbidden, ts.Do(t, http.MethodGet, "/v1/workspaces/"+res.WorkspaceID+"/milestones", "stranger", nil, &errBody))
}

func TestUnknownWorkspaceIsNotFound(t *testing.T) {
	ts := New(t)

	for _, path := range []string{
		"/v1/workspaces/no-such-workspace/milestones",
		"/v1/workspaces/no-such-workspace/stats",
	} {
		var errBody errorBody
		require.Equal(t, http.StatusNotFound, ts.Do(t, http.MethodGet, path, "anyone", nil, &errBody), path)
		require.Equal(t, "not_found", errBody.Error.Code, path)
	}
}

func TestRejectsForgedToken(t *testing.T) {
	ts := New(t)

	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/v1/contracts", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRealtimeStream(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ts := NewWithOptions(t, Options{Redis: rdb})
	contractID := draftThreePhase(t, ts)
	sign(t, ts, clientID, contractID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.Server.URL+"/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.Token(t, freelancerID))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	_, res := sign(t, ts, freelancerID, contractID)
	require.True(t, res.Activated)

	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.TrimSpace(line) == "event: "+string(notify.KindWorkspaceReady) {
			data, err := reader.ReadString('\n')
			require.NoError(t, err)
			require.Contains(t, data, res.WorkspaceID)
			return
		}
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/sqlite"
	"github.com/stretchr/testify/require"
)

func newServices(t *testing.T) Services {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	contracts := sqlite.NewContractRepository(db)
	workspaces := sqlite.NewWorkspaceRepository(db)
	milestones := sqlite.NewMilestoneRepository(db)
	activities := sqlite.NewActivityRepository(db)

	provisioner := workspace.NewProvisioner(contracts, workspaces, activities, nil, workspace.RetryPolicy{}, nil)
	contractSvc := contract.NewService(contracts, milestones, provisioner, activities, nil, nil)
	return Services{
		Contracts:  contractSvc,
		Workspaces: workspace.NewService(workspaces, milestones, nil, nil),
		Milestones: milestone.NewService(milestones, contractSvc, activities, nil, nil),
		Activity:   activity.NewService(activities, nil),
	}
}

// connect opens an in-memory session acting as actorID.
func connect(t *testing.T, svc Services, actorID string) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(Config{Services: svc, TransportMode: "stdio", DefaultActor: actorID})

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out), text.Text)
	return out, res.IsError
}

func mustCall(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	out, isErr := call(t, session, name, args)
	require.False(t, isErr, "%s failed: %v", name, out)
	return out
}

func requireToolError(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any, code string) {
	t.Helper()
	out, isErr := call(t, session, name, args)
	require.True(t, isErr, "%s unexpectedly succeeded: %v", name, out)
	require.Equal(t, code, out["code"])
}

func TestServer_ListsTools(t *testing.T) {
	session := connect(t, newServices(t), "client-1")

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool, len(res.Tools))
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"create_contract", "list_contracts", "get_contract", "get_contract_phases", "send_contract",
		"sign_contract", "decline_contract", "cancel_contract", "get_recent_activity",
		"get_workspace", "post_message", "mark_read", "add_file", "add_note", "schedule_call",
		"list_milestones", "get_milestone", "get_milestone_stats", "start_milestone",
		"submit_milestone", "approve_milestone", "request_revision", "record_payment",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}

func TestServer_DocResources(t *testing.T) {
	session := connect(t, newServices(t), "client-1")
	ctx := context.Background()

	resources, err := session.ListResources(ctx, nil)
	require.NoError(t, err)
	require.Len(t, resources.Resources, len(docResources))

	read, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "handshake://docs/lifecycle"})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	require.Contains(t, read.Contents[0].Text, "awaiting_approval")
}

func TestServer_DealLifecycle(t *testing.T) {
	svc := newServices(t)
	client := connect(t, svc, "client-1")
	freelancer := connect(t, svc, "freelancer-1")
	stranger := connect(t, svc, "stranger")

	created := mustCall(t, client, "create_contract", map[string]any{
		"freelancer_id": "freelancer-1",
		"proposal_id":   "proposal-1",
		"title":         "Landing page",
		"total_amount":  100000,
		"currency":      "USD",
		"phases": []map[string]any{
			{"number": 1, "title": "Design", "amount": 40000},
			{"number": 2, "title": "Build", "amount": 60000, "due_date": "2030-01-01T00:00:00Z"},
		},
	})
	contractID := created["id"].(string)
	require.Equal(t, "draft", created["status"])

	requireToolError(t, stranger, "get_contract", map[string]any{"id": contractID}, "ACCESS_DENIED")
	requireToolError(t, client, "get_contract", map[string]any{"id": "nope"}, "CONTRACT_NOT_FOUND")

	mustCall(t, client, "send_contract", map[string]any{"id": contractID})
	signed := mustCall(t, client, "sign_contract", map[string]any{"id": contractID, "token": "client-sig"})
	require.Equal(t, false, signed["activated"])
	requireToolError(t, client, "sign_contract", map[string]any{"id": contractID, "token": "again"}, "ALREADY_SIGNED")

	signed = mustCall(t, freelancer, "sign_contract", map[string]any{"id": contractID, "token": "freelancer-sig"})
	require.Equal(t, true, signed["activated"])
	workspaceID := signed["workspace_id"].(string)
	require.NotEmpty(t, workspaceID)

	view := mustCall(t, freelancer, "get_workspace", map[string]any{"id": workspaceID, "role": "freelancer"})
	require.Equal(t, "freelancer", view["role"])
	requireToolError(t, freelancer, "get_workspace", map[string]any{"id": workspaceID, "role": "client"}, "ACCESS_DENIED")

	byContract := mustCall(t, client, "get_workspace", map[string]any{"contract_id": contractID})
	require.Equal(t, workspaceID, byContract["workspace_id"])
	requireToolError(t, freelancer, "get_workspace", map[string]any{"contract_id": contractID, "role": "client"}, "ACCESS_DENIED")
	requireToolError(t, freelancer, "get_workspace", map[string]any{"contract_id": contractID, "role": "admin"}, "INVALID_INPUT")
	requireToolError(t, client, "list_milestones", map[string]any{"id": "no-such-workspace"}, "WORKSPACE_NOT_FOUND")
	requireToolError(t, client, "get_milestone_stats", map[string]any{"id": "no-such-workspace"}, "WORKSPACE_NOT_FOUND")

	list := mustCall(t, freelancer, "list_milestones", map[string]any{"id": workspaceID})
	milestones := list["milestones"].([]any)
	require.Len(t, milestones, 2)
	first := milestones[0].(map[string]any)
	firstID := first["id"].(string)

	requireToolError(t, client, "start_milestone", map[string]any{"id": firstID}, "ACCESS_DENIED")
	started := mustCall(t, freelancer, "start_milestone", map[string]any{"id": firstID})
	require.Equal(t, "in_progress", started["status"])

	submitted := mustCall(t, freelancer, "submit_milestone", map[string]any{
		"id":           firstID,
		"deliverables": []map[string]any{{"name": "mockups", "url": "https://files.example/mockups.zip"}},
		"note":         "first pass",
	})
	require.Equal(t, "awaiting_approval", submitted["status"])

	requireToolError(t, client, "approve_milestone", map[string]any{"id": firstID, "expected_version": 1}, "CONFLICT")
	approved := mustCall(t, client, "approve_milestone", map[string]any{"id": firstID, "feedback": "great"})
	progress := approved["progress"].(map[string]any)
	require.EqualValues(t, 2, progress["current_phase"])
	require.EqualValues(t, 50, progress["overall_progress"])

	paid := mustCall(t, client, "record_payment", map[string]any{"id": firstID, "reference": "txn-1"})
	require.Equal(t, true, paid["payment_processed"])
	requireToolError(t, client, "record_payment", map[string]any{"id": firstID, "reference": "txn-2"}, "INVALID_TRANSITION")

	stats := mustCall(t, client, "get_milestone_stats", map[string]any{"id": workspaceID})
	require.EqualValues(t, 2, stats["total"])
	require.EqualValues(t, 1, stats["completed"])

	trail := mustCall(t, client, "get_recent_activity", map[string]any{"contract_id": contractID})
	require.NotEmpty(t, trail["activity"])
	requireToolError(t, stranger, "get_recent_activity", map[string]any{"contract_id": contractID}, "ACCESS_DENIED")
}

func TestServer_WorkspaceCollaboration(t *testing.T) {
	svc := newServices(t)
	client := connect(t, svc, "client-1")
	freelancer := connect(t, svc, "freelancer-1")

	created := mustCall(t, client, "create_contract", map[string]any{
		"freelancer_id": "freelancer-1",
		"proposal_id":   "proposal-2",
		"title":         "Logo",
		"total_amount":  5000,
		"currency":      "EUR",
	})
	contractID := created["id"].(string)
	mustCall(t, client, "sign_contract", map[string]any{"id": contractID, "token": "a"})
	workspaceID := mustCall(t, freelancer, "sign_contract", map[string]any{"id": contractID, "token": "b"})["workspace_id"].(string)

	mustCall(t, client, "post_message", map[string]any{"workspace_id": workspaceID, "body": "kickoff tomorrow?"})
	mustCall(t, client, "add_note", map[string]any{"workspace_id": workspaceID, "text": "budget is firm"})
	mustCall(t, client, "schedule_call", map[string]any{
		"workspace_id":     workspaceID,
		"title":            "Kickoff",
		"starts_at":        time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"duration_minutes": 30,
	})
	requireToolError(t, client, "schedule_call", map[string]any{
		"workspace_id":     workspaceID,
		"title":            "Bad",
		"starts_at":        "tomorrow",
		"duration_minutes": 30,
	}, "INVALID_INPUT")

	view := mustCall(t, freelancer, "get_workspace", map[string]any{"id": workspaceID})
	require.EqualValues(t, 1, view["unread"])
	private := view["private"].(map[string]any)
	require.Empty(t, private["notes"])

	mustCall(t, freelancer, "mark_read", map[string]any{"id": workspaceID})
	view = mustCall(t, freelancer, "get_workspace", map[string]any{"id": workspaceID})
	require.EqualValues(t, 0, view["unread"])

	clientView := mustCall(t, client, "get_workspace", map[string]any{"id": workspaceID})
	require.Len(t, clientView["private"].(map[string]any)["notes"], 1)
}

type headerTransport struct {
	token string
	base  http.RoundTripper
}

func (h headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+h.token)
	return h.base.RoundTrip(req)
}

type staticResolver map[string]string

func (r staticResolver) ResolveActor(_ context.Context, token string) (string, error) {
	return r[token], nil
}

func TestServer_HTTPAuth(t *testing.T) {
	server := NewServer(Config{
		Services:      newServices(t),
		Resolver:      staticResolver{"good": "client-1"},
		AuthEnabled:   true,
		TransportMode: "http",
	})
	httpServer := httptest.NewServer(NewHTTPHandler(server, time.Minute))
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	open := func(token string) *sdkmcp.ClientSession {
		client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
		session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
			Endpoint:   httpServer.URL,
			HTTPClient: &http.Client{Transport: headerTransport{token: token, base: http.DefaultTransport}},
		}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = session.Close() })
		return session
	}

	good := open("good")
	res, err := good.CallTool(ctx, &sdkmcp.CallToolParams{Name: "list_contracts", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.False(t, res.IsError)

	bad := open("bad")
	_, err = bad.CallTool(ctx, &sdkmcp.CallToolParams{Name: "list_contracts", Arguments: map[string]any{}})
	require.Error(t, err)
}

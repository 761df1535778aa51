// Package testserver runs the full HTTP stack on an in-memory database for tests.
package testserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/handshake/internal/app"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/push"
	"github.com/rpggio/handshake/internal/sqlite"
	"github.com/rpggio/handshake/internal/transport"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

// Options customizes the stack.
type Options struct {
	// Redis enables realtime push and the SSE endpoint.
	Redis *redis.Client
}

type TestServer struct {
	Server     *httptest.Server
	DB         *sqlite.DB
	App        *app.App
	Recorder   *notify.Recorder
	Dispatcher *notify.Dispatcher
}

func New(t *testing.T) *TestServer {
	return NewWithOptions(t, Options{})
}

func NewWithOptions(t *testing.T, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	recorder := &notify.Recorder{}
	publishers := notify.Fanout{recorder}
	cfg := transport.Config{
		Resolver: transport.NewJWTResolver(secret),
		Ready:    db.Check,
	}

	var dispatcher *notify.Dispatcher
	if opts.Redis != nil {
		pusher := push.NewRedisPusher(opts.Redis)
		dispatcher = notify.NewDispatcher(nil, pusher, nil, time.Second, nil)
		publishers = append(publishers, dispatcher)
		cfg.Events = pusher
	}

	a := app.New(app.SQLiteRepositories(db), publishers, workspace.RetryPolicy{Attempts: 2, Backoff: time.Millisecond}, nil)
	cfg.Services = a.HTTPServices()
	server := httptest.NewServer(transport.NewServer(cfg))

	ts := &TestServer{
		Server:     server,
		DB:         db,
		App:        a,
		Recorder:   recorder,
		Dispatcher: dispatcher,
	}

	t.Cleanup(func() {
		server.Close()
		if dispatcher != nil {
			dispatcher.Wait()
		}
		_ = db.Close()
	})

	return ts
}

// Token mints a bearer token for actorID.
func (ts *TestServer) Token(t *testing.T, actorID string) string {
	t.Helper()
	token, err := transport.IssueToken(secret, actorID, time.Hour)
	require.NoError(t, err)
	return token
}

// Do sends a JSON request as actorID and decodes the response into out when non-nil.
// It returns the status code.
func (ts *TestServer) Do(t *testing.T, method, path, actorID string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set("Authorization", "Bearer "+ts.Token(t, actorID))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

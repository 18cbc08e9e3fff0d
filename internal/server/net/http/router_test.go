package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentcrypto "github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/executor"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/server/api"
	"github.com/tiomoreno/requiety-sub000/internal/server/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/server/middleware"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

const (
	testKey      = "supersecretkeysupersecretkey123456"
	testIssuer   = "requiety"
	testAudience = "requiety-ui"
)

type stack struct {
	srv   *httptest.Server
	repos *repository.Repositories
	hub   *api.ProgressHub
	token string
}

// newStack поднимает API целиком в памяти. exec == nil — настоящий
// HTTPExecutor.
func newStack(t *testing.T, exec runner.Executor) *stack {
	t.Helper()

	codec, err := agentcrypto.NewAESCodec("secret", []byte("0123456789abcdef"),
		agentcrypto.KDFParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: agentcrypto.KeySize})
	require.NoError(t, err)
	repos := repository.New(docstore.NewMemoryStore(), codec, logger.NewNop())

	if exec == nil {
		exec = executor.New(executor.Deps{
			Requests:  repos.Requests,
			Variables: repos.Variables,
			Settings:  repos.Settings,
			History:   repos.Responses,
			Tokens:    repos.OAuthTokens,
		}, t.TempDir())
	}

	ctrl := runner.New(repos.Tree, exec, runner.WithStepDelay(0))
	hub := api.NewProgressHub(logger.NewNop())
	verifier := middleware.NewJWTVerifier(testKey, testIssuer, testAudience)

	ctx, cancel := context.WithCancel(context.Background())
	h := api.NewHandler(ctx, repos, ctrl, exec, hub, logger.NewNop(), verifier)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(func() {
		cancel()
		hub.Close()
		srv.Close()
	})

	token, _, err := crypto.NewAccessToken("test", crypto.JWTConfig{
		Issuer: testIssuer, Audience: testAudience, SigningKey: testKey, TTL: time.Minute,
	})
	require.NoError(t, err)

	return &stack{srv: srv, repos: repos, hub: hub, token: token}
}

func (s *stack) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouter_HealthIsPublic(t *testing.T) {
	s := newStack(t, nil)

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newStack(t, nil)

	resp, err := http.Get(s.srv.URL + "/workspaces")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_WorkspaceTreeAndCascade(t *testing.T) {
	s := newStack(t, nil)

	resp := s.do(t, http.MethodPost, "/workspaces", api.NameRequest{Name: "Main"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ws := decodeInto[models.Workspace](t, resp)

	resp = s.do(t, http.MethodPost, "/folders", api.CreateFolderRequest{ParentID: ws.ID, Name: "Users"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	folder := decodeInto[models.Folder](t, resp)

	resp = s.do(t, http.MethodPost, "/requests", models.Request{Name: "list", ParentID: folder.ID, URL: "http://x"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	req := decodeInto[models.Request](t, resp)
	require.Equal(t, http.MethodGet, req.Method)

	resp = s.do(t, http.MethodGet, "/workspaces/"+ws.ID+"/tree", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tree := decodeInto[repository.Node](t, resp)
	require.Len(t, tree.Children, 1)
	require.Len(t, tree.Children[0].Children, 1)
	require.Equal(t, req.ID, tree.Children[0].Children[0].ID)

	resp = s.do(t, http.MethodDelete, "/workspaces/"+ws.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/folders/"+folder.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/requests/"+req.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// повторное удаление не ошибка
	resp = s.do(t, http.MethodDelete, "/workspaces/"+ws.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newStack(t, nil)

	resp := s.do(t, http.MethodPost, "/folders", api.CreateFolderRequest{ParentID: "wrk_missing", Name: "x"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/workspaces", api.NameRequest{Name: "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/workspaces", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)
	e := decodeInto[api.ErrorResponse](t, raw)
	require.Equal(t, "bad json", e.Error)

	resp = s.do(t, http.MethodGet, "/folders", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/requests/nope/responses?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_SingleActiveEnvironment(t *testing.T) {
	s := newStack(t, nil)
	ws := decodeInto[models.Workspace](t, s.do(t, http.MethodPost, "/workspaces", api.NameRequest{Name: "w"}))

	var envs []models.Environment
	for _, name := range []string{"dev", "prod"} {
		resp := s.do(t, http.MethodPost, "/environments", api.CreateEnvironmentRequest{WorkspaceID: ws.ID, Name: name})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		envs = append(envs, decodeInto[models.Environment](t, resp))
	}
	for _, env := range envs {
		resp := s.do(t, http.MethodPost, "/environments/"+env.ID+"/activate", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	list := decodeInto[[]models.Environment](t, s.do(t, http.MethodGet, "/environments?workspace="+ws.ID, nil))
	active := 0
	for _, env := range list {
		if env.IsActive {
			active++
			require.Equal(t, envs[1].ID, env.ID)
		}
	}
	require.Equal(t, 1, active)

	resp := s.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/deactivate", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	list = decodeInto[[]models.Environment](t, s.do(t, http.MethodGet, "/environments?workspace="+ws.ID, nil))
	for _, env := range list {
		require.False(t, env.IsActive)
	}
}

func TestRouter_SecretVariableIsEncryptedAtRest(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()
	ws := decodeInto[models.Workspace](t, s.do(t, http.MethodPost, "/workspaces", api.NameRequest{Name: "w"}))
	env := decodeInto[models.Environment](t, s.do(t, http.MethodPost, "/environments", api.CreateEnvironmentRequest{WorkspaceID: ws.ID, Name: "dev"}))

	resp := s.do(t, http.MethodPost, "/environments/"+env.ID+"/variables",
		models.Variable{Key: "token", Value: "s3cr3t", IsSecret: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	v := decodeInto[models.Variable](t, resp)
	require.Equal(t, "s3cr3t", v.Value)

	coll, err := s.repos.Registry.Collection(ident.KindVariable)
	require.NoError(t, err)
	docs, err := coll.Find(ctx, docstore.Query{models.FieldID: v.ID}, docstore.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEqual(t, "s3cr3t", docs[0]["value"])

	list := decodeInto[[]models.Variable](t, s.do(t, http.MethodGet, "/environments/"+env.ID+"/variables", nil))
	require.Len(t, list, 1)
	require.Equal(t, "s3cr3t", list[0].Value)
}

func TestRouter_SendRequestRecordsHistory(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	}))
	defer upstream.Close()

	s := newStack(t, nil)
	ws := decodeInto[models.Workspace](t, s.do(t, http.MethodPost, "/workspaces", api.NameRequest{Name: "w"}))
	req := decodeInto[models.Request](t, s.do(t, http.MethodPost, "/requests",
		models.Request{Name: "tea", ParentID: ws.ID, URL: upstream.URL}))

	resp := s.do(t, http.MethodPost, "/requests/"+req.ID+"/send", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeInto[api.SendResponse](t, resp)
	require.Equal(t, http.StatusTeapot, out.Result.StatusCode)
	require.NotNil(t, out.Response)
	require.Equal(t, req.ID, out.Response.RequestID)

	hist := decodeInto[[]models.Response](t, s.do(t, http.MethodGet, "/requests/"+req.ID+"/responses", nil))
	require.Len(t, hist, 1)

	resp = s.do(t, http.MethodPost, "/requests/missing/send", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SettingsPatch(t *testing.T) {
	s := newStack(t, nil)

	got := decodeInto[models.Settings](t, s.do(t, http.MethodGet, "/settings", nil))
	require.Equal(t, repository.DefaultTimeoutMs, got.Timeout)

	got = decodeInto[models.Settings](t, s.do(t, http.MethodPatch, "/settings", map[string]any{"theme": "dark"}))
	require.Equal(t, "dark", got.Theme)
	require.Equal(t, repository.DefaultTimeoutMs, got.Timeout)
}

// gate блокирует каждый запрос до release.
type gate struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) Execute(ctx context.Context, req models.Request) (*runner.ExecResult, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &runner.ExecResult{StatusCode: http.StatusOK}, nil
}

func TestRouter_RunnerLifecycle(t *testing.T) {
	g := newGate()
	s := newStack(t, g)
	ctx := context.Background()

	ws, err := s.repos.Workspaces.Create(ctx, "w")
	require.NoError(t, err)
	for _, name := range []string{"a", "b"} {
		_, err := s.repos.Requests.Create(ctx, models.Request{Name: name, ParentID: ws.ID, URL: "http://x"})
		require.NoError(t, err)
	}

	target := runner.Target{ID: ws.ID, Kind: runner.TargetWorkspace}
	resp := s.do(t, http.MethodPost, "/runner/start", target)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	<-g.started
	resp = s.do(t, http.MethodPost, "/runner/start", target)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	snap := decodeInto[runner.Snapshot](t, s.do(t, http.MethodGet, "/runner/status", nil))
	require.Equal(t, runner.StatusRunning, snap.State)

	resp = s.do(t, http.MethodPost, "/runner/stop", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	close(g.release)

	require.Eventually(t, func() bool {
		snap := decodeInto[runner.Snapshot](t, s.do(t, http.MethodGet, "/runner/status", nil))
		return snap.State == runner.StatusIdle && snap.Last != nil
	}, 2*time.Second, 10*time.Millisecond)

	snap = decodeInto[runner.Snapshot](t, s.do(t, http.MethodGet, "/runner/status", nil))
	require.Equal(t, runner.StatusStopped, snap.Last.Status)
	require.Len(t, snap.Last.Results, 1)

	resp = s.do(t, http.MethodPost, "/runner/start", runner.Target{Kind: runner.TargetWorkspace})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ProgressOverWebSocket(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	ws, err := s.repos.Workspaces.Create(ctx, "w")
	require.NoError(t, err)
	_, err = s.repos.Requests.Create(ctx, models.Request{Name: "one", ParentID: ws.ID, URL: upstream.URL})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/runner/progress?" + middleware.TokenQueryParam + "=" + s.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	resp := s.do(t, http.MethodPost, "/runner/start", runner.Target{ID: ws.ID, Kind: runner.TargetWorkspace})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var events []api.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var evt api.Event
		require.NoError(t, conn.ReadJSON(&evt))
		events = append(events, evt)
		if evt.Type == api.EventFinished {
			break
		}
	}

	last := events[len(events)-1]
	require.NotNil(t, last.Result)
	require.Equal(t, runner.StatusCompleted, last.Result.Status)
	require.Equal(t, 1, last.Result.PassedRequests)

	require.Equal(t, api.EventProgress, events[0].Type)
	require.Equal(t, 1, events[0].Progress.Total)
}

func TestRouter_WebSocketRejectsMissingToken(t *testing.T) {
	s := newStack(t, nil)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/runner/progress"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

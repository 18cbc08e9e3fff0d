package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiomoreno/requiety-sub000/internal/agent/cli"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

func TestRequestCmd_CreateStoresHeadersBodyAndAuth(t *testing.T) {
	app := newApp(t)
	wsID := mustWorkspace(t, app, "ws")

	out, err := execute(t, cli.NewRequestCmd(app), "create",
		"--parent", wsID,
		"--method", "POST",
		"--url", "{{host}}/login",
		"--header", "Content-Type: application/json",
		"--header", "X-Trace:  abc ",
		"--body", `{"user":"{{user}}"}`,
		"--bearer", "{{token}}",
		"login",
	)
	require.NoError(t, err)
	id := createdID(t, out)

	r, err := app.Repos.Requests.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, "POST", r.Method)
	require.Equal(t, "{{host}}/login", r.URL)
	require.Len(t, r.Headers, 2)
	require.Equal(t, "X-Trace", r.Headers[1].Name)
	require.Equal(t, "abc", r.Headers[1].Value)
	require.True(t, r.Headers[1].Enabled)
	require.NotNil(t, r.Body)
	require.Equal(t, "json", r.Body.Type)
	require.NotNil(t, r.Auth)
	require.Equal(t, "bearer", r.Auth.Type)
}

func TestRequestCmd_CreateRejectsMalformedHeader(t *testing.T) {
	app := newApp(t)
	wsID := mustWorkspace(t, app, "ws")

	_, err := execute(t, cli.NewRequestCmd(app), "create", "--parent", wsID, "--header", "no-colon", "x")
	require.ErrorIs(t, err, serr.ErrInvalidInput)
}

func TestRequestCmd_ListNeedsExactlyOneScope(t *testing.T) {
	app := newApp(t)

	_, err := execute(t, cli.NewRequestCmd(app), "list")
	require.Error(t, err)

	_, err = execute(t, cli.NewRequestCmd(app), "list", "--parent", "a", "--workspace", "b")
	require.Error(t, err)
}

func TestRequestCmd_ListByWorkspaceIncludesNested(t *testing.T) {
	app := newApp(t)
	ctx := context.Background()
	wsID := mustWorkspace(t, app, "ws")
	f, err := app.Repos.Folders.Create(ctx, wsID, "nested", 0)
	require.NoError(t, err)

	_, err = execute(t, cli.NewRequestCmd(app), "create", "--parent", wsID, "top")
	require.NoError(t, err)
	_, err = execute(t, cli.NewRequestCmd(app), "create", "--parent", f.ID, "deep")
	require.NoError(t, err)

	out, err := execute(t, cli.NewRequestCmd(app), "list", "--workspace", wsID)
	require.NoError(t, err)
	require.Contains(t, out, "top")
	require.Contains(t, out, "deep")

	out, err = execute(t, cli.NewRequestCmd(app), "list", "--parent", wsID)
	require.NoError(t, err)
	require.Contains(t, out, "top")
	require.NotContains(t, out, "deep")
}

func TestRequestCmd_SendSubstitutesActiveVariablesAndRecordsHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		assert.Equal(t, "Bearer s3cr3t", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	app := newApp(t)
	ctx := context.Background()
	wsID := mustWorkspace(t, app, "ws")

	env, err := app.Repos.Environments.Create(ctx, wsID, "local")
	require.NoError(t, err)
	_, err = app.Repos.Environments.Activate(ctx, env.ID)
	require.NoError(t, err)

	_, err = execute(t, cli.NewVarCmd(app), "set", "--env", env.ID, "host", srv.URL)
	require.NoError(t, err)
	_, err = execute(t, cli.NewVarCmd(app), "set", "--env", env.ID, "--secret", "token", "s3cr3t")
	require.NoError(t, err)

	out, err := execute(t, cli.NewRequestCmd(app), "create", "--parent", wsID, "--url", "{{host}}/ping", "--bearer", "{{token}}", "ping")
	require.NoError(t, err)
	id := createdID(t, out)

	out, err = execute(t, cli.NewRequestCmd(app), "send", id)
	require.NoError(t, err)
	require.Contains(t, out, "GET ping -> 202")

	history, err := app.Repos.Responses.ListByRequest(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, http.StatusAccepted, history[0].StatusCode)
}

func TestRequestCmd_SendUnknownRequest(t *testing.T) {
	_, err := execute(t, cli.NewRequestCmd(newApp(t)), "send", "req_missing")
	require.ErrorIs(t, err, serr.ErrNotFound)
}

func TestRequestCmd_DuplicateAndDelete(t *testing.T) {
	app := newApp(t)
	ctx := context.Background()
	wsID := mustWorkspace(t, app, "ws")

	out, err := execute(t, cli.NewRequestCmd(app), "create", "--parent", wsID, "orig")
	require.NoError(t, err)
	orig := createdID(t, out)

	out, err = execute(t, cli.NewRequestCmd(app), "duplicate", orig)
	require.NoError(t, err)
	dup := createdID(t, out)
	require.NotEqual(t, orig, dup)

	_, err = execute(t, cli.NewRequestCmd(app), "delete", orig)
	require.NoError(t, err)

	r, err := app.Repos.Requests.Get(ctx, orig)
	require.NoError(t, err)
	require.Nil(t, r)
	r, err = app.Repos.Requests.Get(ctx, dup)
	require.NoError(t, err)
	require.NotNil(t, r)
}

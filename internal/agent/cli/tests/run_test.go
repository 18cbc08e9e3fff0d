package tests

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiomoreno/requiety-sub000/internal/agent/cli"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// stubExecutor подменяет cli.NewExecutor на время теста.
func stubExecutor(t *testing.T, fn runner.ExecutorFunc) {
	t.Helper()
	prev := cli.NewExecutor
	cli.NewExecutor = func(*cli.App) runner.Executor { return fn }
	t.Cleanup(func() { cli.NewExecutor = prev })
}

// stubInterrupts подменяет cli.Interrupts каналом, которым управляет тест.
func stubInterrupts(t *testing.T) chan os.Signal {
	t.Helper()
	ch := make(chan os.Signal, 1)
	prev := cli.Interrupts
	cli.Interrupts = func() (<-chan os.Signal, func()) { return ch, func() {} }
	t.Cleanup(func() { cli.Interrupts = prev })
	return ch
}

// notifyWriter закрывает ch при первой записи.
type notifyWriter struct {
	once sync.Once
	ch   chan struct{}
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.ch) })
	return len(p), nil
}

func seedRequests(t *testing.T, app *cli.App, parent string, names ...string) {
	t.Helper()
	for i, n := range names {
		_, err := app.Repos.Requests.Create(context.Background(), models.Request{
			Name: n, ParentID: parent, Method: "GET", URL: "http://x/" + n, SortOrder: i,
		})
		require.NoError(t, err)
	}
}

func TestRunCmd_WorkspaceInTreeOrder(t *testing.T) {
	app := newApp(t)
	stubInterrupts(t)

	var mu sync.Mutex
	var seen []string
	stubExecutor(t, func(_ context.Context, r models.Request) (*runner.ExecResult, error) {
		mu.Lock()
		seen = append(seen, r.Name)
		mu.Unlock()
		return &runner.ExecResult{StatusCode: 200, ElapsedTime: 3}, nil
	})

	wsID := mustWorkspace(t, app, "ws")
	seedRequests(t, app, wsID, "a", "b", "c")

	out, err := execute(t, cli.NewRunCmd(app), "workspace", wsID)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, seen)
	require.Contains(t, out, "[1/3] a")
	require.Contains(t, out, "[3/3] c")
	require.Contains(t, out, "completed: 3 passed, 0 failed, 3 total")
	// снимок «запрос начат» не печатается
	require.Equal(t, 3, strings.Count(out, "passed="))
}

func TestRunCmd_JSONOutputAndFailFlag(t *testing.T) {
	app := newApp(t)
	stubInterrupts(t)
	stubExecutor(t, func(_ context.Context, r models.Request) (*runner.ExecResult, error) {
		if r.Name == "bad" {
			return nil, errors.New("connection refused")
		}
		return &runner.ExecResult{StatusCode: 200}, nil
	})

	wsID := mustWorkspace(t, app, "ws")
	seedRequests(t, app, wsID, "good", "bad")

	out, err := execute(t, cli.NewRunCmd(app), "workspace", wsID, "--json")
	require.NoError(t, err)

	var res runner.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, runner.StatusCompleted, res.Status)
	require.Equal(t, 1, res.PassedRequests)
	require.Equal(t, 1, res.FailedRequests)
	require.Len(t, res.Results, 2)
	require.Equal(t, runner.OutcomeError, res.Results[1].Outcome)
	require.Equal(t, "connection refused", res.Results[1].Error)

	_, err = execute(t, cli.NewRunCmd(app), "workspace", wsID, "--fail")
	require.ErrorIs(t, err, cli.ErrRunFailed)
}

func TestRunCmd_InterruptStopsAfterCurrentRequest(t *testing.T) {
	app := newApp(t)
	sigs := stubInterrupts(t)

	stopped := &notifyWriter{ch: make(chan struct{})}
	stubExecutor(t, func(_ context.Context, r models.Request) (*runner.ExecResult, error) {
		if r.Name == "first" {
			// Ctrl-C во время первого запроса; ждём, пока Stop будет вызван
			sigs <- os.Interrupt
			<-stopped.ch
		}
		return &runner.ExecResult{StatusCode: 200}, nil
	})

	wsID := mustWorkspace(t, app, "ws")
	seedRequests(t, app, wsID, "first", "second", "third")

	cmd := cli.NewRunCmd(app)
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetErr(stopped)
	cmd.SetArgs([]string{"workspace", wsID, "--json", "--fail"})

	err := cmd.Execute()
	require.ErrorIs(t, err, cli.ErrRunFailed)

	// после ошибки cobra допишет usage, читаем только первый JSON
	var res runner.Result
	require.NoError(t, json.NewDecoder(strings.NewReader(out.String())).Decode(&res))
	require.Equal(t, runner.StatusStopped, res.Status)
	require.Equal(t, 3, res.TotalRequests)
	require.Len(t, res.Results, 1)
	require.Equal(t, "first", res.Results[0].RequestName)
}

func TestRunCmd_InvalidTarget(t *testing.T) {
	app := newApp(t)
	stubInterrupts(t)
	stubExecutor(t, func(context.Context, models.Request) (*runner.ExecResult, error) {
		return &runner.ExecResult{}, nil
	})

	_, err := execute(t, cli.NewRunCmd(app), "collection", "x")
	require.ErrorIs(t, err, serr.ErrInvalidInput)
}

func TestRunCmd_EmptyFolderCompletes(t *testing.T) {
	app := newApp(t)
	stubInterrupts(t)
	stubExecutor(t, func(context.Context, models.Request) (*runner.ExecResult, error) {
		t.Error("executor must not be called")
		return nil, nil
	})

	wsID := mustWorkspace(t, app, "ws")
	f, err := app.Repos.Folders.Create(context.Background(), wsID, "empty", 0)
	require.NoError(t, err)

	out, err := execute(t, cli.NewRunCmd(app), "folder", f.ID)
	require.NoError(t, err)
	require.Contains(t, out, "completed: 0 passed, 0 failed, 0 total")
}

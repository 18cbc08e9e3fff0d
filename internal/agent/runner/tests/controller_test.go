package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner/mocks"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

func ok(context.Context, models.Request) (*runner.ExecResult, error) {
	return &runner.ExecResult{StatusCode: 200, ElapsedTime: 5}, nil
}

func req(id string, sortOrder int) models.Request {
	return models.Request{Base: models.Base{ID: id}, Name: "name-" + id, SortOrder: sortOrder}
}

func resultIDs(res *runner.Result) []string {
	out := make([]string, 0, len(res.Results))
	for _, r := range res.Results {
		out = append(out, r.RequestID)
	}
	return out
}

// workspaceSource отдаёт фиксированный список запросов воркспейса.
func workspaceSource(t *testing.T, reqs ...models.Request) *mocks.MockSource {
	t.Helper()
	src := mocks.NewMockSource(gomock.NewController(t))
	src.EXPECT().RequestsInWorkspace(gomock.Any(), "wrk_1").Return(reqs, nil).AnyTimes()
	return src
}

var wsTarget = runner.Target{ID: "wrk_1", Kind: runner.TargetWorkspace}

func TestController_FolderTargetSortedAfterTraversal(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)

	src.EXPECT().ChildRequests(gomock.Any(), "root").Return([]models.Request{req("r2", 1)}, nil)
	src.EXPECT().ChildFolders(gomock.Any(), "root").Return([]models.Folder{{Base: models.Base{ID: "f1"}, ParentID: "root"}}, nil)
	src.EXPECT().ChildRequests(gomock.Any(), "f1").Return([]models.Request{req("r1", 0)}, nil)
	src.EXPECT().ChildFolders(gomock.Any(), "f1").Return(nil, nil)

	c := runner.New(src, runner.ExecutorFunc(ok), runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), runner.Target{ID: "root", Kind: runner.TargetFolder}, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
	require.Equal(t, []string{"r1", "r2"}, resultIDs(res))
	require.Equal(t, 2, res.TotalRequests)
	require.Equal(t, 2, res.PassedRequests)
}

func TestController_FolderTargetToleratesCycles(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)

	src.EXPECT().ChildRequests(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	src.EXPECT().ChildFolders(gomock.Any(), "f1").Return([]models.Folder{{Base: models.Base{ID: "f2"}}}, nil)
	src.EXPECT().ChildFolders(gomock.Any(), "f2").Return([]models.Folder{{Base: models.Base{ID: "f1"}}}, nil)

	c := runner.New(src, runner.ExecutorFunc(ok), runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), runner.Target{ID: "f1", Kind: runner.TargetFolder}, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
	require.Empty(t, res.Results)
}

func TestController_WorkspaceTargetSortedBySortOrder(t *testing.T) {
	src := workspaceSource(t, req("c", 3), req("a", 1), req("b", 2))

	var executed []string
	exec := runner.ExecutorFunc(func(ctx context.Context, r models.Request) (*runner.ExecResult, error) {
		executed = append(executed, r.ID)
		return ok(ctx, r)
	})

	c := runner.New(src, exec, runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, executed)
	require.Equal(t, executed, resultIDs(res))
	require.False(t, res.EndTime.Before(res.StartTime))
}

func TestController_CooperativeStop(t *testing.T) {
	src := workspaceSource(t, req("r1", 1), req("r2", 2), req("r3", 3), req("r4", 4))

	var c *runner.Controller
	calls := 0
	exec := runner.ExecutorFunc(func(ctx context.Context, r models.Request) (*runner.ExecResult, error) {
		calls++
		if calls == 2 {
			// стоп во время второго запроса: он всё равно завершится
			c.Stop()
		}
		return ok(ctx, r)
	})
	c = runner.New(src, exec, runner.WithStepDelay(0))

	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusStopped, res.Status)
	require.Equal(t, []string{"r1", "r2"}, resultIDs(res))
	require.Equal(t, 4, res.TotalRequests)
	require.Equal(t, 2, calls)

	snap := c.Status()
	require.Equal(t, runner.StatusIdle, snap.State)
	require.Equal(t, runner.StatusStopped, snap.Last.Status)
}

func TestController_StopDuringLastRequest(t *testing.T) {
	src := workspaceSource(t, req("r1", 1), req("r2", 2))

	var c *runner.Controller
	calls := 0
	exec := runner.ExecutorFunc(func(ctx context.Context, r models.Request) (*runner.ExecResult, error) {
		calls++
		if calls == 2 {
			c.Stop()
		}
		return ok(ctx, r)
	})
	c = runner.New(src, exec, runner.WithStepDelay(0))

	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusStopped, res.Status)
	require.Equal(t, []string{"r1", "r2"}, resultIDs(res))
	require.Equal(t, runner.StatusStopped, c.Status().Last.Status)
}

func TestController_CancelDuringLastRequest(t *testing.T) {
	src := workspaceSource(t, req("r1", 1))

	ctx, cancel := context.WithCancel(context.Background())
	exec := runner.ExecutorFunc(func(_ context.Context, r models.Request) (*runner.ExecResult, error) {
		cancel()
		return &runner.ExecResult{StatusCode: 200}, nil
	})

	c := runner.New(src, exec, runner.WithStepDelay(0))
	res, err := c.Start(ctx, wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusStopped, res.Status)
	require.Len(t, res.Results, 1)
}

func TestController_ContextCancelActsAsStop(t *testing.T) {
	src := workspaceSource(t, req("r1", 1), req("r2", 2))

	ctx, cancel := context.WithCancel(context.Background())
	exec := runner.ExecutorFunc(func(_ context.Context, r models.Request) (*runner.ExecResult, error) {
		cancel()
		return &runner.ExecResult{StatusCode: 200}, nil
	})

	c := runner.New(src, exec, runner.WithStepDelay(time.Hour))
	res, err := c.Start(ctx, wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusStopped, res.Status)
	require.Len(t, res.Results, 1)
}

func TestController_ErrorIsolation(t *testing.T) {
	src := workspaceSource(t, req("r1", 1), req("r2", 2), req("r3", 3))

	exec := runner.ExecutorFunc(func(ctx context.Context, r models.Request) (*runner.ExecResult, error) {
		if r.ID == "r2" {
			return nil, errors.New("connection refused")
		}
		return ok(ctx, r)
	})

	c := runner.New(src, exec, runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
	require.Len(t, res.Results, 3)
	require.Equal(t, 2, res.PassedRequests)
	require.Equal(t, 1, res.FailedRequests)

	failed := res.Results[1]
	require.Equal(t, runner.OutcomeError, failed.Outcome)
	require.Zero(t, failed.Duration)
	require.Zero(t, failed.StatusCode)
	require.Equal(t, "connection refused", failed.Error)
}

func TestController_FailedAssertionsClassifyAsFail(t *testing.T) {
	src := workspaceSource(t, req("r1", 1), req("r2", 2))

	exec := runner.ExecutorFunc(func(_ context.Context, r models.Request) (*runner.ExecResult, error) {
		tr := &runner.TestResults{Passed: 2}
		if r.ID == "r2" {
			tr = &runner.TestResults{Passed: 1, Failed: 1}
		}
		return &runner.ExecResult{StatusCode: 500, ElapsedTime: 12, TestResults: tr}, nil
	})

	c := runner.New(src, exec, runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.OutcomePass, res.Results[0].Outcome)
	require.Equal(t, runner.OutcomeFail, res.Results[1].Outcome)
	require.Equal(t, 500, res.Results[1].StatusCode)
	require.EqualValues(t, 12, res.Results[1].Duration)
	require.Equal(t, 1, res.Results[1].TestResults.Failed)
	require.Equal(t, 1, res.PassedRequests)
	require.Equal(t, 1, res.FailedRequests)
}

func TestController_ReentrancyGuard(t *testing.T) {
	src := workspaceSource(t, req("r1", 1), req("r2", 2))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	exec := runner.ExecutorFunc(func(ctx context.Context, r models.Request) (*runner.ExecResult, error) {
		once.Do(func() { close(started) })
		<-release
		return ok(ctx, r)
	})
	c := runner.New(src, exec, runner.WithStepDelay(0))

	type outcome struct {
		res *runner.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Start(context.Background(), wsTarget, nil)
		done <- outcome{res, err}
	}()

	<-started
	snap := c.Status()
	require.Equal(t, runner.StatusRunning, snap.State)
	require.Equal(t, "wrk_1", snap.Target.ID)

	_, err := c.Start(context.Background(), wsTarget, nil)
	require.ErrorIs(t, err, serr.ErrAlreadyActive)

	close(release)
	out := <-done
	require.NoError(t, out.err)
	require.Equal(t, runner.StatusCompleted, out.res.Status)
	require.Equal(t, []string{"r1", "r2"}, resultIDs(out.res))

	// после окончания прогона можно стартовать снова
	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
}

func TestController_FetchFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	exec := mocks.NewMockExecutor(ctrl)
	boom := errors.New("store unavailable")

	src.EXPECT().RequestsInWorkspace(gomock.Any(), "wrk_1").Return(nil, boom)
	exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(0)

	c := runner.New(src, exec, runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), wsTarget, nil)
	require.ErrorIs(t, err, boom)
	require.Nil(t, res)

	snap := c.Status()
	require.Equal(t, runner.StatusIdle, snap.State)
	require.Equal(t, runner.StatusError, snap.Last.Status)
	require.Contains(t, snap.Last.Error, "store unavailable")
}

func TestController_ProgressSnapshots(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := workspaceSource(t, req("r1", 1), req("r2", 2))
	exec := mocks.NewMockExecutor(ctrl)
	sink := mocks.NewMockSink(ctrl)

	exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(&runner.ExecResult{StatusCode: 200}, nil)
	exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	gomock.InOrder(
		sink.EXPECT().Send(runner.Progress{Total: 2, Completed: 0, CurrentRequestName: "name-r1"}),
		sink.EXPECT().Send(runner.Progress{Total: 2, Completed: 1, CurrentRequestName: "name-r1", Passed: 1}),
		sink.EXPECT().Send(runner.Progress{Total: 2, Completed: 1, CurrentRequestName: "name-r2", Passed: 1}),
		sink.EXPECT().Send(runner.Progress{Total: 2, Completed: 2, CurrentRequestName: "name-r2", Passed: 1, Failed: 1}),
	)

	c := runner.New(src, exec, runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), wsTarget, sink)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
}

func TestController_BrokenSinkDoesNotFailRun(t *testing.T) {
	src := workspaceSource(t, req("r1", 1), req("r2", 2))
	sink := runner.SinkFunc(func(runner.Progress) { panic("window closed") })

	c := runner.New(src, runner.ExecutorFunc(ok), runner.WithStepDelay(0))
	res, err := c.Start(context.Background(), wsTarget, sink)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
	require.Len(t, res.Results, 2)
}

func TestController_StopWhenIdleIsNoop(t *testing.T) {
	src := workspaceSource(t, req("r1", 1))
	c := runner.New(src, runner.ExecutorFunc(ok), runner.WithStepDelay(0))

	c.Stop()
	snap := c.Status()
	require.Equal(t, runner.StatusIdle, snap.State)
	require.Nil(t, snap.Last)

	// ранний Stop не влияет на следующий прогон
	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
}

func TestController_InvalidTarget(t *testing.T) {
	c := runner.New(mocks.NewMockSource(gomock.NewController(t)), runner.ExecutorFunc(ok))

	_, err := c.Start(context.Background(), runner.Target{ID: "x", Kind: "request"}, nil)
	require.ErrorIs(t, err, serr.ErrInvalidInput)
	_, err = c.Start(context.Background(), runner.Target{Kind: runner.TargetFolder}, nil)
	require.ErrorIs(t, err, serr.ErrInvalidInput)
}

func TestController_EmptyTargetCompletes(t *testing.T) {
	src := workspaceSource(t)
	c := runner.New(src, runner.ExecutorFunc(ok), runner.WithStepDelay(0))

	res, err := c.Start(context.Background(), wsTarget, nil)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, res.Status)
	require.Zero(t, res.TotalRequests)
	require.NotNil(t, res.Results)
}

func TestController_StartAsync(t *testing.T) {
	src := workspaceSource(t, req("r1", 1))

	release := make(chan struct{})
	exec := runner.ExecutorFunc(func(ctx context.Context, r models.Request) (*runner.ExecResult, error) {
		<-release
		return ok(ctx, r)
	})
	c := runner.New(src, exec, runner.WithStepDelay(0))

	done := make(chan *runner.Result, 1)
	err := c.StartAsync(context.Background(), wsTarget, nil, func(res *runner.Result, err error) {
		assert.NoError(t, err)
		done <- res
	})
	require.NoError(t, err)

	// Controller занят сразу после возврата StartAsync
	require.ErrorIs(t, c.StartAsync(context.Background(), wsTarget, nil, nil), serr.ErrAlreadyActive)
	require.Equal(t, runner.StatusRunning, c.Status().State)

	close(release)
	res := <-done
	require.Equal(t, runner.StatusCompleted, res.Status)
	require.Eventually(t, func() bool { return c.Status().State == runner.StatusIdle }, time.Second, 5*time.Millisecond)
}

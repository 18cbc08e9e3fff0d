package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// Прогон поверх настоящего дерева: порядок задаёт только sortOrder,
// а не порядок обхода папок.
func TestController_OverRepositoryTree(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(docstore.NewMemoryStore(), crypto.UnavailableCodec{}, logger.NewNop())

	ws, err := repos.Workspaces.Create(ctx, "ws")
	require.NoError(t, err)
	a, err := repos.Folders.Create(ctx, ws.ID, "A", 5)
	require.NoError(t, err)
	b, err := repos.Folders.Create(ctx, ws.ID, "B", 1)
	require.NoError(t, err)
	r1, err := repos.Requests.Create(ctx, models.Request{Name: "R1", ParentID: a.ID, SortOrder: 0})
	require.NoError(t, err)
	r2, err := repos.Requests.Create(ctx, models.Request{Name: "R2", ParentID: b.ID, SortOrder: 1})
	require.NoError(t, err)

	c := runner.New(repos.Tree, runner.ExecutorFunc(ok), runner.WithStepDelay(0))

	res, err := c.Start(ctx, runner.Target{ID: ws.ID, Kind: runner.TargetWorkspace}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{r1.ID, r2.ID}, resultIDs(res))

	res, err = c.Start(ctx, runner.Target{ID: a.ID, Kind: runner.TargetFolder}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{r1.ID}, resultIDs(res))
}

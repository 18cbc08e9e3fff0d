package tests

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore/mocks"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
)

// mockedRepos собирает репозитории поверх мок-хранилища: каждая коллекция —
// отдельный MockCollection, доступный по типу.
func mockedRepos(t *testing.T) (*repository.Repositories, map[ident.Kind]*mocks.MockCollection) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	colls := map[ident.Kind]*mocks.MockCollection{}
	for _, k := range []ident.Kind{
		ident.KindWorkspace, ident.KindFolder, ident.KindRequest, ident.KindResponse,
		ident.KindEnvironment, ident.KindVariable, ident.KindSettings,
		ident.KindMockRoute, ident.KindOAuthToken,
	} {
		c := mocks.NewMockCollection(ctrl)
		colls[k] = c
		store.EXPECT().Collection(string(k)).Return(c)
	}
	return repository.New(store, crypto.UnavailableCodec{}, logger.NewNop()), colls
}

func TestFailure_WorkspaceCreatePropagatesInsertError(t *testing.T) {
	repos, colls := mockedRepos(t)
	boom := errors.New("disk full")

	colls[ident.KindWorkspace].EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := repos.Workspaces.Create(context.Background(), "ws")
	require.ErrorIs(t, err, boom)
}

func TestFailure_CollectFoldersStopsOnFindError(t *testing.T) {
	repos, colls := mockedRepos(t)
	boom := errors.New("io error")

	colls[ident.KindFolder].EXPECT().
		Find(gomock.Any(), docstore.Query{"parentId": docstore.InStrings([]string{"wrk_1"})}, gomock.Any()).
		Return(nil, boom)

	_, err := repos.Tree.CollectFolderIDs(context.Background(), "wrk_1")
	require.ErrorIs(t, err, boom)
}

func TestFailure_WorkspaceDeleteAbortsBeforeRemovingRoot(t *testing.T) {
	repos, colls := mockedRepos(t)
	boom := errors.New("io error")

	// папок нет, а поиск запросов падает: сам воркспейс удаляться не должен
	colls[ident.KindFolder].EXPECT().Find(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	colls[ident.KindRequest].EXPECT().Find(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
	colls[ident.KindWorkspace].EXPECT().Remove(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := repos.Workspaces.Delete(context.Background(), "wrk_1")
	require.ErrorIs(t, err, boom)
}

func TestFailure_ActivateDoesNotEnableWhenDeactivateFails(t *testing.T) {
	repos, colls := mockedRepos(t)
	boom := errors.New("locked")
	envs := colls[ident.KindEnvironment]

	envs.EXPECT().FindOne(gomock.Any(), docstore.Query{"_id": "env_1"}).
		Return(docstore.Document{"_id": "env_1", "workspaceId": "wrk_1", "name": "dev"}, nil)
	envs.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any(), docstore.UpdateOptions{Multi: true}).
		Return(0, boom)

	_, err := repos.Environments.Activate(context.Background(), "env_1")
	require.ErrorIs(t, err, boom)
}

func TestFailure_SettingsRereadOnConcurrentCreate(t *testing.T) {
	repos, colls := mockedRepos(t)
	settings := colls[ident.KindSettings]

	gomock.InOrder(
		settings.EXPECT().FindOne(gomock.Any(), gomock.Any()).Return(nil, nil),
		settings.EXPECT().Insert(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("Settings %q: %w", ident.SettingsID, serr.ErrAlreadyExists)),
		settings.EXPECT().FindOne(gomock.Any(), gomock.Any()).
			Return(docstore.Document{"_id": ident.SettingsID, "theme": "light", "timeout": 1000}, nil),
	)

	s, err := repos.Settings.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "light", s.Theme)
	require.Equal(t, 1000, s.Timeout)
}

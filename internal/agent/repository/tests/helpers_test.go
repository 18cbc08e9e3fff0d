package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

func testCodec(t *testing.T) crypto.Codec {
	t.Helper()
	c, err := crypto.NewAESCodec("test-master-secret", []byte("0123456789abcdef"),
		crypto.KDFParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: crypto.KeySize})
	require.NoError(t, err)
	return c
}

func newRepos(t *testing.T) (*repository.Repositories, docstore.Store) {
	t.Helper()
	store := docstore.NewMemoryStore()
	return repository.New(store, testCodec(t), logger.NewNop()), store
}

// rawDoc читает документ напрямую из хранилища, минуя репозитории.
func rawDoc(t *testing.T, store docstore.Store, collection, id string) docstore.Document {
	t.Helper()
	doc, err := store.Collection(collection).FindOne(context.Background(), docstore.Query{"_id": id})
	require.NoError(t, err)
	return doc
}

func count(t *testing.T, store docstore.Store, collection string, q docstore.Query) int {
	t.Helper()
	docs, err := store.Collection(collection).Find(context.Background(), q, docstore.FindOptions{})
	require.NoError(t, err)
	return len(docs)
}

func mustWorkspace(t *testing.T, repos *repository.Repositories, name string) *models.Workspace {
	t.Helper()
	ws, err := repos.Workspaces.Create(context.Background(), name)
	require.NoError(t, err)
	return ws
}

func mustFolder(t *testing.T, repos *repository.Repositories, parentID, name string, sortOrder int) *models.Folder {
	t.Helper()
	f, err := repos.Folders.Create(context.Background(), parentID, name, sortOrder)
	require.NoError(t, err)
	return f
}

func mustRequest(t *testing.T, repos *repository.Repositories, parentID, name string, sortOrder int) *models.Request {
	t.Helper()
	r, err := repos.Requests.Create(context.Background(), models.Request{
		Name:      name,
		URL:       "https://example.com/" + name,
		ParentID:  parentID,
		SortOrder: sortOrder,
	})
	require.NoError(t, err)
	return r
}

func requestIDs(reqs []models.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}

package repository

import (
	"context"
	"sort"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// Tree — примитивы обхода иерархии. Ими пользуются каскадное удаление,
// выборки «всё в воркспейсе» и раннер коллекций.
type Tree struct {
	d *deps
}

// CollectFolderIDs возвращает id воркспейса и id всех папок под ним.
//
// Обход в ширину: уровень 0 — сам воркспейс; на каждом шаге ищутся папки,
// чей parentId входит в текущий уровень. Обход останавливается, когда
// уровень пуст.
func (t *Tree) CollectFolderIDs(ctx context.Context, workspaceID string) ([]string, error) {
	folders, err := t.CollectFolders(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(folders)+1)
	out = append(out, workspaceID)
	for _, f := range folders {
		out = append(out, f.ID)
	}
	return out, nil
}

// CollectFolders возвращает все папки под воркспейсом (сам воркспейс не входит).
// Порядок — по уровням, внутри уровня — порядок хранилища.
func (t *Tree) CollectFolders(ctx context.Context, workspaceID string) ([]models.Folder, error) {
	folders := t.d.reg.must(ident.KindFolder)

	var out []models.Folder
	seen := map[string]struct{}{workspaceID: {}}
	level := []string{workspaceID}

	for len(level) > 0 {
		docs, err := folders.Find(ctx, docstore.Query{models.FieldParentID: docstore.InStrings(level)}, docstore.FindOptions{})
		if err != nil {
			return nil, err
		}
		next := make([]string, 0, len(docs))
		for _, doc := range docs {
			var f models.Folder
			if err := docstore.Decode(doc, &f); err != nil {
				return nil, err
			}
			if _, dup := seen[f.ID]; dup {
				continue
			}
			seen[f.ID] = struct{}{}
			out = append(out, f)
			next = append(next, f.ID)
		}
		level = next
	}
	return out, nil
}

// RequestsInWorkspace возвращает все запросы воркспейса, отсортированные по sortOrder.
func (t *Tree) RequestsInWorkspace(ctx context.Context, workspaceID string) ([]models.Request, error) {
	ids, err := t.CollectFolderIDs(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return findAll[models.Request](ctx, t.d, ident.KindRequest,
		docstore.Query{models.FieldParentID: docstore.InStrings(ids)}, bySortOrder)
}

// ChildFolders — прямые дочерние папки parentID по sortOrder.
func (t *Tree) ChildFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	return findAll[models.Folder](ctx, t.d, ident.KindFolder, docstore.Query{models.FieldParentID: parentID}, bySortOrder)
}

// ChildRequests — прямые дочерние запросы parentID по sortOrder.
func (t *Tree) ChildRequests(ctx context.Context, parentID string) ([]models.Request, error) {
	return findAll[models.Request](ctx, t.d, ident.KindRequest, docstore.Query{models.FieldParentID: parentID}, bySortOrder)
}

// WorkspaceIDForRequest поднимается от запроса по цепочке parentId до воркспейса.
//
// Возвращает "" (без ошибки), если запрос или промежуточная папка не найдены
// или цепочка длиннее предела глубины (испорченные, циклические данные).
func (t *Tree) WorkspaceIDForRequest(ctx context.Context, requestID string) (string, error) {
	req, err := findOne[models.Request](ctx, t.d, ident.KindRequest, docstore.Query{models.FieldID: requestID})
	if err != nil || req == nil {
		return "", err
	}
	return t.workspaceOf(ctx, req.ParentID)
}

// workspaceOf поднимается от parentID; используется и для запросов, и для папок.
func (t *Tree) workspaceOf(ctx context.Context, parentID string) (string, error) {
	workspaces := t.d.reg.must(ident.KindWorkspace)

	current := parentID
	for depth := 0; depth < t.d.maxDepth; depth++ {
		ws, err := workspaces.FindOne(ctx, docstore.Query{models.FieldID: current})
		if err != nil {
			return "", err
		}
		if ws != nil {
			return current, nil
		}

		folder, err := findOne[models.Folder](ctx, t.d, ident.KindFolder, docstore.Query{models.FieldID: current})
		if err != nil || folder == nil {
			return "", err
		}
		current = folder.ParentID
	}
	return "", nil
}

// isDescendant сообщает, лежит ли candidateID в поддереве папки folderID
// (включая саму папку). Подъём ограничен тем же пределом глубины.
func (t *Tree) isDescendant(ctx context.Context, candidateID, folderID string) (bool, error) {
	current := candidateID
	for depth := 0; depth <= t.d.maxDepth; depth++ {
		if current == folderID {
			return true, nil
		}
		folder, err := findOne[models.Folder](ctx, t.d, ident.KindFolder, docstore.Query{models.FieldID: current})
		if err != nil {
			return false, err
		}
		if folder == nil {
			return false, nil
		}
		current = folder.ParentID
	}
	// слишком глубоко или цикл: безопаснее считать потомком
	return true, nil
}

// Node — узел дерева воркспейса для вывода в CLI и API.
type Node struct {
	Kind      ident.Kind `json:"kind"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	SortOrder int        `json:"sortOrder"`
	Method    string     `json:"method,omitempty"`
	URL       string     `json:"url,omitempty"`
	Children  []*Node    `json:"children,omitempty"`
}

// Build собирает дерево воркспейса: папки, затем запросы, каждые по sortOrder.
// Возвращает nil, если воркспейса нет.
func (t *Tree) Build(ctx context.Context, workspaceID string) (*Node, error) {
	ws, err := findOne[models.Workspace](ctx, t.d, ident.KindWorkspace, docstore.Query{models.FieldID: workspaceID})
	if err != nil || ws == nil {
		return nil, err
	}
	folders, err := t.CollectFolders(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	requests, err := t.RequestsInWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	root := &Node{Kind: ident.KindWorkspace, ID: ws.ID, Name: ws.Name}
	index := map[string]*Node{ws.ID: root}
	for _, f := range folders {
		index[f.ID] = &Node{Kind: ident.KindFolder, ID: f.ID, Name: f.Name, SortOrder: f.SortOrder}
	}

	sort.SliceStable(folders, func(i, j int) bool { return folders[i].SortOrder < folders[j].SortOrder })
	for _, f := range folders {
		if parent, ok := index[f.ParentID]; ok {
			parent.Children = append(parent.Children, index[f.ID])
		}
	}
	for _, r := range requests {
		if parent, ok := index[r.ParentID]; ok {
			parent.Children = append(parent.Children, &Node{
				Kind: ident.KindRequest, ID: r.ID, Name: r.Name, SortOrder: r.SortOrder,
				Method: r.Method, URL: r.URL,
			})
		}
	}
	return root, nil
}

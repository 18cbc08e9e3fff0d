package repository

import (
	"context"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
	"go.uber.org/zap"
)

// cascader удаляет сущности вместе со всем, чем они владеют.
//
// Рекурсия заменена явным стеком, поэтому глубина дерева не ограничена
// стеком вызовов. Дети всегда удаляются раньше родителя. Отката нет:
// ошибка посреди каскада оставляет частично удалённое дерево, операцию
// нужно повторить целиком.
type cascader struct {
	d    *deps
	tree *Tree
}

// deleteRequest удаляет историю ответов, OAuth2-токен и сам запрос.
func (c *cascader) deleteRequest(ctx context.Context, id string) error {
	all := docstore.RemoveOptions{Multi: true}
	byRequest := docstore.Query{models.FieldRequestID: id}

	if _, err := c.d.reg.must(ident.KindResponse).Remove(ctx, byRequest, all); err != nil {
		return err
	}
	if _, err := c.d.reg.must(ident.KindOAuthToken).Remove(ctx, byRequest, all); err != nil {
		return err
	}
	_, err := removeByID(ctx, c.d, ident.KindRequest, id)
	return err
}

// deleteRequestsUnder удаляет прямые дочерние запросы parentID.
func (c *cascader) deleteRequestsUnder(ctx context.Context, parentID string) error {
	requests, err := c.tree.ChildRequests(ctx, parentID)
	if err != nil {
		return err
	}
	for _, r := range requests {
		if err := c.deleteRequest(ctx, r.ID); err != nil {
			return err
		}
	}
	return nil
}

type frame struct {
	id       string
	expanded bool
}

// deleteFolder удаляет папку: сначала дочерние папки (в глубину, каждая со
// своим каскадом), затем её запросы, затем саму папку.
//
// Возвращает id всех удалённых папок.
func (c *cascader) deleteFolder(ctx context.Context, folderID string) ([]string, error) {
	var deleted []string
	visited := map[string]struct{}{folderID: {}}
	stack := []*frame{{id: folderID}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if !top.expanded {
			top.expanded = true
			children, err := c.tree.ChildFolders(ctx, top.id)
			if err != nil {
				return deleted, err
			}
			// в обратном порядке, чтобы первый ребёнок обработался первым
			for i := len(children) - 1; i >= 0; i-- {
				if _, dup := visited[children[i].ID]; dup {
					continue
				}
				visited[children[i].ID] = struct{}{}
				stack = append(stack, &frame{id: children[i].ID})
			}
			continue
		}

		stack = stack[:len(stack)-1]
		if err := c.deleteRequestsUnder(ctx, top.id); err != nil {
			return deleted, err
		}
		if _, err := removeByID(ctx, c.d, ident.KindFolder, top.id); err != nil {
			return deleted, err
		}
		deleted = append(deleted, top.id)
	}

	c.d.log.Debug("folder deleted", zap.String("id", folderID), zap.Int("folders", len(deleted)))
	return deleted, nil
}

// deleteEnvironment удаляет все переменные окружения, затем само окружение.
func (c *cascader) deleteEnvironment(ctx context.Context, id string) error {
	_, err := c.d.reg.must(ident.KindVariable).Remove(ctx,
		docstore.Query{models.FieldEnvironmentID: id}, docstore.RemoveOptions{Multi: true})
	if err != nil {
		return err
	}
	_, err = removeByID(ctx, c.d, ident.KindEnvironment, id)
	return err
}

// deleteWorkspace удаляет папки (каждую каскадом), оставшиеся запросы
// воркспейса, окружения с переменными, мок-маршруты и сам воркспейс.
func (c *cascader) deleteWorkspace(ctx context.Context, id string) error {
	folders, err := c.tree.CollectFolders(ctx, id)
	if err != nil {
		return err
	}
	gone := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		if _, ok := gone[f.ID]; ok {
			continue
		}
		deleted, err := c.deleteFolder(ctx, f.ID)
		if err != nil {
			return err
		}
		for _, fid := range deleted {
			gone[fid] = struct{}{}
		}
	}

	requests, err := c.tree.RequestsInWorkspace(ctx, id)
	if err != nil {
		return err
	}
	for _, r := range requests {
		if err := c.deleteRequest(ctx, r.ID); err != nil {
			return err
		}
	}

	envs, err := findAll[models.Environment](ctx, c.d, ident.KindEnvironment,
		docstore.Query{models.FieldWorkspaceID: id}, docstore.FindOptions{})
	if err != nil {
		return err
	}
	for _, e := range envs {
		if err := c.deleteEnvironment(ctx, e.ID); err != nil {
			return err
		}
	}

	_, err = c.d.reg.must(ident.KindMockRoute).Remove(ctx,
		docstore.Query{models.FieldWorkspaceID: id}, docstore.RemoveOptions{Multi: true})
	if err != nil {
		return err
	}

	if _, err := removeByID(ctx, c.d, ident.KindWorkspace, id); err != nil {
		return err
	}

	c.d.log.Info("workspace deleted",
		zap.String("id", id),
		zap.Int("folders", len(gone)),
		zap.Int("requests", len(requests)),
		zap.Int("environments", len(envs)),
	)
	return nil
}

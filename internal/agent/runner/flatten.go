package runner

import (
	"context"
	"sort"

	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// flatten разворачивает цель в список запросов, отсортированный по sortOrder.
//
// Для папки обход идёт в ширину от самой папки. Итоговый порядок задаёт
// только sortOrder: сортировка применяется после обхода.
func (c *Controller) flatten(ctx context.Context, target Target) ([]models.Request, error) {
	var out []models.Request

	switch target.Kind {
	case TargetWorkspace:
		reqs, err := c.src.RequestsInWorkspace(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		out = reqs
	case TargetFolder:
		queue := []string{target.ID}
		seen := map[string]struct{}{target.ID: {}}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]

			reqs, err := c.src.ChildRequests(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, reqs...)

			folders, err := c.src.ChildFolders(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, f := range folders {
				if _, dup := seen[f.ID]; dup {
					continue
				}
				seen[f.ID] = struct{}{}
				queue = append(queue, f.ID)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

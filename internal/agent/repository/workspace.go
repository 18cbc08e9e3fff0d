package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// WorkspaceRepository — воркспейсы.
type WorkspaceRepository struct {
	d *deps
	c *cascader
}

// Create создаёт воркспейс.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя.
func (r *WorkspaceRepository) Create(ctx context.Context, name string) (*models.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("workspace name is empty: %w", serr.ErrInvalidInput)
	}
	ws := &models.Workspace{Base: r.d.stamp(ident.KindWorkspace), Name: name}
	if err := insert(ctx, r.d, ident.KindWorkspace, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Get возвращает воркспейс или nil, если его нет.
func (r *WorkspaceRepository) Get(ctx context.Context, id string) (*models.Workspace, error) {
	return findOne[models.Workspace](ctx, r.d, ident.KindWorkspace, docstore.Query{models.FieldID: id})
}

// List возвращает все воркспейсы в порядке создания.
func (r *WorkspaceRepository) List(ctx context.Context) ([]models.Workspace, error) {
	return findAll[models.Workspace](ctx, r.d, ident.KindWorkspace, docstore.Query{}, byCreated)
}

// Rename меняет имя воркспейса.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя;
//   - NotFoundError — воркспейса нет.
func (r *WorkspaceRepository) Rename(ctx context.Context, id, name string) (*models.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("workspace name is empty: %w", serr.ErrInvalidInput)
	}
	n, err := updateByID(ctx, r.d, ident.KindWorkspace, id, docstore.Document{models.FieldName: name})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, serr.NotFound(string(ident.KindWorkspace), id)
	}
	return r.Get(ctx, id)
}

// Delete удаляет воркспейс со всеми папками, запросами, историей ответов,
// окружениями, переменными и мок-маршрутами.
// Удаление несуществующего воркспейса — не ошибка.
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	return r.c.deleteWorkspace(ctx, id)
}

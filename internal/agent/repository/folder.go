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

// FolderRepository — папки.
type FolderRepository struct {
	d    *deps
	c    *cascader
	tree *Tree
}

// FolderPatch — частичное обновление папки. nil-поля не меняются.
type FolderPatch struct {
	Name      *string `json:"name,omitempty"`
	SortOrder *int    `json:"sortOrder,omitempty"`
}

// Create создаёт папку под воркспейсом или другой папкой.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя или parentID;
//   - NotFoundError — родителя нет.
func (r *FolderRepository) Create(ctx context.Context, parentID, name string, sortOrder int) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" || parentID == "" {
		return nil, fmt.Errorf("folder name and parent are required: %w", serr.ErrInvalidInput)
	}
	ok, err := parentExists(ctx, r.d, parentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serr.NotFound("Parent", parentID)
	}

	f := &models.Folder{
		Base:      r.d.stamp(ident.KindFolder),
		Name:      name,
		ParentID:  parentID,
		SortOrder: sortOrder,
	}
	if err := insert(ctx, r.d, ident.KindFolder, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Get возвращает папку или nil.
func (r *FolderRepository) Get(ctx context.Context, id string) (*models.Folder, error) {
	return findOne[models.Folder](ctx, r.d, ident.KindFolder, docstore.Query{models.FieldID: id})
}

// ListByParent — прямые дочерние папки по sortOrder.
func (r *FolderRepository) ListByParent(ctx context.Context, parentID string) ([]models.Folder, error) {
	return r.tree.ChildFolders(ctx, parentID)
}

// ListByWorkspace — все папки воркспейса (обход в ширину).
func (r *FolderRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Folder, error) {
	return r.tree.CollectFolders(ctx, workspaceID)
}

// Update применяет patch.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя в patch;
//   - NotFoundError — папки нет.
func (r *FolderRepository) Update(ctx context.Context, id string, patch FolderPatch) (*models.Folder, error) {
	set := docstore.Document{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("folder name is empty: %w", serr.ErrInvalidInput)
		}
		set[models.FieldName] = name
	}
	if patch.SortOrder != nil {
		set[models.FieldSortOrder] = *patch.SortOrder
	}

	n, err := updateByID(ctx, r.d, ident.KindFolder, id, set)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, serr.NotFound(string(ident.KindFolder), id)
	}
	return r.Get(ctx, id)
}

// Move переносит папку под нового родителя.
//
// Ошибки:
//   - ErrInvalidInput — перенос папки в саму себя или в своего потомка;
//   - NotFoundError — папки или нового родителя нет.
func (r *FolderRepository) Move(ctx context.Context, id, newParentID string, sortOrder *int) (*models.Folder, error) {
	f, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, serr.NotFound(string(ident.KindFolder), id)
	}
	ok, err := parentExists(ctx, r.d, newParentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serr.NotFound("Parent", newParentID)
	}
	cyclic, err := r.tree.isDescendant(ctx, newParentID, id)
	if err != nil {
		return nil, err
	}
	if cyclic {
		return nil, fmt.Errorf("cannot move folder %q under itself: %w", id, serr.ErrInvalidInput)
	}

	set := docstore.Document{models.FieldParentID: newParentID}
	if sortOrder != nil {
		set[models.FieldSortOrder] = *sortOrder
	}
	if _, err := updateByID(ctx, r.d, ident.KindFolder, id, set); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Delete удаляет папку со всем поддеревом. Отсутствие папки — не ошибка.
func (r *FolderRepository) Delete(ctx context.Context, id string) error {
	_, err := r.c.deleteFolder(ctx, id)
	return err
}

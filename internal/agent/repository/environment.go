package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
	"go.uber.org/zap"
)

// EnvironmentRepository — окружения воркспейсов.
type EnvironmentRepository struct {
	d *deps
	c *cascader
}

// Create создаёт неактивное окружение.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя или workspaceId;
//   - NotFoundError — воркспейса нет.
func (r *EnvironmentRepository) Create(ctx context.Context, workspaceID, name string) (*models.Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" || workspaceID == "" {
		return nil, fmt.Errorf("environment name and workspace are required: %w", serr.ErrInvalidInput)
	}
	ws, err := findOne[models.Workspace](ctx, r.d, ident.KindWorkspace, docstore.Query{models.FieldID: workspaceID})
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, serr.NotFound(string(ident.KindWorkspace), workspaceID)
	}

	env := &models.Environment{
		Base:        r.d.stamp(ident.KindEnvironment),
		WorkspaceID: workspaceID,
		Name:        name,
	}
	if err := insert(ctx, r.d, ident.KindEnvironment, env); err != nil {
		return nil, err
	}
	return env, nil
}

// Get возвращает окружение или nil.
func (r *EnvironmentRepository) Get(ctx context.Context, id string) (*models.Environment, error) {
	return findOne[models.Environment](ctx, r.d, ident.KindEnvironment, docstore.Query{models.FieldID: id})
}

// ListByWorkspace — окружения воркспейса в порядке создания.
func (r *EnvironmentRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Environment, error) {
	return findAll[models.Environment](ctx, r.d, ident.KindEnvironment,
		docstore.Query{models.FieldWorkspaceID: workspaceID}, byCreated)
}

// GetActive возвращает активное окружение воркспейса или nil.
func (r *EnvironmentRepository) GetActive(ctx context.Context, workspaceID string) (*models.Environment, error) {
	return findOne[models.Environment](ctx, r.d, ident.KindEnvironment,
		docstore.Query{models.FieldWorkspaceID: workspaceID, models.FieldIsActive: true})
}

// Rename меняет имя окружения.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя;
//   - NotFoundError — окружения нет.
func (r *EnvironmentRepository) Rename(ctx context.Context, id, name string) (*models.Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("environment name is empty: %w", serr.ErrInvalidInput)
	}
	n, err := updateByID(ctx, r.d, ident.KindEnvironment, id, docstore.Document{models.FieldName: name})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, serr.NotFound(string(ident.KindEnvironment), id)
	}
	return r.Get(ctx, id)
}

// Activate делает окружение id единственным активным в его воркспейсе.
//
// Две записи: сначала все окружения воркспейса гасятся, затем включается id.
// Это не атомарно: сбой между записями оставит воркспейс без активного
// окружения, но никогда с двумя (при одном писателе).
//
// Ошибки:
//   - NotFoundError — окружения нет.
func (r *EnvironmentRepository) Activate(ctx context.Context, id string) (*models.Environment, error) {
	env, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, serr.NotFound(string(ident.KindEnvironment), id)
	}

	if err := r.deactivateAll(ctx, env.WorkspaceID); err != nil {
		return nil, err
	}
	if _, err := updateByID(ctx, r.d, ident.KindEnvironment, id, docstore.Document{models.FieldIsActive: true}); err != nil {
		return nil, err
	}

	r.d.log.Info("environment activated", zap.String("id", id), zap.String("workspace", env.WorkspaceID))
	return r.Get(ctx, id)
}

// Deactivate гасит все окружения воркспейса.
func (r *EnvironmentRepository) Deactivate(ctx context.Context, workspaceID string) error {
	return r.deactivateAll(ctx, workspaceID)
}

func (r *EnvironmentRepository) deactivateAll(ctx context.Context, workspaceID string) error {
	_, err := r.d.reg.must(ident.KindEnvironment).Update(ctx,
		docstore.Query{models.FieldWorkspaceID: workspaceID},
		docstore.Document{models.FieldIsActive: false, models.FieldModified: r.d.clock.Now()},
		docstore.UpdateOptions{Multi: true},
	)
	return err
}

// Delete удаляет переменные окружения, затем само окружение.
func (r *EnvironmentRepository) Delete(ctx context.Context, id string) error {
	return r.c.deleteEnvironment(ctx, id)
}

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

// MockRouteRepository — маршруты мок-сервера. Сопоставление входящих
// запросов с маршрутами здесь не делается, только хранение.
type MockRouteRepository struct {
	d *deps
}

// MockRoutePatch — частичное обновление маршрута. nil-поля не меняются.
type MockRoutePatch struct {
	Method     *string          `json:"method,omitempty"`
	Path       *string          `json:"path,omitempty"`
	StatusCode *int             `json:"statusCode,omitempty"`
	Headers    *[]models.Header `json:"headers,omitempty"`
	Body       *string          `json:"body,omitempty"`
	Enabled    *bool            `json:"enabled,omitempty"`
}

// Create сохраняет маршрут.
//
// Ошибки:
//   - ErrInvalidInput — пустой workspaceId или path.
func (r *MockRouteRepository) Create(ctx context.Context, in models.MockRoute) (*models.MockRoute, error) {
	if in.WorkspaceID == "" || strings.TrimSpace(in.Path) == "" {
		return nil, fmt.Errorf("mock route workspace and path are required: %w", serr.ErrInvalidInput)
	}
	if in.Method == "" {
		in.Method = DefaultMethod
	}
	in.Method = strings.ToUpper(in.Method)
	if in.StatusCode == 0 {
		in.StatusCode = 200
	}
	in.Base = r.d.stamp(ident.KindMockRoute)
	if err := insert(ctx, r.d, ident.KindMockRoute, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Get возвращает маршрут или nil.
func (r *MockRouteRepository) Get(ctx context.Context, id string) (*models.MockRoute, error) {
	return findOne[models.MockRoute](ctx, r.d, ident.KindMockRoute, docstore.Query{models.FieldID: id})
}

// ListByWorkspace — маршруты воркспейса в порядке создания.
func (r *MockRouteRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.MockRoute, error) {
	return findAll[models.MockRoute](ctx, r.d, ident.KindMockRoute,
		docstore.Query{models.FieldWorkspaceID: workspaceID}, byCreated)
}

// Update применяет patch.
//
// Ошибки:
//   - NotFoundError — маршрута нет.
func (r *MockRouteRepository) Update(ctx context.Context, id string, patch MockRoutePatch) (*models.MockRoute, error) {
	set := docstore.Document{}
	if patch.Method != nil {
		set["method"] = strings.ToUpper(*patch.Method)
	}
	if patch.Path != nil {
		set["path"] = *patch.Path
	}
	if patch.StatusCode != nil {
		set["statusCode"] = *patch.StatusCode
	}
	if patch.Headers != nil {
		set["headers"] = *patch.Headers
	}
	if patch.Body != nil {
		set["body"] = *patch.Body
	}
	if patch.Enabled != nil {
		set["enabled"] = *patch.Enabled
	}

	n, err := updateByID(ctx, r.d, ident.KindMockRoute, id, set)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, serr.NotFound(string(ident.KindMockRoute), id)
	}
	return r.Get(ctx, id)
}

// Delete удаляет маршрут.
func (r *MockRouteRepository) Delete(ctx context.Context, id string) error {
	_, err := removeByID(ctx, r.d, ident.KindMockRoute, id)
	return err
}

// DeleteByWorkspace удаляет все маршруты воркспейса.
func (r *MockRouteRepository) DeleteByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	return r.d.reg.must(ident.KindMockRoute).Remove(ctx,
		docstore.Query{models.FieldWorkspaceID: workspaceID}, docstore.RemoveOptions{Multi: true})
}

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

// DefaultMethod — метод нового запроса, если он не задан.
const DefaultMethod = "GET"

// RequestRepository — сохранённые запросы.
type RequestRepository struct {
	d    *deps
	c    *cascader
	tree *Tree
}

// RequestPatch — частичное обновление запроса. nil-поля не меняются.
type RequestPatch struct {
	Name              *string             `json:"name,omitempty"`
	URL               *string             `json:"url,omitempty"`
	Method            *string             `json:"method,omitempty"`
	SortOrder         *int                `json:"sortOrder,omitempty"`
	Headers           *[]models.Header    `json:"headers,omitempty"`
	Body              *models.RequestBody `json:"body,omitempty"`
	Auth              *models.RequestAuth `json:"auth,omitempty"`
	Assertions        *[]models.Assertion `json:"assertions,omitempty"`
	PreRequestScript  *string             `json:"preRequestScript,omitempty"`
	PostRequestScript *string             `json:"postRequestScript,omitempty"`
}

// Create сохраняет новый запрос. Поля Base заполняются здесь,
// значения из in.Base игнорируются.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя или parentId;
//   - NotFoundError — родителя нет.
func (r *RequestRepository) Create(ctx context.Context, in models.Request) (*models.Request, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.ParentID == "" {
		return nil, fmt.Errorf("request name and parent are required: %w", serr.ErrInvalidInput)
	}
	ok, err := parentExists(ctx, r.d, in.ParentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serr.NotFound("Parent", in.ParentID)
	}
	if in.Method == "" {
		in.Method = DefaultMethod
	}
	in.Method = strings.ToUpper(in.Method)
	in.Base = r.d.stamp(ident.KindRequest)

	if err := insert(ctx, r.d, ident.KindRequest, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Get возвращает запрос или nil.
func (r *RequestRepository) Get(ctx context.Context, id string) (*models.Request, error) {
	return findOne[models.Request](ctx, r.d, ident.KindRequest, docstore.Query{models.FieldID: id})
}

// ListByParent — прямые дочерние запросы по sortOrder.
func (r *RequestRepository) ListByParent(ctx context.Context, parentID string) ([]models.Request, error) {
	return r.tree.ChildRequests(ctx, parentID)
}

// ListByWorkspace — все запросы воркспейса по sortOrder.
func (r *RequestRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Request, error) {
	return r.tree.RequestsInWorkspace(ctx, workspaceID)
}

// WorkspaceID возвращает воркспейс запроса или "" если цепочка оборвана.
func (r *RequestRepository) WorkspaceID(ctx context.Context, id string) (string, error) {
	return r.tree.WorkspaceIDForRequest(ctx, id)
}

// Update применяет patch.
//
// Ошибки:
//   - ErrInvalidInput — пустое имя в patch;
//   - NotFoundError — запроса нет.
func (r *RequestRepository) Update(ctx context.Context, id string, patch RequestPatch) (*models.Request, error) {
	set := docstore.Document{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("request name is empty: %w", serr.ErrInvalidInput)
		}
		set[models.FieldName] = name
	}
	if patch.URL != nil {
		set["url"] = *patch.URL
	}
	if patch.Method != nil {
		set["method"] = strings.ToUpper(*patch.Method)
	}
	if patch.SortOrder != nil {
		set[models.FieldSortOrder] = *patch.SortOrder
	}
	if patch.Headers != nil {
		set["headers"] = *patch.Headers
	}
	if patch.Body != nil {
		set["body"] = patch.Body
	}
	if patch.Auth != nil {
		set["auth"] = patch.Auth
	}
	if patch.Assertions != nil {
		set["assertions"] = *patch.Assertions
	}
	if patch.PreRequestScript != nil {
		set["preRequestScript"] = *patch.PreRequestScript
	}
	if patch.PostRequestScript != nil {
		set["postRequestScript"] = *patch.PostRequestScript
	}

	n, err := updateByID(ctx, r.d, ident.KindRequest, id, set)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, serr.NotFound(string(ident.KindRequest), id)
	}
	return r.Get(ctx, id)
}

// Move переносит запрос под другой воркспейс или папку.
//
// Ошибки:
//   - NotFoundError — запроса или нового родителя нет.
func (r *RequestRepository) Move(ctx context.Context, id, newParentID string, sortOrder *int) (*models.Request, error) {
	ok, err := parentExists(ctx, r.d, newParentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serr.NotFound("Parent", newParentID)
	}

	set := docstore.Document{models.FieldParentID: newParentID}
	if sortOrder != nil {
		set[models.FieldSortOrder] = *sortOrder
	}
	n, err := updateByID(ctx, r.d, ident.KindRequest, id, set)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, serr.NotFound(string(ident.KindRequest), id)
	}
	return r.Get(ctx, id)
}

// Duplicate создаёт копию запроса рядом с оригиналом:
// новое имя "<name> (copy)", sortOrder на единицу больше.
// История ответов и OAuth2-токен не копируются.
//
// Ошибки:
//   - NotFoundError — запроса нет.
func (r *RequestRepository) Duplicate(ctx context.Context, id string) (*models.Request, error) {
	src, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, serr.NotFound(string(ident.KindRequest), id)
	}

	cp := *src
	cp.Base = r.d.stamp(ident.KindRequest)
	cp.Name = src.Name + " (copy)"
	cp.SortOrder = src.SortOrder + 1

	if err := insert(ctx, r.d, ident.KindRequest, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Delete удаляет историю ответов, OAuth2-токен и сам запрос.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	return r.c.deleteRequest(ctx, id)
}

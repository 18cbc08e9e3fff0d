package repository

import (
	"context"
	"fmt"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// ResponseRepository — история ответов запросов.
type ResponseRepository struct {
	d *deps
}

var newestFirst = []docstore.SortField{{Field: models.FieldCreated, Desc: true}}

// Create сохраняет запись истории.
//
// Ошибки:
//   - ErrInvalidInput — пустой requestId.
func (r *ResponseRepository) Create(ctx context.Context, in models.Response) (*models.Response, error) {
	if in.RequestID == "" {
		return nil, fmt.Errorf("response requestId is required: %w", serr.ErrInvalidInput)
	}
	in.Base = r.d.stamp(ident.KindResponse)
	if err := insert(ctx, r.d, ident.KindResponse, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// ListByRequest возвращает историю от новых к старым. limit <= 0 — без лимита.
func (r *ResponseRepository) ListByRequest(ctx context.Context, requestID string, limit int) ([]models.Response, error) {
	return findAll[models.Response](ctx, r.d, ident.KindResponse,
		docstore.Query{models.FieldRequestID: requestID},
		docstore.FindOptions{Sort: newestFirst, Limit: limit})
}

// DeleteByRequest удаляет всю историю запроса и возвращает число удалённых записей.
func (r *ResponseRepository) DeleteByRequest(ctx context.Context, requestID string) (int, error) {
	return r.d.reg.must(ident.KindResponse).Remove(ctx,
		docstore.Query{models.FieldRequestID: requestID}, docstore.RemoveOptions{Multi: true})
}

// PruneHistory оставляет keep самых новых записей запроса, остальные удаляет.
// keep <= 0 — ничего не удаляется.
func (r *ResponseRepository) PruneHistory(ctx context.Context, requestID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := r.ListByRequest(ctx, requestID, 0)
	if err != nil {
		return 0, err
	}
	if len(all) <= keep {
		return 0, nil
	}

	stale := make([]string, 0, len(all)-keep)
	for _, resp := range all[keep:] {
		stale = append(stale, resp.ID)
	}
	return r.d.reg.must(ident.KindResponse).Remove(ctx,
		docstore.Query{models.FieldID: docstore.InStrings(stale)}, docstore.RemoveOptions{Multi: true})
}

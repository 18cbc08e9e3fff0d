package repository

import (
	"context"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// stamp заполняет id, тип и метки времени новой сущности.
func (d *deps) stamp(kind ident.Kind) models.Base {
	now := d.clock.Now()
	return models.Base{
		ID:       ident.NewID(kind),
		Type:     string(kind),
		Created:  now,
		Modified: now,
	}
}

// insert кодирует модель и вставляет её в коллекцию типа kind.
func insert(ctx context.Context, d *deps, kind ident.Kind, v any) error {
	doc, err := docstore.Encode(v)
	if err != nil {
		return err
	}
	_, err = d.reg.must(kind).Insert(ctx, doc)
	return err
}

// findOne возвращает nil, nil если документа нет.
func findOne[T any](ctx context.Context, d *deps, kind ident.Kind, q docstore.Query) (*T, error) {
	doc, err := d.reg.must(kind).FindOne(ctx, q)
	if err != nil || doc == nil {
		return nil, err
	}
	var out T
	if err := docstore.Decode(doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, d *deps, kind ident.Kind, q docstore.Query, opts docstore.FindOptions) ([]T, error) {
	docs, err := d.reg.must(kind).Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := docstore.Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// updateByID применяет $set к одному документу и обновляет modified.
// Возвращает число изменённых документов (0 — документа нет).
func updateByID(ctx context.Context, d *deps, kind ident.Kind, id string, set docstore.Document) (int, error) {
	set[models.FieldModified] = d.clock.Now()
	return d.reg.must(kind).Update(ctx, docstore.Query{models.FieldID: id}, set, docstore.UpdateOptions{})
}

func removeByID(ctx context.Context, d *deps, kind ident.Kind, id string) (int, error) {
	return d.reg.must(kind).Remove(ctx, docstore.Query{models.FieldID: id}, docstore.RemoveOptions{})
}

var (
	bySortOrder = docstore.FindOptions{Sort: []docstore.SortField{{Field: models.FieldSortOrder}}}
	byCreated   = docstore.FindOptions{Sort: []docstore.SortField{{Field: models.FieldCreated}}}
)

// parentExists проверяет, что parentID — существующий воркспейс или папка.
func parentExists(ctx context.Context, d *deps, parentID string) (bool, error) {
	for _, kind := range []ident.Kind{ident.KindWorkspace, ident.KindFolder} {
		doc, err := d.reg.must(kind).FindOne(ctx, docstore.Query{models.FieldID: parentID})
		if err != nil {
			return false, err
		}
		if doc != nil {
			return true, nil
		}
	}
	return false, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// kinds — все типы сущностей, у каждого своя коллекция.
var kinds = []ident.Kind{
	ident.KindWorkspace,
	ident.KindFolder,
	ident.KindRequest,
	ident.KindResponse,
	ident.KindEnvironment,
	ident.KindVariable,
	ident.KindSettings,
	ident.KindMockRoute,
	ident.KindOAuthToken,
}

// Registry сопоставляет тип сущности и коллекцию хранилища.
type Registry struct {
	colls map[ident.Kind]docstore.Collection
}

// NewRegistry открывает коллекции для всех известных типов.
// Имя коллекции совпадает с тегом типа.
func NewRegistry(store docstore.Store) *Registry {
	r := &Registry{colls: make(map[ident.Kind]docstore.Collection, len(kinds))}
	for _, k := range kinds {
		r.colls[k] = store.Collection(string(k))
	}
	return r
}

// Collection возвращает коллекцию типа kind.
//
// Ошибки:
//   - ErrUnknownEntityType для неизвестного типа.
func (r *Registry) Collection(kind ident.Kind) (docstore.Collection, error) {
	c, ok := r.colls[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", serr.ErrUnknownEntityType, kind)
	}
	return c, nil
}

// must — для внутренних вызовов с заведомо известным типом.
func (r *Registry) must(kind ident.Kind) docstore.Collection {
	c, err := r.Collection(kind)
	if err != nil {
		panic(err)
	}
	return c
}

// FindByID ищет документ любого типа по id, определяя коллекцию по префиксу.
//
// Возвращает nil-документ, если id известного типа не найден.
//
// Ошибки:
//   - ErrUnknownEntityType если префикс id не распознан.
func (r *Registry) FindByID(ctx context.Context, id string) (ident.Kind, docstore.Document, error) {
	kind, ok := ident.KindOf(id)
	if !ok {
		return "", nil, fmt.Errorf("%w: id %q", serr.ErrUnknownEntityType, id)
	}
	c, err := r.Collection(kind)
	if err != nil {
		return "", nil, err
	}
	doc, err := c.FindOne(ctx, docstore.Query{models.FieldID: id})
	if err != nil {
		return "", nil, err
	}
	return kind, doc, nil
}

package docstore

import (
	"context"
	"fmt"
	"sync"

	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

// MemoryStore — потокобезопасное in-memory хранилище документов.
//
// Документы хранятся в нормализованном виде (как после encoding/json)
// и наружу отдаются только копиями: изменение результата Find
// не меняет хранилище.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string // порядок вставки
	docs  map[string]Document
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// Collection возвращает коллекцию по имени. Коллекции создаются лениво.
func (s *MemoryStore) Collection(name string) Collection {
	return &memHandle{store: s, name: name}
}

// Close ничего не делает.
func (s *MemoryStore) Close() error { return nil }

// coll вызывается под s.mu.
func (s *MemoryStore) coll(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]Document)}
		s.collections[name] = c
	}
	return c
}

type memHandle struct {
	store *MemoryStore
	name  string
}

func (h *memHandle) Insert(_ context.Context, doc Document) (Document, error) {
	norm, err := normalizeDoc(doc)
	if err != nil {
		return nil, err
	}
	id, err := docID(norm)
	if err != nil {
		return nil, err
	}
	for f := range norm {
		if err := validateField(f); err != nil {
			return nil, err
		}
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	c := h.store.coll(h.name)
	if _, ok := c.docs[id]; ok {
		return nil, fmt.Errorf("%s %q: %w", h.name, id, serr.ErrAlreadyExists)
	}
	c.docs[id] = norm
	c.order = append(c.order, id)

	return copyDoc(norm)
}

func (h *memHandle) Update(_ context.Context, q Query, set Document, opts UpdateOptions) (int, error) {
	preds, err := compileQuery(q)
	if err != nil {
		return 0, err
	}
	if err := validateSet(set); err != nil {
		return 0, err
	}
	patch, err := normalizeDoc(set)
	if err != nil {
		return 0, err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	c := h.store.coll(h.name)
	n := 0
	for _, id := range c.order {
		doc := c.docs[id]
		if !matches(doc, preds) {
			continue
		}
		for k, v := range patch {
			doc[k] = v
		}
		n++
		if !opts.Multi {
			break
		}
	}
	return n, nil
}

func (h *memHandle) Remove(_ context.Context, q Query, opts RemoveOptions) (int, error) {
	preds, err := compileQuery(q)
	if err != nil {
		return 0, err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	c := h.store.coll(h.name)
	kept := c.order[:0]
	n := 0
	for _, id := range c.order {
		if (opts.Multi || n == 0) && matches(c.docs[id], preds) {
			delete(c.docs, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return n, nil
}

func (h *memHandle) Find(_ context.Context, q Query, opts FindOptions) ([]Document, error) {
	preds, err := compileQuery(q)
	if err != nil {
		return nil, err
	}
	if err := validateSort(opts.Sort); err != nil {
		return nil, err
	}

	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	c, ok := h.store.collections[h.name]
	if !ok {
		return []Document{}, nil
	}

	found := make([]Document, 0)
	for _, id := range c.order {
		if doc := c.docs[id]; matches(doc, preds) {
			found = append(found, doc)
		}
	}
	sortDocs(found, opts.Sort)
	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}

	out := make([]Document, 0, len(found))
	for _, doc := range found {
		cp, err := copyDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (h *memHandle) FindOne(ctx context.Context, q Query) (Document, error) {
	docs, err := h.Find(ctx, q, FindOptions{Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// snapshot возвращает копию всех коллекций в порядке вставки.
func (s *MemoryStore) snapshot() (map[string][]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Document, len(s.collections))
	for name, c := range s.collections {
		docs := make([]Document, 0, len(c.order))
		for _, id := range c.order {
			cp, err := copyDoc(c.docs[id])
			if err != nil {
				return nil, err
			}
			docs = append(docs, cp)
		}
		out[name] = docs
	}
	return out, nil
}

// replaceAll полностью заменяет содержимое хранилища.
// Дубликаты по _id: последний документ перезаписывает предыдущий.
func (s *MemoryStore) replaceAll(data map[string][]Document) error {
	fresh := make(map[string]*memCollection, len(data))
	for name, docs := range data {
		c := &memCollection{docs: make(map[string]Document, len(docs))}
		for _, doc := range docs {
			norm, err := normalizeDoc(doc)
			if err != nil {
				return err
			}
			id, err := docID(norm)
			if err != nil {
				return fmt.Errorf("collection %s: %w", name, err)
			}
			if _, dup := c.docs[id]; !dup {
				c.order = append(c.order, id)
			}
			c.docs[id] = norm
		}
		fresh[name] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = fresh
	return nil
}

func copyDoc(doc Document) (Document, error) {
	return normalizeDoc(doc)
}

//go:generate mockgen -source=docstore.go -destination=mocks/mock_docstore.go -package=mocks

// Package docstore — встраиваемое документное хранилище без схемы.
//
// Каждый тип сущности живёт в своей коллекции. Коллекция поддерживает
// вставку, обновление через $set (один или все подходящие документы),
// удаление (один или все), поиск с равенством и $in, сортировку и лимит.
//
// Реализации:
//   - MemoryStore — в памяти процесса (тесты, режим memory);
//   - FileStore — память + JSON-файл, перезаписываемый атомарно после каждой мутации;
//   - SQLStore — таблица documents в SQLite (JSON1) или PostgreSQL (JSONB).
//
// Внешних ключей хранилище не знает: целостность дерева — забота repository.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// Document — документ коллекции. Первичный ключ лежит в поле "_id".
type Document map[string]any

// Query — условие поиска: поле -> значение (равенство) или In (членство).
// Пустой Query подходит под любой документ.
type Query map[string]any

// In — предикат {field: {$in: [...]}}.
type In []any

// InStrings собирает In из строк (чаще всего это id).
func InStrings(values []string) In {
	out := make(In, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

// SortField — поле сортировки.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions — сортировка и лимит для Find. Limit <= 0 — без лимита.
type FindOptions struct {
	Sort  []SortField
	Limit int
}

// UpdateOptions — Multi=false обновляет только первый подходящий документ.
type UpdateOptions struct {
	Multi bool
}

// RemoveOptions — Multi=false удаляет только первый подходящий документ.
type RemoveOptions struct {
	Multi bool
}

// Collection — одна коллекция документов.
type Collection interface {
	Insert(ctx context.Context, doc Document) (Document, error)
	Update(ctx context.Context, q Query, set Document, opts UpdateOptions) (int, error)
	Remove(ctx context.Context, q Query, opts RemoveOptions) (int, error)
	Find(ctx context.Context, q Query, opts FindOptions) ([]Document, error)
	// FindOne возвращает nil, nil если ничего не найдено.
	FindOne(ctx context.Context, q Query) (Document, error)
}

// Store — набор коллекций.
type Store interface {
	Collection(name string) Collection
	Close() error
}

var (
	// ErrInvalidField — имя поля не проходит проверку.
	ErrInvalidField = errors.New("docstore: invalid field name")
	// ErrMissingID — документ без строкового "_id".
	ErrMissingID = errors.New("docstore: document has no _id")
	// ErrImmutableField — попытка изменить "_id" через $set.
	ErrImmutableField = errors.New("docstore: _id cannot be changed")
)

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateField проверяет имя поля. SQL-диалекты подставляют имя
// в JSON-путь, поэтому проверка обязательна для всех реализаций.
func validateField(f string) error {
	if !fieldRe.MatchString(f) {
		return fmt.Errorf("%w: %q", ErrInvalidField, f)
	}
	return nil
}

func validateQuery(q Query) error {
	for f := range q {
		if err := validateField(f); err != nil {
			return err
		}
	}
	return nil
}

func validateSet(set Document) error {
	for f := range set {
		if f == models.FieldID || f == "id" {
			return ErrImmutableField
		}
		if err := validateField(f); err != nil {
			return err
		}
	}
	return nil
}

func validateSort(sort []SortField) error {
	for _, s := range sort {
		if err := validateField(s.Field); err != nil {
			return err
		}
	}
	return nil
}

func docID(doc Document) (string, error) {
	id, ok := doc[models.FieldID].(string)
	if !ok || id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

// Encode превращает структуру модели в Document через её JSON-теги.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode заполняет структуру модели из Document.
func Decode(doc Document, v any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// normalize приводит значение к виду, который даёт encoding/json:
// числа — float64, структуры — map[string]any. После этого значения
// из Query и из документа можно сравнивать напрямую.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDoc(doc Document) (Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	return out, nil
}

// Package errors содержит общие доменные ошибки приложения
// и утилиты для error wrapping.
//
// Эти ошибки используются в repository, runner и crypto слоях
// и маппятся на HTTP-статусы в api слое.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Входные данные невалидны (пустые поля, неправильный формат и т.п.)
	ErrInvalidInput = errors.New("invalid input")
	// Получена непредвиденная ошибка
	ErrInternal = errors.New("internal error")
	// Полученные JSON данные с ошибками
	ErrBadJSON = errors.New("bad json")
	// Неавторизован
	ErrUnauthorized = errors.New("unauthorized")
	// Ресурс уже существует (например документ с таким id)
	ErrAlreadyExists = errors.New("already exists")
	// Ресурс не найден
	ErrNotFound = errors.New("not found")
	// ожидаемая ошибка
	ErrExpectedError = errors.New("expected error")
)

// только для раннера и секретов
var (
	// запуск коллекции, пока предыдущий ещё идёт
	ErrAlreadyActive = errors.New("collection run already active")
	// на машине нет источника ключа для шифрования
	ErrEncryptionUnavailable = errors.New("encryption unavailable")
	// тип сущности, для которого нет коллекции/префикса
	ErrUnknownEntityType = errors.New("unknown entity type")
)

// NotFoundError — "не найдено" с указанием типа сущности и её id.
//
// errors.Is(err, ErrNotFound) для неё возвращает true.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is позволяет сравнивать NotFoundError с ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound создаёт NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

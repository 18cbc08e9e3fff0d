// Package api реализует HTTP-слой локального API.
//
// Пакет отвечает за:
//   - обработку запросов UI и CLI к дереву воркспейсов, окружениям и настройкам;
//   - запуск, остановку и наблюдение за прогоном коллекции;
//   - маппинг доменных ошибок (repository, runner) в HTTP-коды и сообщения.
//
// Маршруты регистрируются в пакете internal/server/net/http.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/server/middleware"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"go.uber.org/zap"
)

// Каждый метод если будет возвращать ответ то будет это делать в JSON
const (
	JsonContentType string = "application/json"
	ContentType     string = "Content-Type"
)

// ErrorResponse стандартный формат ошибки API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler агрегирует зависимости HTTP-слоя и предоставляет методы-хендлеры.
type Handler struct {
	Repos    *repository.Repositories
	Runner   *runner.Controller
	Exec     runner.Executor
	Hub      *ProgressHub
	Log      *logger.HTTPLogger
	Verifier *middleware.JWTVerifier

	// BaseCtx живёт дольше запроса: на нём выполняются фоновые прогоны.
	BaseCtx context.Context
}

// NewHandler создаёт экземпляр Handler с переданными зависимостями.
func NewHandler(
	ctx context.Context,
	repos *repository.Repositories,
	ctrl *runner.Controller,
	exec runner.Executor,
	hub *ProgressHub,
	log *logger.HTTPLogger,
	verifier *middleware.JWTVerifier,
) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		Repos:    repos,
		Runner:   ctrl,
		Exec:     exec,
		Hub:      hub,
		Log:      log,
		Verifier: verifier,
		BaseCtx:  ctx,
	}
}

// Вспомогательная функция вывода ошибки
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set(ContentType, JsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(ContentType, JsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode читает JSON-тело запроса в v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return serr.ErrBadJSON
	}
	return nil
}

// fail отдаёт ошибку с кодом по её типу. Неизвестные ошибки логируются
// и наружу уходят как ErrInternal.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, serr.ErrBadJSON),
		errors.Is(err, serr.ErrInvalidInput),
		errors.Is(err, serr.ErrUnknownEntityType):
		WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, serr.ErrNotFound):
		WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, serr.ErrAlreadyActive),
		errors.Is(err, serr.ErrAlreadyExists):
		WriteError(w, http.StatusConflict, err)
	case errors.Is(err, serr.ErrEncryptionUnavailable):
		WriteError(w, http.StatusPreconditionFailed, err)
	case errors.Is(err, serr.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, err)
	default:
		h.Log.Error(op+" failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		WriteError(w, http.StatusInternalServerError, serr.ErrInternal)
	}
}

// found отдаёт v или 404, если v — nil-указатель.
func found[T any](h *Handler, w http.ResponseWriter, r *http.Request, kind, id string, v *T, err error) {
	if err != nil {
		h.fail(w, r, "get "+kind, err)
		return
	}
	if v == nil {
		WriteError(w, http.StatusNotFound, serr.NotFound(kind, id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

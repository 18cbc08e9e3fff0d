package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// defaultHistoryLimit — сколько ответов отдаёт /responses без ?limit.
const defaultHistoryLimit = 20

// SendResponse итог ручной отправки запроса.
type SendResponse struct {
	Result   *runner.ExecResult `json:"result"`
	Response *models.Response   `json:"response,omitempty"` // записанная история
}

// ListRequests возвращает запросы ?parent=<id> (прямые дети) либо
// ?workspace=<id> (все запросы воркспейса по sortOrder).
//
// @Summary      List requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        parent    query string false "Parent ID"
// @Param        workspace query string false "Workspace ID"
// @Success      200 {array}  models.Request
// @Failure      400 {object} ErrorResponse "Invalid input"
// @Router       /requests [get]
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	var (
		items []models.Request
		err   error
	)
	q := r.URL.Query()
	switch {
	case q.Get("parent") != "":
		items, err = h.Repos.Requests.ListByParent(r.Context(), q.Get("parent"))
	case q.Get("workspace") != "":
		items, err = h.Repos.Requests.ListByWorkspace(r.Context(), q.Get("workspace"))
	default:
		err = serr.ErrInvalidInput
	}
	if err != nil {
		h.fail(w, r, "list requests", err)
		return
	}
	if items == nil {
		items = []models.Request{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateRequest сохраняет новый запрос. Пустой method становится GET.
//
// @Summary      Create request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body models.Request true "Request"
// @Success      201 {object} models.Request
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      404 {object} ErrorResponse "Parent not found"
// @Router       /requests [post]
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var in models.Request
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create request", err)
		return
	}
	req, err := h.Repos.Requests.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// @Summary      Get request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Request ID"
// @Success      200 {object} models.Request
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /requests/{id} [get]
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.Repos.Requests.Get(r.Context(), id)
	found(h, w, r, "Request", id, req, err)
}

// @Summary      Update request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string                  true "Request ID"
// @Param        request body repository.RequestPatch true "Patch"
// @Success      200 {object} models.Request
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /requests/{id} [patch]
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	var patch repository.RequestPatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, "update request", err)
		return
	}
	req, err := h.Repos.Requests.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// @Summary      Move request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string      true "Request ID"
// @Param        request body MoveRequest true "Target"
// @Success      200 {object} models.Request
// @Failure      400 {object} ErrorResponse "Invalid input"
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /requests/{id}/move [post]
func (h *Handler) MoveRequest(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "move request", err)
		return
	}
	moved, err := h.Repos.Requests.Move(r.Context(), chi.URLParam(r, "id"), req.ParentID, req.SortOrder)
	if err != nil {
		h.fail(w, r, "move request", err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

// DuplicateRequest копирует запрос рядом с оригиналом, имя получает
// суффикс " (copy)". История ответов не копируется.
//
// @Summary      Duplicate request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Request ID"
// @Success      201 {object} models.Request
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /requests/{id}/duplicate [post]
func (h *Handler) DuplicateRequest(w http.ResponseWriter, r *http.Request) {
	dup, err := h.Repos.Requests.Duplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "duplicate request", err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

// @Summary      Delete request
// @Tags         requests
// @Security     BearerAuth
// @Param        id path string true "Request ID"
// @Success      204
// @Router       /requests/{id} [delete]
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.Requests.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendRequest исполняет сохранённый запрос с переменными активного
// окружения и записывает ответ в историю.
//
// Ошибка транспорта (DNS, таймаут, TLS) отдаётся как 502.
//
// @Summary      Send request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Request ID"
// @Success      200 {object} SendResponse
// @Failure      404 {object} ErrorResponse "Not found"
// @Failure      502 {object} ErrorResponse "Upstream failure"
// @Router       /requests/{id}/send [post]
func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.Repos.Requests.Get(r.Context(), id)
	if err != nil || req == nil {
		found(h, w, r, "Request", id, req, err)
		return
	}

	res, err := h.Exec.Execute(r.Context(), *req)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err)
		return
	}

	out := SendResponse{Result: res}
	if hist, err := h.Repos.Responses.ListByRequest(r.Context(), id, 1); err == nil && len(hist) > 0 {
		out.Response = &hist[0]
	}
	writeJSON(w, http.StatusOK, out)
}

// ListResponses возвращает историю ответов запроса, новые первыми.
//
// @Summary      Response history
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "Request ID"
// @Param        limit query int    false "Max entries"
// @Success      200 {array}  models.Response
// @Failure      400 {object} ErrorResponse "Invalid limit"
// @Router       /requests/{id}/responses [get]
func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, serr.ErrInvalidInput)
			return
		}
		limit = n
	}
	items, err := h.Repos.Responses.ListByRequest(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, r, "list responses", err)
		return
	}
	if items == nil {
		items = []models.Response{}
	}
	writeJSON(w, http.StatusOK, items)
}

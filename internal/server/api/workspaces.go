package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// NameRequest тело создания/переименования воркспейса или окружения.
type NameRequest struct {
	Name string `json:"name"`
}

// ListWorkspaces возвращает все воркспейсы по возрастанию created.
//
// @Summary      List workspaces
// @Tags         workspaces
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array}  models.Workspace
// @Failure      401 {object} ErrorResponse "Unauthorized"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /workspaces [get]
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repos.Workspaces.List(r.Context())
	if err != nil {
		h.fail(w, r, "list workspaces", err)
		return
	}
	if items == nil {
		items = []models.Workspace{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateWorkspace создаёт воркспейс.
//
// Возможные ошибки:
//   - ErrBadJSON, ErrInvalidInput — пустое или битое тело;
//   - ErrInternal — ошибка хранилища.
//
// @Summary      Create workspace
// @Tags         workspaces
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body NameRequest true "Workspace name"
// @Success      201 {object} models.Workspace
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      401 {object} ErrorResponse "Unauthorized"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /workspaces [post]
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "create workspace", err)
		return
	}
	ws, err := h.Repos.Workspaces.Create(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, "create workspace", err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

// GetWorkspace
//
// @Summary      Get workspace
// @Tags         workspaces
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Workspace ID"
// @Success      200 {object} models.Workspace
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /workspaces/{id} [get]
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ws, err := h.Repos.Workspaces.Get(r.Context(), id)
	found(h, w, r, "Workspace", id, ws, err)
}

// RenameWorkspace
//
// @Summary      Rename workspace
// @Tags         workspaces
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string      true "Workspace ID"
// @Param        request body NameRequest true "New name"
// @Success      200 {object} models.Workspace
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /workspaces/{id} [put]
func (h *Handler) RenameWorkspace(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "rename workspace", err)
		return
	}
	ws, err := h.Repos.Workspaces.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.fail(w, r, "rename workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// DeleteWorkspace удаляет воркспейс каскадно: папки, запросы, история,
// окружения с переменными, mock-маршруты. Повторное удаление — 204.
//
// @Summary      Delete workspace
// @Tags         workspaces
// @Security     BearerAuth
// @Param        id path string true "Workspace ID"
// @Success      204
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /workspaces/{id} [delete]
func (h *Handler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.Workspaces.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete workspace", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WorkspaceTree возвращает дерево папок и запросов воркспейса.
//
// @Summary      Workspace tree
// @Tags         workspaces
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Workspace ID"
// @Success      200 {object} repository.Node
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /workspaces/{id}/tree [get]
func (h *Handler) WorkspaceTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ws, err := h.Repos.Workspaces.Get(r.Context(), id)
	if err != nil || ws == nil {
		found(h, w, r, "Workspace", id, ws, err)
		return
	}
	node, err := h.Repos.Tree.Build(r.Context(), id)
	if err != nil {
		h.fail(w, r, "build tree", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// CreateFolderRequest тело создания папки.
type CreateFolderRequest struct {
	ParentID  string `json:"parentId"` // id воркспейса или папки
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

// MoveRequest тело перемещения папки или запроса.
type MoveRequest struct {
	ParentID  string `json:"parentId"`
	SortOrder *int   `json:"sortOrder,omitempty"`
}

// ListFolders возвращает дочерние папки ?parent=<id> по sortOrder.
//
// @Summary      List child folders
// @Tags         folders
// @Produce      json
// @Security     BearerAuth
// @Param        parent query string true "Parent ID"
// @Success      200 {array}  models.Folder
// @Failure      400 {object} ErrorResponse "Invalid input"
// @Router       /folders [get]
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	parent := r.URL.Query().Get("parent")
	if parent == "" {
		WriteError(w, http.StatusBadRequest, serr.ErrInvalidInput)
		return
	}
	items, err := h.Repos.Folders.ListByParent(r.Context(), parent)
	if err != nil {
		h.fail(w, r, "list folders", err)
		return
	}
	if items == nil {
		items = []models.Folder{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateFolder создаёт папку под воркспейсом или папкой.
//
// Возможные ошибки:
//   - ErrInvalidInput — пустое имя или parentId;
//   - NotFoundError — родителя нет.
//
// @Summary      Create folder
// @Tags         folders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateFolderRequest true "Folder"
// @Success      201 {object} models.Folder
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      404 {object} ErrorResponse "Parent not found"
// @Router       /folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "create folder", err)
		return
	}
	f, err := h.Repos.Folders.Create(r.Context(), req.ParentID, req.Name, req.SortOrder)
	if err != nil {
		h.fail(w, r, "create folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// @Summary      Get folder
// @Tags         folders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Folder ID"
// @Success      200 {object} models.Folder
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /folders/{id} [get]
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.Repos.Folders.Get(r.Context(), id)
	found(h, w, r, "Folder", id, f, err)
}

// @Summary      Update folder
// @Tags         folders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string                 true "Folder ID"
// @Param        request body repository.FolderPatch true "Patch"
// @Success      200 {object} models.Folder
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /folders/{id} [patch]
func (h *Handler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	var patch repository.FolderPatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, "update folder", err)
		return
	}
	f, err := h.Repos.Folders.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update folder", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// MoveFolder переносит папку под другого родителя. Перенос внутрь
// собственного поддерева отклоняется с 400.
//
// @Summary      Move folder
// @Tags         folders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string      true "Folder ID"
// @Param        request body MoveRequest true "Target"
// @Success      200 {object} models.Folder
// @Failure      400 {object} ErrorResponse "Invalid input or cycle"
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /folders/{id}/move [post]
func (h *Handler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "move folder", err)
		return
	}
	f, err := h.Repos.Folders.Move(r.Context(), chi.URLParam(r, "id"), req.ParentID, req.SortOrder)
	if err != nil {
		h.fail(w, r, "move folder", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFolder удаляет папку со всем поддеревом.
//
// @Summary      Delete folder
// @Tags         folders
// @Security     BearerAuth
// @Param        id path string true "Folder ID"
// @Success      204
// @Router       /folders/{id} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.Folders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

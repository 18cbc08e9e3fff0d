package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// CreateEnvironmentRequest тело создания окружения.
type CreateEnvironmentRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
}

// ListEnvironments
//
// @Summary      List environments of workspace
// @Tags         environments
// @Produce      json
// @Security     BearerAuth
// @Param        workspace query string true "Workspace ID"
// @Success      200 {array}  models.Environment
// @Failure      400 {object} ErrorResponse "Invalid input"
// @Router       /environments [get]
func (h *Handler) ListEnvironments(w http.ResponseWriter, r *http.Request) {
	ws := r.URL.Query().Get("workspace")
	if ws == "" {
		WriteError(w, http.StatusBadRequest, serr.ErrInvalidInput)
		return
	}
	items, err := h.Repos.Environments.ListByWorkspace(r.Context(), ws)
	if err != nil {
		h.fail(w, r, "list environments", err)
		return
	}
	if items == nil {
		items = []models.Environment{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateEnvironment создаёт неактивное окружение.
//
// @Summary      Create environment
// @Tags         environments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateEnvironmentRequest true "Environment"
// @Success      201 {object} models.Environment
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      404 {object} ErrorResponse "Workspace not found"
// @Router       /environments [post]
func (h *Handler) CreateEnvironment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnvironmentRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "create environment", err)
		return
	}
	env, err := h.Repos.Environments.Create(r.Context(), req.WorkspaceID, req.Name)
	if err != nil {
		h.fail(w, r, "create environment", err)
		return
	}
	writeJSON(w, http.StatusCreated, env)
}

// @Summary      Rename environment
// @Tags         environments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string      true "Environment ID"
// @Param        request body NameRequest true "New name"
// @Success      200 {object} models.Environment
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /environments/{id} [put]
func (h *Handler) RenameEnvironment(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "rename environment", err)
		return
	}
	env, err := h.Repos.Environments.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.fail(w, r, "rename environment", err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// ActivateEnvironment делает окружение единственным активным в своём
// воркспейсе.
//
// @Summary      Activate environment
// @Tags         environments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Environment ID"
// @Success      200 {object} models.Environment
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /environments/{id}/activate [post]
func (h *Handler) ActivateEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := h.Repos.Environments.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "activate environment", err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// DeactivateEnvironments снимает активность со всех окружений воркспейса.
//
// @Summary      Deactivate environments of workspace
// @Tags         environments
// @Security     BearerAuth
// @Param        id path string true "Workspace ID"
// @Success      204
// @Router       /workspaces/{id}/deactivate [post]
func (h *Handler) DeactivateEnvironments(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.Environments.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "deactivate environments", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Delete environment
// @Tags         environments
// @Security     BearerAuth
// @Param        id path string true "Environment ID"
// @Success      204
// @Router       /environments/{id} [delete]
func (h *Handler) DeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.Environments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete environment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVariables возвращает переменные окружения с открытыми значениями.
// Легаси-секреты в открытом виде шифруются в хранилище при этом чтении.
//
// Возможные ошибки:
//   - ErrEncryptionUnavailable — есть секреты, а ключа нет (412).
//
// @Summary      List variables
// @Tags         variables
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Environment ID"
// @Success      200 {array}  models.Variable
// @Failure      412 {object} ErrorResponse "Encryption unavailable"
// @Router       /environments/{id}/variables [get]
func (h *Handler) ListVariables(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repos.Variables.ListByEnvironment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list variables", err)
		return
	}
	if items == nil {
		items = []models.Variable{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateVariable
//
// @Summary      Create variable
// @Tags         variables
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string          true "Environment ID"
// @Param        request body models.Variable true "Variable"
// @Success      201 {object} models.Variable
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      404 {object} ErrorResponse "Environment not found"
// @Failure      412 {object} ErrorResponse "Encryption unavailable"
// @Router       /environments/{id}/variables [post]
func (h *Handler) CreateVariable(w http.ResponseWriter, r *http.Request) {
	var in models.Variable
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create variable", err)
		return
	}
	in.EnvironmentID = chi.URLParam(r, "id")
	v, err := h.Repos.Variables.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create variable", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// @Summary      Update variable
// @Tags         variables
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string                   true "Variable ID"
// @Param        request body repository.VariablePatch true "Patch"
// @Success      200 {object} models.Variable
// @Failure      404 {object} ErrorResponse "Not found"
// @Failure      412 {object} ErrorResponse "Encryption unavailable"
// @Router       /variables/{id} [patch]
func (h *Handler) UpdateVariable(w http.ResponseWriter, r *http.Request) {
	var patch repository.VariablePatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, "update variable", err)
		return
	}
	v, err := h.Repos.Variables.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update variable", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// @Summary      Delete variable
// @Tags         variables
// @Security     BearerAuth
// @Param        id path string true "Variable ID"
// @Success      204
// @Router       /variables/{id} [delete]
func (h *Handler) DeleteVariable(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.Variables.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete variable", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

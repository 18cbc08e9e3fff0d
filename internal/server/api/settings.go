package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// GetSettings возвращает настройки; при первом обращении создаются
// значения по умолчанию.
//
// @Summary      Get settings
// @Tags         settings
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} models.Settings
// @Router       /settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Repos.Settings.Get(r.Context())
	if err != nil {
		h.fail(w, r, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// @Summary      Update settings
// @Tags         settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body repository.SettingsPatch true "Patch"
// @Success      200 {object} models.Settings
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Router       /settings [patch]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch repository.SettingsPatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, "update settings", err)
		return
	}
	s, err := h.Repos.Settings.Update(r.Context(), patch)
	if err != nil {
		h.fail(w, r, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// @Summary      List mock routes
// @Tags         mocks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Workspace ID"
// @Success      200 {array} models.MockRoute
// @Router       /workspaces/{id}/mocks [get]
func (h *Handler) ListMockRoutes(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repos.MockRoutes.ListByWorkspace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list mock routes", err)
		return
	}
	if items == nil {
		items = []models.MockRoute{}
	}
	writeJSON(w, http.StatusOK, items)
}

// @Summary      Create mock route
// @Tags         mocks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string           true "Workspace ID"
// @Param        request body models.MockRoute true "Route"
// @Success      201 {object} models.MockRoute
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Router       /workspaces/{id}/mocks [post]
func (h *Handler) CreateMockRoute(w http.ResponseWriter, r *http.Request) {
	var in models.MockRoute
	if err := decode(r, &in); err != nil {
		h.fail(w, r, "create mock route", err)
		return
	}
	in.WorkspaceID = chi.URLParam(r, "id")
	m, err := h.Repos.MockRoutes.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create mock route", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// @Summary      Update mock route
// @Tags         mocks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string                    true "Mock route ID"
// @Param        request body repository.MockRoutePatch true "Patch"
// @Success      200 {object} models.MockRoute
// @Failure      404 {object} ErrorResponse "Not found"
// @Router       /mocks/{id} [patch]
func (h *Handler) UpdateMockRoute(w http.ResponseWriter, r *http.Request) {
	var patch repository.MockRoutePatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, "update mock route", err)
		return
	}
	m, err := h.Repos.MockRoutes.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update mock route", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// @Summary      Delete mock route
// @Tags         mocks
// @Security     BearerAuth
// @Param        id path string true "Mock route ID"
// @Success      204
// @Router       /mocks/{id} [delete]
func (h *Handler) DeleteMockRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.Repos.MockRoutes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "delete mock route", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

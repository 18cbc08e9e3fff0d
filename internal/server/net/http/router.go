// Package http реализует маршрутизацию локального API.
//
// Пакет отвечает за:
//   - регистрацию HTTP-маршрутов и настройку роутера (chi);
//   - логирование выполнения HTTP-запросов;
//   - проверку JWT токена доступа для всех маршрутов, кроме /health и /swagger.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/tiomoreno/requiety-sub000/internal/server/api"
	"github.com/tiomoreno/requiety-sub000/internal/server/middleware"
)

// NewRouter создаёт и настраивает HTTP-роутер локального API.
func NewRouter(h *api.Handler) http.Handler {
	r := chi.NewRouter()
	// логирование всех запросов
	r.Use(middleware.LoggerMiddleware(h.Log))

	// добавляем swagger
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	// Публичные пути
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// защищены пути
	r.Group(func(r chi.Router) {
		// проверка access токена
		r.Use(h.Verifier.AuthMiddleware())

		r.Route("/workspaces", func(r chi.Router) {
			r.Get("/", h.ListWorkspaces)
			r.Post("/", h.CreateWorkspace)
			r.Get("/{id}", h.GetWorkspace)
			r.Put("/{id}", h.RenameWorkspace)
			r.Delete("/{id}", h.DeleteWorkspace) // каскадно
			r.Get("/{id}/tree", h.WorkspaceTree)
			r.Post("/{id}/deactivate", h.DeactivateEnvironments)
			r.Get("/{id}/mocks", h.ListMockRoutes)
			r.Post("/{id}/mocks", h.CreateMockRoute)
		})
		r.Route("/folders", func(r chi.Router) {
			r.Get("/", h.ListFolders) // ?parent=
			r.Post("/", h.CreateFolder)
			r.Get("/{id}", h.GetFolder)
			r.Patch("/{id}", h.UpdateFolder)
			r.Post("/{id}/move", h.MoveFolder)
			r.Delete("/{id}", h.DeleteFolder)
		})
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests) // ?parent= или ?workspace=
			r.Post("/", h.CreateRequest)
			r.Get("/{id}", h.GetRequest)
			r.Patch("/{id}", h.UpdateRequest)
			r.Post("/{id}/move", h.MoveRequest)
			r.Post("/{id}/duplicate", h.DuplicateRequest)
			r.Post("/{id}/send", h.SendRequest)
			r.Get("/{id}/responses", h.ListResponses)
			r.Delete("/{id}", h.DeleteRequest)
		})
		r.Route("/environments", func(r chi.Router) {
			r.Get("/", h.ListEnvironments) // ?workspace=
			r.Post("/", h.CreateEnvironment)
			r.Put("/{id}", h.RenameEnvironment)
			r.Post("/{id}/activate", h.ActivateEnvironment)
			r.Delete("/{id}", h.DeleteEnvironment)
			r.Get("/{id}/variables", h.ListVariables)
			r.Post("/{id}/variables", h.CreateVariable)
		})
		r.Route("/variables", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateVariable)
			r.Delete("/{id}", h.DeleteVariable)
		})
		r.Route("/mocks", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateMockRoute)
			r.Delete("/{id}", h.DeleteMockRoute)
		})
		r.Get("/settings", h.GetSettings)
		r.Patch("/settings", h.UpdateSettings)

		r.Route("/runner", func(r chi.Router) {
			r.Post("/start", h.StartRun)
			r.Post("/stop", h.StopRun)
			r.Get("/status", h.RunStatus)
			r.Handle("/progress", h.Hub) // websocket
		})
	})

	return r
}

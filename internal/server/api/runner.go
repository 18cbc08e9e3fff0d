package api

import (
	"errors"
	"net/http"

	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"go.uber.org/zap"
)

// StartRun запускает прогон папки или воркспейса в фоне.
//
// Прогон идёт на BaseCtx, а не на контексте запроса: ответ уходит сразу,
// прогресс и итог публикуются в /runner/progress.
//
// Возможные ошибки:
//   - ErrInvalidInput — пустой id или неизвестный kind;
//   - ErrAlreadyActive — предыдущий прогон ещё идёт (409).
//
// @Summary      Start collection run
// @Tags         runner
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body runner.Target true "Run target"
// @Success      202 {object} runner.Snapshot
// @Failure      400 {object} ErrorResponse "Invalid input or bad JSON"
// @Failure      409 {object} ErrorResponse "Run already active"
// @Router       /runner/start [post]
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var target runner.Target
	if err := decode(r, &target); err != nil {
		h.fail(w, r, "start run", err)
		return
	}

	err := h.Runner.StartAsync(h.BaseCtx, target, h.Hub, func(res *runner.Result, err error) {
		if err != nil {
			h.Log.Warn("collection run failed", zap.Error(err), zap.String("target", target.ID))
		}
		h.Hub.Finished(res, err)
	})
	if err != nil {
		if errors.Is(err, serr.ErrAlreadyActive) {
			WriteError(w, http.StatusConflict, err)
			return
		}
		h.fail(w, r, "start run", err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.Runner.Status())
}

// StopRun просит текущий прогон остановиться после текущего запроса.
// Без активного прогона ничего не делает.
//
// @Summary      Stop collection run
// @Tags         runner
// @Produce      json
// @Security     BearerAuth
// @Success      202 {object} runner.Snapshot
// @Router       /runner/stop [post]
func (h *Handler) StopRun(w http.ResponseWriter, r *http.Request) {
	h.Runner.Stop()
	writeJSON(w, http.StatusAccepted, h.Runner.Status())
}

// @Summary      Collection run status
// @Tags         runner
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} runner.Snapshot
// @Router       /runner/status [get]
func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Runner.Status())
}

package api

import (
	"context"
	"net/url"

	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// Health проверяет, что API поднят. Токен не нужен.
func (c *Client) Health(ctx context.Context) error {
	return c.GetJSON(ctx, "/health", nil)
}

// ListWorkspaces возвращает воркспейсы запущенного приложения.
func (c *Client) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	var out []models.Workspace
	if err := c.GetJSON(ctx, "/workspaces", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendRequest исполняет сохранённый запрос id на стороне приложения.
func (c *Client) SendRequest(ctx context.Context, id string) (*runner.ExecResult, error) {
	var out struct {
		Result *runner.ExecResult `json:"result"`
	}
	if err := c.PostJSON(ctx, "/requests/"+url.PathEscape(id)+"/send", nil, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// StartRun запускает прогон в приложении.
//
// Ошибки:
//   - ErrAlreadyActive — там уже идёт прогон;
//   - ErrInvalidInput — неверная цель.
func (c *Client) StartRun(ctx context.Context, target runner.Target) (*runner.Snapshot, error) {
	var out runner.Snapshot
	if err := c.PostJSON(ctx, "/runner/start", target, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopRun просит прогон остановиться.
func (c *Client) StopRun(ctx context.Context) (*runner.Snapshot, error) {
	var out runner.Snapshot
	if err := c.PostJSON(ctx, "/runner/stop", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunStatus возвращает состояние прогона.
func (c *Client) RunStatus(ctx context.Context) (*runner.Snapshot, error) {
	var out runner.Snapshot
	if err := c.GetJSON(ctx, "/runner/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

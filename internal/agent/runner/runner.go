// Package runner исполняет коллекцию запросов: разворачивает поддерево
// воркспейса или папки в плоский список и выполняет запросы по одному.
//
// Одновременно допускается один прогон на Controller. Controller создаётся
// один раз на процесс и передаётся по указателю.
//
// Остановка кооперативная: флаг проверяется только между запросами, поэтому
// запрос, который уже выполняется, всегда завершается и попадает в результат.
package runner

//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks

import (
	"context"
	"time"

	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// DefaultStepDelay — пауза между запросами, чтобы прогресс было видно.
const DefaultStepDelay = 100 * time.Millisecond

// TargetKind — тип корня прогона.
type TargetKind string

const (
	TargetFolder    TargetKind = "folder"
	TargetWorkspace TargetKind = "workspace"
)

// Target — корень прогона.
type Target struct {
	ID   string     `json:"id"`
	Kind TargetKind `json:"kind"`
}

// Status — состояние прогона.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// Outcome — итог одного запроса.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeError Outcome = "error"
)

// TestResults — сводка проверок ответа.
type TestResults struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// ExecResult — то, что возвращает Executor.
type ExecResult struct {
	StatusCode  int          `json:"statusCode"`
	ElapsedTime int64        `json:"elapsedTime"` // ms
	TestResults *TestResults `json:"testResults,omitempty"`
}

// Executor исполняет один запрос. Ошибка означает сбой транспорта,
// а не «плохой» статус ответа.
type Executor interface {
	Execute(ctx context.Context, req models.Request) (*ExecResult, error)
}

// ExecutorFunc — адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, req models.Request) (*ExecResult, error)

// Execute реализует Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req models.Request) (*ExecResult, error) {
	return f(ctx, req)
}

// Progress — снимок прогресса прогона.
type Progress struct {
	Total              int    `json:"total"`
	Completed          int    `json:"completed"`
	CurrentRequestName string `json:"currentRequestName"`
	Passed             int    `json:"passed"`
	Failed             int    `json:"failed"`
}

// Sink получает снимки прогресса. Доставка best-effort: Send не должен
// блокироваться надолго, а его сбой не влияет на прогон.
type Sink interface {
	Send(p Progress)
}

// SinkFunc — адаптер функции к Sink.
type SinkFunc func(p Progress)

// Send реализует Sink.
func (f SinkFunc) Send(p Progress) { f(p) }

// Source — обход дерева, нужный для разворачивания цели.
// Реализуется *repository.Tree.
type Source interface {
	RequestsInWorkspace(ctx context.Context, workspaceID string) ([]models.Request, error)
	ChildFolders(ctx context.Context, parentID string) ([]models.Folder, error)
	ChildRequests(ctx context.Context, parentID string) ([]models.Request, error)
}

// RequestResult — запись результата одного запроса.
type RequestResult struct {
	RequestID   string       `json:"requestId"`
	RequestName string       `json:"requestName"`
	Outcome     Outcome      `json:"status"`
	StatusCode  int          `json:"statusCode,omitempty"`
	Duration    int64        `json:"duration"` // ms
	TestResults *TestResults `json:"testResults,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Result — итог прогона.
type Result struct {
	Target         Target          `json:"target"`
	Status         Status          `json:"status"`
	TotalRequests  int             `json:"totalRequests"`
	PassedRequests int             `json:"passedRequests"`
	FailedRequests int             `json:"failedRequests"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	Results        []RequestResult `json:"results"`
	Error          string          `json:"error,omitempty"`
}

package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
	"go.uber.org/zap"
)

// Snapshot — наблюдаемое состояние Controller.
//
// State — текущее состояние: running во время прогона, idle в остальное
// время. Last — результат последнего завершённого прогона, его Status
// хранит, чем прогон закончился (completed, stopped или error).
type Snapshot struct {
	State    Status    `json:"state"`
	Target   *Target   `json:"target,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
	Last     *Result   `json:"last,omitempty"`
}

// Option настраивает Controller.
type Option func(*Controller)

// WithStepDelay задаёт паузу между запросами. 0 отключает паузу.
func WithStepDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.stepDelay = d
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(l *logger.HTTPLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// Controller владеет состоянием прогона: start, stop, status.
type Controller struct {
	src       Source
	exec      Executor
	stepDelay time.Duration
	log       *logger.HTTPLogger

	mu       sync.Mutex
	state    Status
	target   *Target
	progress *Progress
	last     *Result

	stop atomic.Bool
}

// New создаёт Controller в состоянии idle.
func New(src Source, exec Executor, opts ...Option) *Controller {
	c := &Controller{
		src:       src,
		exec:      exec,
		stepDelay: DefaultStepDelay,
		log:       logger.NewNop(),
		state:     StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start выполняет прогон цели и блокируется до его окончания.
//
// sink может быть nil. Отмена ctx действует как Stop и дополнительно
// передаётся в Executor.
//
// Возвращает:
//   - *Result со статусом completed или stopped.
//
// Ошибки:
//   - ErrAlreadyActive — прогон уже идёт; текущий прогон не затрагивается;
//   - ErrInvalidInput — пустой id или неизвестный тип цели;
//   - ошибка обхода дерева: прогон завершается со статусом error,
//     Result с этим статусом доступен через Status().Last.
func (c *Controller) Start(ctx context.Context, target Target, sink Sink) (*Result, error) {
	if err := c.begin(target); err != nil {
		return nil, err
	}
	return c.run(ctx, target, sink)
}

// StartAsync проверяет цель и занимает Controller синхронно, а сам прогон
// выполняет в отдельной горутине. done (если не nil) вызывается по окончании.
//
// Ошибки те же, что у Start до начала прогона: ErrAlreadyActive, ErrInvalidInput.
func (c *Controller) StartAsync(ctx context.Context, target Target, sink Sink, done func(*Result, error)) error {
	if err := c.begin(target); err != nil {
		return err
	}
	go func() {
		res, err := c.run(ctx, target, sink)
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

// begin переводит Controller в running или отказывает.
func (c *Controller) begin(target Target) error {
	if target.ID == "" || (target.Kind != TargetFolder && target.Kind != TargetWorkspace) {
		return fmt.Errorf("run target %q of kind %q: %w", target.ID, target.Kind, serr.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatusRunning {
		return serr.ErrAlreadyActive
	}
	c.state = StatusRunning
	c.target = &target
	c.progress = &Progress{}
	c.stop.Store(false)
	return nil
}

func (c *Controller) run(ctx context.Context, target Target, sink Sink) (*Result, error) {
	res := &Result{Target: target, StartTime: time.Now(), Results: []RequestResult{}}
	log := c.log.With(zap.String("target", target.ID), zap.String("kind", string(target.Kind)))

	requests, err := c.flatten(ctx, target)
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		res.EndTime = time.Now()
		c.finish(res)
		log.Error("collection run failed", zap.Error(err))
		return nil, fmt.Errorf("collect requests: %w", err)
	}

	log.Info("collection run started", zap.Int("requests", len(requests)))
	c.loop(ctx, requests, sink, res)
	res.EndTime = time.Now()
	c.finish(res)

	log.Info("collection run finished",
		zap.String("status", string(res.Status)),
		zap.Int("passed", res.PassedRequests),
		zap.Int("failed", res.FailedRequests),
		zap.Int("executed", len(res.Results)),
	)
	return res, nil
}

func (c *Controller) loop(ctx context.Context, requests []models.Request, sink Sink, res *Result) {
	res.TotalRequests = len(requests)
	res.Status = StatusCompleted

	p := Progress{Total: len(requests)}
	for i, req := range requests {
		if c.stop.Load() || ctx.Err() != nil {
			res.Status = StatusStopped
			break
		}

		p.CurrentRequestName = req.Name
		c.emit(sink, p)

		rr := RequestResult{RequestID: req.ID, RequestName: req.Name}
		out, err := c.exec.Execute(ctx, req)
		switch {
		case err != nil:
			rr.Outcome = OutcomeError
			rr.Error = err.Error()
			res.FailedRequests++
			c.log.Warn("request failed", zap.String("request", req.ID), zap.Error(err))
		case out != nil && out.TestResults != nil && out.TestResults.Failed > 0:
			rr.Outcome = OutcomeFail
			res.FailedRequests++
		default:
			rr.Outcome = OutcomePass
			res.PassedRequests++
		}
		if out != nil && err == nil {
			rr.StatusCode = out.StatusCode
			rr.Duration = out.ElapsedTime
			rr.TestResults = out.TestResults
		}
		res.Results = append(res.Results, rr)

		p.Completed++
		p.Passed, p.Failed = res.PassedRequests, res.FailedRequests
		c.emit(sink, p)

		if i < len(requests)-1 {
			c.pause(ctx)
		}
	}

	// стоп, пришедший во время последнего запроса, тоже делает прогон stopped
	if c.stop.Load() || ctx.Err() != nil {
		res.Status = StatusStopped
	}
}

// emit отдаёт снимок в sink и запоминает его для Status.
// Паника в sink гасится: недоступный наблюдатель не ломает прогон.
func (c *Controller) emit(sink Sink, p Progress) {
	c.mu.Lock()
	snap := p
	c.progress = &snap
	c.mu.Unlock()

	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("progress sink failed", zap.Any("panic", r))
		}
	}()
	sink.Send(p)
}

func (c *Controller) pause(ctx context.Context) {
	if c.stepDelay <= 0 {
		return
	}
	t := time.NewTimer(c.stepDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (c *Controller) finish(res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = res
	c.state = StatusIdle
	c.target = nil
	c.progress = nil
}

// Stop просит текущий прогон остановиться перед следующим запросом.
// Если прогона нет, ничего не делает.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatusRunning {
		c.stop.Store(true)
		c.log.Info("collection run stop requested")
	}
}

// Status возвращает копию текущего состояния.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{State: c.state}
	if c.target != nil {
		t := *c.target
		s.Target = &t
	}
	if c.progress != nil {
		p := *c.progress
		s.Progress = &p
	}
	if c.last != nil {
		last := *c.last
		last.Results = append([]RequestResult(nil), c.last.Results...)
		s.Last = &last
	}
	return s
}

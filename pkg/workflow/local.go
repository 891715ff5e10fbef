package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"freightwatch/pkg/logger"
)

const closedHistoryLimit = 20

var _ Client = (*LocalEngine)(nil)

// LocalEngine in-process реализация движка. Один запуск - одна горутина;
// на workflow id допускается не более одного активного запуска.
type LocalEngine struct {
	mu        sync.Mutex
	clock     Clock
	policy    ActivityPolicy
	taskQueue string
	registry  map[string]Func
	active    map[string]*run
	closed    map[string][]*Description

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	shutdown   bool
}

// LocalOption опция конфигурации движка
type LocalOption func(*LocalEngine)

// WithClock подменяет часы движка (для тестов)
func WithClock(c Clock) LocalOption {
	return func(e *LocalEngine) {
		e.clock = c
	}
}

// WithActivityPolicy задаёт политику выполнения activity
func WithActivityPolicy(p ActivityPolicy) LocalOption {
	return func(e *LocalEngine) {
		e.policy = p
	}
}

// NewLocalEngine создаёт движок с указанной очередью задач
func NewLocalEngine(taskQueue string, opts ...LocalOption) *LocalEngine {
	baseCtx, baseCancel := context.WithCancel(context.Background())

	e := &LocalEngine{
		clock:      NewRealClock(),
		policy:     DefaultActivityPolicy(),
		taskQueue:  taskQueue,
		registry:   make(map[string]Func),
		active:     make(map[string]*run),
		closed:     make(map[string][]*Description),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.policy.MaxAttempts <= 0 {
		e.policy.MaxAttempts = 1
	}

	return e
}

// Register регистрирует workflow по имени
func (e *LocalEngine) Register(name string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[name] = fn
}

// Execute запускает workflow. Активный запуск с тем же id возвращается
// как есть; завершённые запуски проверяются политикой переиспользования.
func (e *LocalEngine) Execute(ctx context.Context, opts StartOptions, input any) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return nil, ErrEngineClosed
	}

	fn, ok := e.registry[opts.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, opts.Name)
	}

	if r, ok := e.active[opts.ID]; ok {
		// Идемпотентный старт: возвращаем текущий запуск
		return &runHandle{run: r}, nil
	}

	history := e.closed[opts.ID]
	switch opts.ReusePolicy {
	case ReuseRejectDuplicate:
		if len(history) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWorkflow, opts.ID)
		}
	case ReuseAllowDuplicateFailedOnly:
		if len(history) > 0 && history[len(history)-1].Status == StatusCompleted {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWorkflow, opts.ID)
		}
	}

	taskQueue := opts.TaskQueue
	if taskQueue == "" {
		taskQueue = e.taskQueue
	}

	runCtx, cancelHard := context.WithCancel(e.baseCtx)
	r := &run{
		engine:     e,
		workflowID: opts.ID,
		runID:      uuid.NewString(),
		name:       opts.Name,
		taskQueue:  taskQueue,
		input:      input,
		ctx:        runCtx,
		cancelHard: cancelHard,
		cancelCh:   make(chan struct{}),
		done:       make(chan struct{}),
		status:     StatusRunning,
		start:      e.clock.Now(),
		queries:    make(map[string]QueryFunc),
	}

	e.active[opts.ID] = r
	e.wg.Add(1)
	go e.runWorkflow(r, fn)

	logger.WithWorkflow(r.workflowID, r.runID).Info("Workflow started",
		"name", opts.Name, "task_queue", taskQueue)

	return &runHandle{run: r}, nil
}

// Handle возвращает handle активного или последнего завершённого запуска
func (e *LocalEngine) Handle(ctx context.Context, workflowID string) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.active[workflowID]; ok {
		return &runHandle{run: r}, nil
	}

	if history := e.closed[workflowID]; len(history) > 0 {
		return &closedHandle{desc: history[len(history)-1]}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, workflowID)
}

// Shutdown принудительно останавливает все запуски и ждёт их завершения
func (e *LocalEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil
	}
	e.shutdown = true
	e.mu.Unlock()

	e.baseCancel()

	doneCh := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runWorkflow выполняет тело workflow и фиксирует терминальный статус
func (e *LocalEngine) runWorkflow(r *run, fn Func) {
	defer e.wg.Done()

	err := e.invoke(r, fn)

	status := StatusCompleted
	switch {
	case err == nil:
		status = StatusCompleted
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrTerminated),
		errors.Is(err, context.Canceled):
		status = StatusCancelled
	case errors.Is(err, context.DeadlineExceeded):
		status = StatusTimedOut
	default:
		status = StatusFailed
	}

	r.mu.Lock()
	r.status = status
	r.err = err
	r.close = e.clock.Now()
	desc := r.describeLocked()
	r.mu.Unlock()
	close(r.done)

	e.mu.Lock()
	delete(e.active, r.workflowID)
	history := append(e.closed[r.workflowID], desc)
	if len(history) > closedHistoryLimit {
		history = history[len(history)-closedHistoryLimit:]
	}
	e.closed[r.workflowID] = history
	e.mu.Unlock()

	log := logger.WithWorkflow(r.workflowID, r.runID)
	if err != nil && status == StatusFailed {
		log.Error("Workflow failed", "error", err)
	} else {
		log.Info("Workflow closed", "status", string(status))
	}
}

// invoke вызывает тело workflow с защитой от паники
func (e *LocalEngine) invoke(r *run, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("workflow panic: %v", p)
		}
	}()

	wctx := &wfContext{run: r}
	return fn(wctx, r.input)
}

// ==================== run ====================

type run struct {
	engine     *LocalEngine
	workflowID string
	runID      string
	name       string
	taskQueue  string
	input      any

	ctx        context.Context
	cancelHard context.CancelFunc
	cancelCh   chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	mu          sync.Mutex
	status      Status
	start       time.Time
	close       time.Time
	err         error
	forced      bool
	forceReason string
	queries     map[string]QueryFunc
}

func (r *run) cancelRequested() bool {
	select {
	case <-r.cancelCh:
		return true
	default:
		return false
	}
}

func (r *run) describeLocked() *Description {
	d := &Description{
		WorkflowID:     r.workflowID,
		RunID:          r.runID,
		Name:           r.name,
		TaskQueue:      r.taskQueue,
		Status:         r.status,
		StartTime:      r.start,
		CloseTime:      r.close,
		ForceCancelled: r.forced,
	}
	if r.err != nil {
		d.Error = r.err.Error()
	}
	if r.forced && r.forceReason != "" {
		d.Error = "terminated: " + r.forceReason
	}
	return d
}

// ==================== handles ====================

type runHandle struct {
	run *run
}

func (h *runHandle) ID() string    { return h.run.workflowID }
func (h *runHandle) RunID() string { return h.run.runID }

func (h *runHandle) Describe(ctx context.Context) (*Description, error) {
	h.run.mu.Lock()
	defer h.run.mu.Unlock()
	return h.run.describeLocked(), nil
}

func (h *runHandle) Query(ctx context.Context, name string) (any, error) {
	h.run.mu.Lock()
	fn, ok := h.run.queries[name]
	h.run.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	return fn(), nil
}

func (h *runHandle) Cancel(ctx context.Context) error {
	h.run.mu.Lock()
	terminal := h.run.status.Terminal()
	h.run.mu.Unlock()

	if terminal {
		return ErrNotRunning
	}

	h.run.cancelOnce.Do(func() {
		close(h.run.cancelCh)
	})
	return nil
}

func (h *runHandle) Terminate(ctx context.Context, reason string) error {
	h.run.mu.Lock()
	if h.run.status.Terminal() {
		h.run.mu.Unlock()
		return ErrNotRunning
	}
	h.run.forced = true
	h.run.forceReason = reason
	h.run.mu.Unlock()

	h.run.cancelOnce.Do(func() {
		close(h.run.cancelCh)
	})
	h.run.cancelHard()
	return nil
}

func (h *runHandle) Await(ctx context.Context) error {
	select {
	case <-h.run.done:
		h.run.mu.Lock()
		defer h.run.mu.Unlock()
		return h.run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closedHandle handle завершённого запуска, восстановленный из истории
type closedHandle struct {
	desc *Description
}

func (h *closedHandle) ID() string    { return h.desc.WorkflowID }
func (h *closedHandle) RunID() string { return h.desc.RunID }

func (h *closedHandle) Describe(ctx context.Context) (*Description, error) {
	d := *h.desc
	return &d, nil
}

func (h *closedHandle) Query(ctx context.Context, name string) (any, error) {
	return nil, ErrNotRunning
}

func (h *closedHandle) Cancel(ctx context.Context) error {
	return ErrNotRunning
}

func (h *closedHandle) Terminate(ctx context.Context, reason string) error {
	return ErrNotRunning
}

func (h *closedHandle) Await(ctx context.Context) error {
	if h.desc.Error != "" {
		return errors.New(h.desc.Error)
	}
	return nil
}

// ==================== workflow context ====================

type wfContext struct {
	run *run
}

// context.Context делегируется жёсткому контексту запуска

func (c *wfContext) Deadline() (time.Time, bool) { return c.run.ctx.Deadline() }
func (c *wfContext) Done() <-chan struct{}       { return c.run.ctx.Done() }
func (c *wfContext) Err() error                  { return c.run.ctx.Err() }
func (c *wfContext) Value(key any) any           { return c.run.ctx.Value(key) }

func (c *wfContext) WorkflowID() string { return c.run.workflowID }
func (c *wfContext) RunID() string      { return c.run.runID }
func (c *wfContext) Input() any         { return c.run.input }

func (c *wfContext) Now() time.Time {
	return c.run.engine.clock.Now()
}

func (c *wfContext) Cancelled() bool {
	return c.run.cancelRequested()
}

func (c *wfContext) SetQueryHandler(name string, fn QueryFunc) {
	c.run.mu.Lock()
	c.run.queries[name] = fn
	c.run.mu.Unlock()
}

func (c *wfContext) Sleep(d time.Duration) error {
	if c.run.cancelRequested() {
		return ErrCancelled
	}

	select {
	case <-c.run.engine.clock.After(d):
		return nil
	case <-c.run.cancelCh:
		if c.run.isForced() {
			return ErrTerminated
		}
		return ErrCancelled
	case <-c.run.ctx.Done():
		return ErrTerminated
	}
}

func (r *run) isForced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forced
}

func (c *wfContext) Execute(name string, fn ActivityFunc) error {
	// Точка приостановки: проверяем сигналы перед запуском activity
	if c.run.ctx.Err() != nil {
		return ErrTerminated
	}
	if c.run.cancelRequested() {
		return ErrCancelled
	}

	policy := c.run.engine.policy

	backoff := retry.NewExponential(policy.RetryBase)
	backoff = retry.WithCappedDuration(policy.RetryCap, backoff)
	backoff = retry.WithMaxRetries(uint64(policy.MaxAttempts-1), backoff)

	attempt := 0
	err := retry.Do(c.run.ctx, backoff, func(ctx context.Context) error {
		attempt++

		actCtx := ctx
		if policy.Timeout > 0 {
			var cancel context.CancelFunc
			actCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
			defer cancel()
		}

		if actErr := fn(actCtx); actErr != nil {
			if ctx.Err() != nil {
				// Запуск остановлен - не ретраим
				return actErr
			}
			logger.WithWorkflow(c.run.workflowID, c.run.runID).Warn("Activity attempt failed",
				"activity", name, "attempt", attempt, "error", actErr)
			return retry.RetryableError(actErr)
		}
		return nil
	})

	if err != nil && c.run.ctx.Err() != nil {
		return ErrTerminated
	}
	return err
}

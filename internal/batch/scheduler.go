package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"transmute/internal/converter"
	"transmute/internal/logging"
	"transmute/internal/metrics"
	"transmute/internal/services"
)

const (
	defaultWorkers      = 4
	defaultPollInterval = 100 * time.Millisecond
	defaultStopTimeout  = 5 * time.Second
)

// Runner performs the conversion described by a task.
type Runner interface {
	Run(ctx context.Context, task Task) converter.Result
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, task Task) converter.Result

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, task Task) converter.Result { return f(ctx, task) }

// ProgressFunc is called after each task reaches a terminal state.
type ProgressFunc func(taskID string, completed, total int)

// CompleteFunc is called with the outcome of each task.
type CompleteFunc func(taskID string, success bool)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers bounds concurrent conversions. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPollInterval bounds how long the coordinator waits for a completion
// before re-checking for new work and stop requests.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for in-flight tasks.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.stopTimeout = d
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) { s.onProgress = fn }
}

// WithTaskComplete registers a per-task completion callback.
func WithTaskComplete(fn CompleteFunc) Option {
	return func(s *Scheduler) { s.onComplete = fn }
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithOptimize toggles pair interleaving of the dispatch order.
func WithOptimize(enabled bool) Option {
	return func(s *Scheduler) { s.optimize = enabled }
}

// WithMetrics reports task lifecycle to rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = rec }
}

// WithBatchID tags log records and task contexts with id.
func WithBatchID(id string) Option {
	return func(s *Scheduler) { s.batchID = id }
}

// Stats counts tasks by status.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

type taskResult struct {
	id       string
	result   converter.Result
	finished time.Time
}

// Scheduler runs tasks through a Runner with bounded concurrency.
type Scheduler struct {
	runner      Runner
	workers     int
	poll        time.Duration
	stopTimeout time.Duration
	optimize    bool
	onProgress  ProgressFunc
	onComplete  CompleteFunc
	logger      *slog.Logger
	metrics     *metrics.Recorder
	batchID     string

	mu         sync.RWMutex
	tasks      map[string]*Task
	order      []string
	incoming   []string
	dispatched []string
	running    bool
	done       chan struct{}
	runTotal   int
	runDone    int

	stopRequested atomic.Bool
}

// NewScheduler constructs an idle scheduler.
func NewScheduler(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:      runner,
		workers:     defaultWorkers,
		poll:        defaultPollInterval,
		stopTimeout: defaultStopTimeout,
		optimize:    true,
		tasks:       make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchID == "" {
		s.batchID = uuid.NewString()
	}
	s.logger = logging.NewComponentLogger(s.logger, "batch").With(logging.String(logging.FieldBatchID, s.batchID))
	return s
}

// BatchID returns the identifier attached to this scheduler's logs.
func (s *Scheduler) BatchID() string { return s.batchID }

// Workers returns the worker pool size.
func (s *Scheduler) Workers() int { return s.workers }

// Add validates task and stores it as pending. An empty ID is replaced with a
// generated one, which is returned.
func (s *Scheduler) Add(task Task) (string, error) {
	ids, err := s.AddAll([]Task{task})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddAll validates every task before storing any of them.
func (s *Scheduler) AddAll(tasks []Task) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepared := make([]*Task, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		if _, dup := s.tasks[task.ID]; dup {
			return nil, services.Wrap(services.ErrValidation, "batch", "add task", fmt.Sprintf("duplicate task id %q", task.ID), nil)
		}
		if _, dup := seen[task.ID]; dup {
			return nil, services.Wrap(services.ErrValidation, "batch", "add task", fmt.Sprintf("duplicate task id %q", task.ID), nil)
		}
		seen[task.ID] = struct{}{}
		task.Status = StatusPending
		task.StartedAt = time.Time{}
		task.FinishedAt = time.Time{}
		task.Error = ""
		prepared = append(prepared, &task)
	}

	ids := make([]string, 0, len(prepared))
	for _, task := range prepared {
		s.tasks[task.ID] = task
		s.order = append(s.order, task.ID)
		if s.running {
			s.incoming = append(s.incoming, task.ID)
		}
		ids = append(ids, task.ID)
	}
	return ids, nil
}

// Start launches the coordinator. Calling Start on a running scheduler logs a
// warning and does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("batch scheduler already running")
		return
	}
	if s.runner == nil {
		s.mu.Unlock()
		s.logger.Error("batch scheduler has no runner")
		return
	}

	var pending []Task
	for _, id := range s.order {
		if task := s.tasks[id]; task.Status == StatusPending {
			pending = append(pending, *task)
		}
	}
	queue := s.dispatchOrder(pending)

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.done = make(chan struct{})
	s.incoming = nil
	s.runTotal = len(queue)
	s.runDone = 0
	s.stopRequested.Store(false)
	done := s.done
	s.mu.Unlock()

	s.logger.Info("batch started",
		logging.Int("tasks", len(queue)),
		logging.Int("workers", s.workers),
		logging.Bool("optimized", s.optimize),
	)
	go s.coordinate(runCtx, cancel, queue, done)
}

func (s *Scheduler) dispatchOrder(tasks []Task) []string {
	if s.optimize {
		tasks = Optimize(tasks)
	}
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}

// coordinate owns the run. cancel releases this run's context only, so a
// later Start is never affected by an earlier coordinator exiting.
func (s *Scheduler) coordinate(ctx context.Context, cancel context.CancelFunc, queue []string, done chan struct{}) {
	defer close(done)
	defer cancel()

	results := make(chan taskResult, s.workers)
	inFlight := 0
	started := time.Now()

	for {
		queue = append(queue, s.takeIncoming()...)

		if !s.stopRequested.Load() {
			for inFlight < s.workers && len(queue) > 0 {
				id := queue[0]
				queue = queue[1:]
				task, ok := s.markProcessing(id)
				if !ok {
					continue
				}
				inFlight++
				go s.work(ctx, task, results)
			}
		}

		if inFlight == 0 && (len(queue) == 0 || s.stopRequested.Load()) {
			if s.finishRun() {
				stats := s.Stats()
				s.logger.Info("batch finished",
					logging.Int("completed", stats.Completed),
					logging.Int("failed", stats.Failed),
					logging.Int("pending", stats.Pending),
					logging.Bool("stopped", s.stopRequested.Load()),
					logging.Duration("elapsed", time.Since(started)),
				)
				return
			}
			continue
		}

		select {
		case res := <-results:
			inFlight--
			s.complete(res)
		case <-time.After(s.poll):
		}
	}
}

func (s *Scheduler) takeIncoming() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.incoming) == 0 {
		return nil
	}
	var tasks []Task
	for _, id := range s.incoming {
		tasks = append(tasks, *s.tasks[id])
	}
	s.incoming = nil
	s.runTotal += len(tasks)
	return s.dispatchOrder(tasks)
}

// finishRun marks the scheduler idle unless tasks arrived since the last check.
func (s *Scheduler) finishRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.incoming) > 0 && !s.stopRequested.Load() {
		return false
	}
	s.running = false
	return true
}

func (s *Scheduler) markProcessing(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != StatusPending {
		return Task{}, false
	}
	task.Status = StatusProcessing
	task.StartedAt = time.Now()
	s.dispatched = append(s.dispatched, id)
	s.metrics.TaskStarted()
	return *task, true
}

func (s *Scheduler) work(ctx context.Context, task Task, results chan<- taskResult) {
	res := taskResult{id: task.ID}
	defer func() {
		if r := recover(); r != nil {
			res.result = converter.Failed("panic: %v", r)
			s.logger.Error("batch worker panicked",
				logging.String(logging.FieldTaskID, task.ID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
		res.finished = time.Now()
		results <- res
	}()
	taskCtx := services.WithTaskID(services.WithBatchID(ctx, s.batchID), task.ID)
	res.result = s.runner.Run(taskCtx, task)
}

func (s *Scheduler) complete(res taskResult) {
	s.mu.Lock()
	task, ok := s.tasks[res.id]
	if !ok {
		s.mu.Unlock()
		return
	}
	task.FinishedAt = res.finished
	if res.result.OK {
		task.Status = StatusCompleted
		task.Error = ""
	} else {
		task.Status = StatusFailed
		task.Error = res.result.Message()
	}
	s.runDone++
	snapshot := *task
	completed, total := s.runDone, s.runTotal
	s.mu.Unlock()

	s.metrics.TaskFinished(string(snapshot.Status))

	logger := s.logger.With(
		logging.String(logging.FieldTaskID, snapshot.ID),
		logging.String(logging.FieldPair, snapshot.Pair().String()),
	)
	if snapshot.Status == StatusCompleted {
		logger.Debug("task completed",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.Duration("duration", snapshot.Duration()),
		)
	} else {
		taskErr := services.Wrap(services.ErrTaskFailure, "batch", "run task", snapshot.SourcePath, errors.New(snapshot.Error))
		logging.WarnWithContext(logger, "task failed", "task_failed",
			logging.Error(taskErr),
			logging.String(logging.FieldErrorKind, services.Kind(taskErr)),
			logging.String(logging.FieldErrorHint, "inspect the source file or run transmute path to check the route"),
		)
	}

	s.invokeCallback("task_complete", func() {
		if s.onComplete != nil {
			s.onComplete(snapshot.ID, snapshot.Status == StatusCompleted)
		}
	})
	s.invokeCallback("progress", func() {
		if s.onProgress != nil {
			s.onProgress(snapshot.ID, completed, total)
		}
	})
}

func (s *Scheduler) invokeCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("batch callback panicked",
				logging.String("callback", name),
				logging.Any("panic", r),
			)
		}
	}()
	fn()
}

// Stop requests a cooperative shutdown: nothing new is dispatched, and tasks
// already handed to workers run to completion with their results recorded.
// Stop waits up to the stop timeout for the coordinator to exit and reports
// whether it did. In-flight work is only cancelled through the context given
// to Start.
func (s *Scheduler) Stop() bool {
	s.mu.RLock()
	running, done := s.running, s.done
	s.mu.RUnlock()
	if !running || done == nil {
		return true
	}

	s.stopRequested.Store(true)

	select {
	case <-done:
		return true
	case <-time.After(s.stopTimeout):
		s.logger.Warn("batch stop timed out waiting for in-flight tasks",
			logging.Duration("timeout", s.stopTimeout),
		)
		return false
	}
}

// Wait blocks until the current run finishes or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a coordinator is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Task returns a copy of the task with id.
func (s *Scheduler) Task(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Tasks returns copies of every task in submission order.
func (s *Scheduler) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tasks[id])
	}
	return out
}

// DispatchOrder returns task ids in the order they were handed to workers.
func (s *Scheduler) DispatchOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.dispatched...)
}

// ClearCompleted drops terminal tasks and returns how many were removed.
func (s *Scheduler) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		if s.tasks[id].Status.IsTerminal() {
			delete(s.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

// Stats counts tasks by status.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats Stats
	for _, task := range s.tasks {
		switch task.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	stats.Total = len(s.tasks)
	return stats
}

// SubmitBatch runs tasks to completion on a fresh scheduler and returns them
// in submission order. When ctx ends first the scheduler is stopped and the
// partially processed tasks are returned with ctx's error.
func SubmitBatch(ctx context.Context, runner Runner, tasks []Task, poolSize int, onProgress ProgressFunc, onTaskComplete CompleteFunc, opts ...Option) ([]Task, error) {
	opts = append([]Option{
		WithWorkers(poolSize),
		WithProgress(onProgress),
		WithTaskComplete(onTaskComplete),
	}, opts...)
	s := NewScheduler(runner, opts...)
	if _, err := s.AddAll(tasks); err != nil {
		return nil, err
	}
	s.Start(ctx)
	if err := s.Wait(ctx); err != nil {
		s.Stop()
		return s.Tasks(), err
	}
	return s.Tasks(), nil
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Adda-Baaj/khobor-digest/internal/logger"
	"github.com/Adda-Baaj/khobor-digest/pkg/summarizer"
)

const (
	defaultMaxConcurrentTasks = 4
	defaultRetainedTasks      = 256
)

// ErrSchedulerClosed is reported by tasks submitted after Shutdown.
var ErrSchedulerClosed = errors.New("scheduler is shut down")

// TaskKind names the work a task performs.
type TaskKind string

const (
	TaskIngest    TaskKind = "ingest"
	TaskSummarize TaskKind = "summarize"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Ingest(ctx context.Context, category, topic string, count int) (Report, error)
}

// Retrieval summarizes stored articles for a query.
type Retrieval interface {
	SummarizeStored(ctx context.Context, category, query string) (summarizer.Result, error)
}

// SchedulerConfig bounds background work.
type SchedulerConfig struct {
	MaxConcurrent int
	Retain        int
}

// Scheduler runs ingestion and summarization jobs in the background and
// keeps their outcome for lookup by id.
type Scheduler struct {
	ctx       context.Context
	cancel    context.CancelFunc
	ingester  Ingester
	retrieval Retrieval
	sem       *semaphore.Weighted
	retain    int
	now       func() time.Time
	log       logger.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	tasks  map[string]*Task
	order  []string
}

// NewScheduler creates a Scheduler. retrieval may be nil when on-demand
// summarization is not offered.
func NewScheduler(ingester Ingester, retrieval Retrieval, cfg SchedulerConfig, log logger.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrentTasks
	}
	if cfg.Retain <= 0 {
		cfg.Retain = defaultRetainedTasks
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		ingester:  ingester,
		retrieval: retrieval,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		retain:    cfg.Retain,
		now:       time.Now,
		log:       logger.Ensure(log),
		tasks:     make(map[string]*Task),
	}
}

// Submit queues an ingestion of category and returns immediately.
func (s *Scheduler) Submit(category, topic string, count int) *Task {
	return s.submit(TaskIngest, category, topic, func(ctx context.Context) (Report, error) {
		return s.ingester.Ingest(ctx, category, topic, count)
	})
}

// SubmitSummarize queues an on-demand summary of the stored articles of category.
func (s *Scheduler) SubmitSummarize(category, query string) *Task {
	return s.submit(TaskSummarize, category, query, func(ctx context.Context) (Report, error) {
		report := Report{Category: category, Topic: query, StartedAt: s.now()}
		if s.retrieval == nil {
			return report, errors.New("on-demand summarization is not configured")
		}
		res, err := s.retrieval.SummarizeStored(ctx, category, query)
		report.FinishedAt = s.now()
		if err != nil {
			report.Err = err.Error()
			return report, err
		}
		report.Summary = &res
		return report, nil
	})
}

func (s *Scheduler) submit(kind TaskKind, category, topic string, run func(context.Context) (Report, error)) *Task {
	t := &Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		Category:    category,
		Topic:       topic,
		SubmittedAt: s.now(),
		status:      TaskPending,
		done:        make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.finish(Report{Category: category, Topic: topic}, ErrSchedulerClosed)
		return t
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	s.pruneLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(t, run)
	return t
}

func (s *Scheduler) run(t *Task, fn func(context.Context) (Report, error)) {
	defer s.wg.Done()

	var (
		report Report
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			s.log.ErrorObj("task panicked", "task_panic", map[string]any{
				"task_id": t.ID,
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			})
		}
		report.TaskID = t.ID
		t.finish(report, err)
		s.logFinished(t)
	}()

	if err = s.sem.Acquire(s.ctx, 1); err != nil {
		report = Report{Category: t.Category, Topic: t.Topic, Err: err.Error()}
		return
	}
	defer s.sem.Release(1)

	t.setStatus(TaskRunning)
	s.log.InfoObj("task started", "task_start", map[string]any{
		"task_id":  t.ID,
		"kind":     string(t.Kind),
		"category": t.Category,
	})
	report, err = fn(WithTaskID(s.ctx, t.ID))
}

func (s *Scheduler) logFinished(t *Task) {
	snap := t.Snapshot()
	fields := map[string]any{
		"task_id":  t.ID,
		"kind":     string(t.Kind),
		"category": t.Category,
		"status":   string(snap.Status),
	}
	if snap.Error != "" {
		fields["error"] = snap.Error
		s.log.WarnObj("task failed", "task_done", fields)
		return
	}
	s.log.InfoObj("task finished", "task_done", fields)
}

// pruneLocked drops the oldest finished tasks once more than retain are tracked.
func (s *Scheduler) pruneLocked() {
	if len(s.order) <= s.retain {
		return
	}
	kept := s.order[:0]
	excess := len(s.order) - s.retain
	for _, id := range s.order {
		if excess > 0 && s.tasks[id].finished() {
			delete(s.tasks, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Task looks up a submitted task by id.
func (s *Scheduler) Task(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Shutdown stops accepting tasks, cancels running ones and waits for them
// to return or for ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running tasks: %w", ctx.Err())
	}
}

// Task is a unit of background work with a completion channel.
type Task struct {
	ID          string
	Kind        TaskKind
	Category    string
	Topic       string
	SubmittedAt time.Time

	done   chan struct{}
	mu     sync.Mutex
	status TaskStatus
	report Report
	err    error
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Report, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.report, t.err
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// TaskSnapshot is a point-in-time JSON view of a task.
type TaskSnapshot struct {
	ID          string     `json:"id"`
	Kind        TaskKind   `json:"kind"`
	Category    string     `json:"category"`
	Topic       string     `json:"topic"`
	Status      TaskStatus `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Report      *Report    `json:"report,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Snapshot returns the task's current state.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := TaskSnapshot{
		ID:          t.ID,
		Kind:        t.Kind,
		Category:    t.Category,
		Topic:       t.Topic,
		Status:      t.status,
		SubmittedAt: t.SubmittedAt,
	}
	if t.status == TaskSucceeded || t.status == TaskFailed {
		report := t.report
		snap.Report = &report
	}
	if t.err != nil {
		snap.Error = t.err.Error()
	}
	return snap
}

func (t *Task) setStatus(status TaskStatus) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) finish(report Report, err error) {
	t.mu.Lock()
	t.report = report
	t.err = err
	t.status = TaskSucceeded
	if err != nil {
		t.status = TaskFailed
	}
	t.mu.Unlock()
	close(t.done)
}

type taskIDKey struct{}

// WithTaskID returns a context carrying the id of the task doing the work.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskIDFromContext returns the task id stored by WithTaskID, if any.
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

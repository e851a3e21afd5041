// Package taskmanager runs bounded background jobs (outcome scoring) that
// outlive the request which started them.
package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	ErrTooManyTasks = errors.New("too many active tasks")
	ErrTaskNotFound = errors.New("task not found")
	ErrClosed       = errors.New("task manager is shut down")
)

var (
	tasksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iep_tasks_active",
		Help: "Number of background tasks pending or running.",
	})
	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iep_tasks_finished_total",
		Help: "Background tasks by final status.",
	}, []string{"status"})
)

// Notifier receives task status changes for the task's owner.
type Notifier interface {
	NotifyTask(ownerID string, task Snapshot)
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// TaskFunc is the work a task performs. ctx is cancelled by CancelTask,
// CancelOwner, Close or the task timeout.
type TaskFunc func(ctx context.Context) (any, error)

type task struct {
	Snapshot
	cancel context.CancelFunc
}

// Snapshot is a copy of a task's state safe to hand out.
type Snapshot struct {
	ID        uuid.UUID  `json:"taskId"`
	Kind      string     `json:"kind"`
	OwnerID   string     `json:"ownerId"`
	Status    TaskStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
	Result    any        `json:"result,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Config tunes the manager.
type Config struct {
	MaxTasks    int
	TaskTimeout time.Duration // zero means no per-task deadline
}

// TaskManager tracks running tasks and enforces MaxTasks.
type TaskManager struct {
	mu          sync.RWMutex
	tasks       map[uuid.UUID]*task
	maxTasks    int
	taskTimeout time.Duration
	closed      bool
	wg          sync.WaitGroup
	notifier    Notifier
	logger      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *TaskManager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}
	return &TaskManager{
		tasks:       make(map[uuid.UUID]*task),
		maxTasks:    maxTasks,
		taskTimeout: cfg.TaskTimeout,
		logger:      logger.Named("TaskManager"),
	}
}

// SetNotifier sets the status listener. Call before submitting tasks.
func (tm *TaskManager) SetNotifier(n Notifier) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.notifier = n
}

// Submit starts fn in its own goroutine. The task context is detached from
// ctx: it survives the request that submitted it.
func (tm *TaskManager) Submit(ctx context.Context, kind, ownerID string, fn TaskFunc) (uuid.UUID, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.closed {
		return uuid.Nil, ErrClosed
	}
	if tm.activeLocked() >= tm.maxTasks {
		return uuid.Nil, fmt.Errorf("%w (max %d)", ErrTooManyTasks, tm.maxTasks)
	}

	base := context.WithoutCancel(ctx)
	var taskCtx context.Context
	var cancel context.CancelFunc
	if tm.taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(base, tm.taskTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(base)
	}

	now := time.Now()
	t := &task{
		Snapshot: Snapshot{
			ID:        uuid.New(),
			Kind:      kind,
			OwnerID:   ownerID,
			Status:    TaskStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}
	tm.tasks[t.ID] = t
	tasksActive.Inc()

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		defer cancel()
		tm.runTask(taskCtx, t, fn)
	}()

	return t.ID, nil
}

func (tm *TaskManager) runTask(ctx context.Context, t *task, fn TaskFunc) {
	log := tm.logger.With(zap.String("taskID", t.ID.String()), zap.String("kind", t.Kind), zap.String("ownerID", t.OwnerID))
	tm.updateTaskStatus(t, TaskStatusRunning, "", nil)

	result, err := fn(ctx)

	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		log.Info("Task cancelled")
		tm.updateTaskStatus(t, TaskStatusCancelled, "cancelled", nil)
	case ctx.Err() != nil:
		log.Warn("Task deadline exceeded", zap.Error(ctx.Err()))
		tm.updateTaskStatus(t, TaskStatusFailed, ctx.Err().Error(), nil)
	case err != nil:
		log.Warn("Task failed", zap.Error(err))
		tm.updateTaskStatus(t, TaskStatusFailed, err.Error(), nil)
	default:
		log.Debug("Task completed")
		tm.updateTaskStatus(t, TaskStatusCompleted, "", result)
	}
}

func (tm *TaskManager) updateTaskStatus(t *task, status TaskStatus, message string, result any) {
	tm.mu.Lock()
	if t.Status.terminal() {
		// CancelTask already finalized it.
		tm.mu.Unlock()
		return
	}
	t.Status = status
	t.Message = message
	t.Result = result
	t.UpdatedAt = time.Now()
	snap := t.Snapshot
	notifier := tm.notifier
	if status.terminal() {
		tasksActive.Dec()
		tasksFinished.WithLabelValues(string(status)).Inc()
	}
	tm.mu.Unlock()

	if notifier != nil && snap.OwnerID != "" {
		notifier.NotifyTask(snap.OwnerID, snap)
	}
}

func (tm *TaskManager) activeLocked() int {
	n := 0
	for _, t := range tm.tasks {
		if !t.Status.terminal() {
			n++
		}
	}
	return n
}

// GetTask returns a snapshot of the task.
func (tm *TaskManager) GetTask(id uuid.UUID) (Snapshot, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, ok := tm.tasks[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Snapshot, nil
}

// CancelTask cancels a pending or running task.
func (tm *TaskManager) CancelTask(id uuid.UUID) error {
	tm.mu.RLock()
	t, ok := tm.tasks[id]
	tm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t.cancel()
	return nil
}

// CancelOwner cancels every unfinished task of ownerID and returns how many
// were signalled.
func (tm *TaskManager) CancelOwner(ownerID string) int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	n := 0
	for _, t := range tm.tasks {
		if t.OwnerID == ownerID && !t.Status.terminal() {
			t.cancel()
			n++
		}
	}
	return n
}

// Active returns the number of unfinished tasks.
func (tm *TaskManager) Active() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.activeLocked()
}

// CleanupTasks forgets finished tasks older than age.
func (tm *TaskManager) CleanupTasks(age time.Duration) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, t := range tm.tasks {
		if t.Status.terminal() && now.Sub(t.UpdatedAt) > age {
			delete(tm.tasks, id)
			removed++
		}
	}
	return removed
}

// Shutdown stops accepting tasks and waits for running ones until ctx ends,
// then cancels whatever is left.
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.mu.Lock()
	tm.closed = true
	tm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		tm.cancelAll()
		<-done
		return fmt.Errorf("timed out waiting for tasks: %w", ctx.Err())
	}
}

// Close cancels every task and waits for the goroutines to exit.
func (tm *TaskManager) Close() {
	tm.mu.Lock()
	tm.closed = true
	tm.mu.Unlock()
	tm.cancelAll()
	tm.wg.Wait()
}

func (tm *TaskManager) cancelAll() {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	for _, t := range tm.tasks {
		if !t.Status.terminal() {
			t.cancel()
		}
	}
}

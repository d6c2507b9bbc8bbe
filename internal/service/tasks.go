package service

import (
	"context"
	"sync"

	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
)

// Task is a detached background job. Its outcome is observable but nobody is
// required to wait for it.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's error. Only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends. A nil task is already done.
func (t *Task) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TaskTracker runs detached tasks and lets shutdown wait for the ones in flight.
type TaskTracker struct {
	log *logger.Logger
	wg  sync.WaitGroup
}

// NewTaskTracker creates a tracker.
func NewTaskTracker(log *logger.Logger) *TaskTracker {
	return &TaskTracker{log: log}
}

// Go runs fn on its own goroutine.
func (tr *TaskTracker) Go(name string, fn func() error) *Task {
	t := &Task{name: name, done: make(chan struct{})}
	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				tr.log.Error("background task panicked", "task", name, "panic", r)
			}
		}()
		t.err = fn()
	}()
	return t
}

// Wait blocks until every tracked task has finished or ctx ends.
func (tr *TaskTracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		tr.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sidefx runs best-effort work (category stamping, thread
// propagation, locating sent mail) on a single background worker. Failures
// go to the queue's own error channel and are logged; they never reach the
// caller of the primary action.
package sidefx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultSize is the task buffer used when New is given a non-positive size.
const DefaultSize = 64

// Task is one unit of best-effort work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Failure is a task error delivered on the error channel.
type Failure struct {
	Task string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Task, f.Err)
}

// Queue executes tasks one at a time in submission order.
type Queue struct {
	tasks chan Task
	errs  chan Failure

	// OnFailure observes every failure after it is logged. Optional.
	OnFailure func(Failure)

	pending sync.WaitGroup
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New creates a queue buffering up to size tasks.
func New(size int) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	return &Queue{
		tasks: make(chan Task, size),
		errs:  make(chan Failure, size),
	}
}

// Start launches the worker and the error logger.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(2)
	go q.work(ctx)
	go q.logFailures()

	slog.Debug("side-effect queue started", "capacity", cap(q.tasks))
}

// Enqueue submits fn without blocking. It returns false when the queue is
// full or stopped, in which case the work is dropped.
func (q *Queue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		slog.Warn("side-effect queue stopped, dropping task", "task", name)
		return false
	}

	q.pending.Add(1)
	select {
	case q.tasks <- Task{Name: name, Run: fn}:
		return true
	default:
		q.pending.Done()
		slog.Warn("side-effect queue full, dropping task", "task", name)
		return false
	}
}

// Flush blocks until every task submitted so far has run.
func (q *Queue) Flush() {
	q.pending.Wait()
}

// Stop runs the remaining tasks, then shuts the worker down.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
	slog.Debug("side-effect queue stopped")
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	defer close(q.errs)

	for task := range q.tasks {
		q.run(ctx, task)
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	defer q.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			q.errs <- Failure{Task: task.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := task.Run(ctx); err != nil {
		q.errs <- Failure{Task: task.Name, Err: err}
	}
}

func (q *Queue) logFailures() {
	defer q.wg.Done()

	for f := range q.errs {
		slog.Warn("best-effort task failed", "task", f.Task, "error", f.Err)
		if q.OnFailure != nil {
			q.OnFailure(f)
		}
	}
}

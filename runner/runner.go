package runner

import (
	"context"
	"fmt"
	"sync"
)

// Pool bounds how many tasks run at once. A Pool may be shared by several
// RunParallel calls; the bound then applies across all of them.
type Pool struct {
	maxConcurrency int
	semaphore      chan struct{}
}

// New creates a pool. A non-positive value falls back to 10.
func New(maxConcurrency int) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Pool{
		maxConcurrency: maxConcurrency,
		semaphore:      make(chan struct{}, maxConcurrency),
	}
}

// MaxConcurrency reports the pool bound.
func (p *Pool) MaxConcurrency() int {
	return p.maxConcurrency
}

// Task is a unit of work producing a T.
type Task[T any] struct {
	ID  string
	Run func(ctx context.Context) (T, error)
}

// Result represents the result of a task execution
type Result[T any] struct {
	TaskID string
	Output T
	Error  error
}

// RunParallel executes tasks concurrently within the pool bound and returns
// one result per task, in task order. A panicking task yields an error result
// and does not affect its siblings. Tasks still waiting for a slot when ctx
// is done report ctx.Err() without running.
func RunParallel[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Result[T] {
	if p == nil {
		p = New(len(tasks))
	}
	results := make([]Result[T], len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(index int, t Task[T]) {
			defer wg.Done()
			results[index].TaskID = t.ID

			select {
			case p.semaphore <- struct{}{}:
				defer func() { <-p.semaphore }()
			case <-ctx.Done():
				results[index].Error = ctx.Err()
				return
			}

			defer func() {
				if r := recover(); r != nil {
					var zero T
					results[index].Output = zero
					results[index].Error = fmt.Errorf("panic in task %s: %v", t.ID, r)
				}
			}()

			if t.Run == nil {
				results[index].Error = fmt.Errorf("task %s has no function", t.ID)
				return
			}
			output, err := t.Run(ctx)
			results[index].Output = output
			results[index].Error = err
		}(i, task)
	}

	wg.Wait()
	return results
}

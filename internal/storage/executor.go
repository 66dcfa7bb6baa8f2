package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

const DefaultMaxInFlight = 8

// Executor runs transactions against a Database off the caller's goroutine,
// with a bound on how many run at once.
type Executor struct {
	db  Database
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	maxInFlight int64
}

type ExecutorOpt func(*Executor)

func WithMaxInFlight(n int64) ExecutorOpt {
	return func(e *Executor) {
		e.maxInFlight = n
	}
}

func NewExecutor(db Database, opts ...ExecutorOpt) *Executor {
	e := &Executor{
		db:          db,
		maxInFlight: DefaultMaxInFlight,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxInFlight < 1 {
		e.maxInFlight = 1
	}
	e.sem = semaphore.NewWeighted(e.maxInFlight)
	return e
}

// Database returns the store transactions are executed against.
func (e *Executor) Database() Database {
	return e.db
}

// Schedule executes tx asynchronously. The returned channel receives the
// result once and is then closed. Cancelling ctx after Schedule returns does
// not abort the write.
func (e *Executor) Schedule(ctx context.Context, tx Transaction) <-chan error {
	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)

		if err := e.sem.Acquire(ctx, 1); err != nil {
			done <- fmt.Errorf("waiting to execute %s: %w", tx.Name(), err)
			return
		}
		defer e.sem.Release(1)

		if err := e.db.Execute(ctx, tx); err != nil {
			done <- fmt.Errorf("executing %s: %w", tx.Name(), err)
			return
		}
		done <- nil
	}()

	return done
}

// Wait blocks until every scheduled transaction has completed.
func (e *Executor) Wait() {
	e.wg.Wait()
}

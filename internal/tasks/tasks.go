// Package tasks runs fire-and-forget work whose failures are logged at the
// task boundary instead of being lost.
package tasks

import (
	"context"
	"log"
	"sync"
)

type Runner struct {
	ctx context.Context
	log *log.Logger
	wg  sync.WaitGroup
}

func NewRunner(ctx context.Context, logger *log.Logger) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{ctx: ctx, log: logger}
}

// Go starts fn in the background. A returned error or a panic is logged
// under name.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.log.Printf("%s: panic: %v", name, p)
			}
		}()
		if err := fn(r.ctx); err != nil {
			r.log.Printf("%s: %v", name, err)
		}
	}()
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

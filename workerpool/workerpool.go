/*
Copyright 2025 The goARRG Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package workerpool provides a bounded background-compilation pool
// implementing pipeline.WorkerPool: the "background worker thread(s)" that
// Section 4.7's getHandle enqueues asynchronous compile(state) calls onto.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"goarrg.com/debug"
	"golang.org/x/sync/semaphore"
)

// Pool runs submitted jobs on a bounded number of goroutines, backed by a
// weighted semaphore rather than a fixed-size worker-goroutine ring: idle
// capacity costs nothing, and Submit never blocks the caller.
type Pool struct {
	logger *debug.Logger
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// New creates a Pool that runs at most n jobs concurrently. n <= 0 defaults
// to runtime.GOMAXPROCS(0), mirroring the number of hardware threads a
// driver-side shader compiler can realistically keep busy.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		logger: debug.NewLogger("pipeline", "workerpool"),
		sem:    semaphore.NewWeighted(int64(n)),
	}
}

// Submit runs job on the pool asynchronously. It never blocks: if the pool
// is saturated the job is queued behind the semaphore inside its own
// goroutine rather than stalling the caller's getHandle path.
func (p *Pool) Submit(job func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			p.logger.EPrintf("worker pool acquire failed: %v", err)
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				p.logger.EPrintf("panic in background compile job: %v\n%s", r, debug.StackTrace(0))
			}
		}()
		job()
	}()
}

// Wait blocks until every submitted job has returned. Intended for tests
// and for orderly shutdown, not for steady-state use.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel runs independent work items on a fixed set of goroutines.
//
// The simulated device uses it to execute the work groups of one dispatch
// concurrently, and the CPU baselines use it to split reductions and sort
// stages across cores. Work items submitted in one batch must not depend on
// each other: a batch ends only when every item has returned.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a set of worker goroutines with per-worker queues.
//
// Each worker drains its own queue first and steals from the other queues
// when it runs dry, which keeps the batch balanced when items have uneven
// cost (partial tiles, early-out invocations).
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	depth := max(workers*4, 8)
	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case fn := <-own:
			fn()
		default:
			if fn := p.steal(id); fn != nil {
				fn()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case fn := <-own:
				fn()
			}
		}
	}
}

func (p *Pool) drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// Run executes every item and waits for all of them.
// Items that cannot be queued because the pool is closed run on the
// calling goroutine, so Run always completes the batch.
func (p *Pool) Run(work []func()) {
	if len(work) == 0 {
		return
	}
	if !p.running.Load() || len(work) == 1 {
		for _, fn := range work {
			fn()
		}
		return
	}

	var batch sync.WaitGroup
	batch.Add(len(work))
	for i, fn := range work {
		item := func() {
			defer batch.Done()
			fn()
		}
		select {
		case p.queues[i%p.workers] <- item:
		case <-p.done:
			item()
		}
	}
	batch.Wait()
}

// For calls fn(i) for every i in [0, n), splitting the range into
// contiguous chunks, and waits for all calls to return.
func (p *Pool) For(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	chunks := min(n, p.workers*4)
	size := (n + chunks - 1) / chunks

	work := make([]func(), 0, chunks)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		work = append(work, func() {
			for i := lo; i < hi; i++ {
				fn(i)
			}
		})
	}
	p.Run(work)
}

// Close stops the workers after the queued items have run. It must not
// race with Run. Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Running reports whether the pool accepts work.
func (p *Pool) Running() bool {
	return p.running.Load()
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package executor runs tasks on one dedicated goroutine.
//
// GPU contexts belong to the thread that created them, so every call into
// a device is made from the executor's goroutine, which is locked to its OS
// thread. Callers submit a task and receive a Future. A task is never
// interrupted once it starts: a context only prevents a queued task from
// starting and bounds how long a caller waits on the result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = errors.New("executor: closed")

type task func()

// Executor owns a single worker goroutine.
type Executor struct {
	tasks chan task
	quit  chan struct{}
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New starts an executor. init, if not nil, runs first on the worker
// goroutine; a non-nil error stops the executor and is returned.
func New(init func() error) (*Executor, error) {
	e := &Executor{
		tasks: make(chan task, 16),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	ready := make(chan error, 1)
	go e.loop(init, ready)
	if err := <-ready; err != nil {
		<-e.done
		return nil, err
	}
	return e, nil
}

func (e *Executor) loop(init func() error, ready chan<- error) {
	defer close(e.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if init != nil {
		if err := safeCall(init); err != nil {
			ready <- err
			return
		}
	}
	ready <- nil

	for {
		select {
		case t := <-e.tasks:
			t()
		case <-e.quit:
			// Run what was queued before Close.
			for {
				select {
				case t := <-e.tasks:
					t()
				default:
					return
				}
			}
		}
	}
}

// Future is the eventual result of a task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx is done. Returning on
// ctx does not stop the task.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get blocks until the result is available.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

func (f *Future[T]) resolve(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Submit queues fn on e. If ctx is done before fn starts, fn is skipped
// and the future holds ctx.Err(). A panic in fn is returned as an error.
// Submit must not be called from a task running on e.
func Submit[T any](ctx context.Context, e *Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	var zero T

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		f.resolve(zero, ErrClosed)
		return f
	}

	t := task(func() {
		if err := ctx.Err(); err != nil {
			f.resolve(zero, err)
			return
		}
		var v T
		err := safeCall(func() error {
			var err error
			v, err = fn()
			return err
		})
		f.resolve(v, err)
	})

	select {
	case e.tasks <- t:
	case <-ctx.Done():
		f.resolve(zero, ctx.Err())
	}
	return f
}

// Do submits fn and waits for its result.
func Do[T any](ctx context.Context, e *Executor, fn func() (T, error)) (T, error) {
	return Submit(ctx, e, fn).Await(ctx)
}

// Close runs the tasks already queued, stops the worker and waits for it.
// fini, if not nil, runs last on the worker goroutine.
func (e *Executor) Close(fini func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	if fini != nil {
		e.tasks <- task(fini)
	}
	close(e.quit)
	<-e.done
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor: task panicked: %v", r)
		}
	}()
	return fn()
}

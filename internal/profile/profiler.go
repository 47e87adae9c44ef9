// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package profile measures device time around recorded commands.
//
// A Span brackets commands with a pair of timestamp queries. Recording the
// span does not synchronize with the device: Wait flushes, busy-polls the
// end query and resolves both markers, so callers can record every pass of
// a run and wait for all spans once the run's readback is done. Queries are
// recycled through a free list after resolution.
//
// Devices without timestamp queries fall back to host timing: the end of a
// span then waits for the submission to complete, which serializes the
// measured work with the host.
package profile

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/gogpu/computebench/gpucore"
)

// Profiler hands out spans for one device.
//
// Profiler is not safe for concurrent use; it belongs to the goroutine
// that owns the device.
type Profiler struct {
	dev  gpucore.Device
	ts   gpucore.Timestamps
	free []gpucore.QueryID
	live int
}

// New creates a profiler for dev. Device timestamps are used when dev
// implements gpucore.Timestamps and its limits advertise them.
func New(dev gpucore.Device) *Profiler {
	p := &Profiler{dev: dev}
	if ts, ok := dev.(gpucore.Timestamps); ok && dev.Limits().Timestamps {
		p.ts = ts
	}
	return p
}

// DeviceTimed reports whether spans measure device time.
func (p *Profiler) DeviceTimed() bool {
	return p.ts != nil
}

// Outstanding returns the number of queries handed out and not yet
// recycled.
func (p *Profiler) Outstanding() int {
	return p.live
}

func (p *Profiler) query() (gpucore.QueryID, error) {
	if n := len(p.free); n > 0 {
		q := p.free[n-1]
		p.free = p.free[:n-1]
		p.live++
		return q, nil
	}
	q, err := p.ts.CreateQuery()
	if err != nil {
		return gpucore.InvalidID, err
	}
	p.live++
	return q, nil
}

func (p *Profiler) recycle(qs ...gpucore.QueryID) {
	for _, q := range qs {
		if q == gpucore.InvalidID {
			continue
		}
		p.free = append(p.free, q)
		p.live--
	}
}

// Span is one measurement. A span is single-use: Begin, End, Wait.
type Span struct {
	p     *Profiler
	begin gpucore.QueryID
	end   gpucore.QueryID

	hostStart time.Time
	hostMS    float64
	ended     bool
	done      bool
	ms        float64
}

// Begin records the start marker.
func (p *Profiler) Begin() (*Span, error) {
	s := &Span{p: p}
	if p.ts == nil {
		s.hostStart = time.Now()
		return s, nil
	}

	q, err := p.query()
	if errors.Is(err, gpucore.ErrTimestampsUnsupported) {
		p.ts = nil
		s.hostStart = time.Now()
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: begin: %w", err)
	}
	s.begin = q
	if err := p.ts.WriteTimestamp(q); err != nil {
		p.recycle(q)
		return nil, fmt.Errorf("profile: begin: %w", err)
	}
	return s, nil
}

// End records the end marker.
func (s *Span) End() error {
	if s.ended {
		return errors.New("profile: span ended twice")
	}
	s.ended = true

	if s.begin == gpucore.InvalidID {
		sub, err := s.p.dev.Flush()
		if err != nil {
			return fmt.Errorf("profile: end: %w", err)
		}
		if err := waitSubmission(s.p.dev, sub); err != nil {
			return fmt.Errorf("profile: end: %w", err)
		}
		s.hostMS = durationMS(time.Since(s.hostStart))
		return nil
	}

	q, err := s.p.query()
	if err != nil {
		s.release()
		return fmt.Errorf("profile: end: %w", err)
	}
	s.end = q
	if err := s.p.ts.WriteTimestamp(q); err != nil {
		s.release()
		return fmt.Errorf("profile: end: %w", err)
	}
	return nil
}

// release recycles the markers of a span that can no longer be resolved.
func (s *Span) release() {
	if s.begin != gpucore.InvalidID {
		s.p.recycle(s.begin)
		s.begin = gpucore.InvalidID
	}
	if s.end != gpucore.InvalidID {
		s.p.recycle(s.end)
		s.end = gpucore.InvalidID
	}
	s.done = true
}

// Wait returns the elapsed time of the span in milliseconds. It flushes
// recorded work and polls until the end marker is available, then resolves
// both markers and recycles them.
func (s *Span) Wait() (float64, error) {
	if s.done {
		return s.ms, nil
	}
	if !s.ended {
		return 0, errors.New("profile: wait on a span that was not ended")
	}
	if s.begin == gpucore.InvalidID {
		s.done, s.ms = true, s.hostMS
		return s.ms, nil
	}
	defer func() {
		s.p.recycle(s.begin, s.end)
		s.begin, s.end = gpucore.InvalidID, gpucore.InvalidID
	}()

	ts := s.p.ts
	if ts == nil {
		return 0, errors.New("profile: timestamps disabled while span was open")
	}
	if _, err := s.p.dev.Flush(); err != nil {
		return 0, fmt.Errorf("profile: wait: %w", err)
	}
	for {
		ready, err := ts.QueryReady(s.end)
		if err != nil {
			return 0, fmt.Errorf("profile: wait: %w", err)
		}
		if ready {
			break
		}
		runtime.Gosched()
	}

	t0, err := ts.ResolveQuery(s.begin)
	if err != nil {
		return 0, fmt.Errorf("profile: resolve: %w", err)
	}
	t1, err := ts.ResolveQuery(s.end)
	if err != nil {
		return 0, fmt.Errorf("profile: resolve: %w", err)
	}
	var ns uint64
	if t1 > t0 {
		ns = t1 - t0
	}
	s.done, s.ms = true, float64(ns)/1e6
	return s.ms, nil
}

// Measure runs record between a begin and an end marker and waits for the
// result.
func (p *Profiler) Measure(record func() error) (float64, error) {
	s, err := p.Begin()
	if err != nil {
		return 0, err
	}
	if err := record(); err != nil {
		_ = s.End()
		_, _ = s.Wait()
		return 0, err
	}
	if err := s.End(); err != nil {
		return 0, err
	}
	return s.Wait()
}

// Release destroys recycled queries. Queries of spans still outstanding
// are left to the device.
func (p *Profiler) Release() {
	if p.ts != nil {
		for _, q := range p.free {
			p.ts.DestroyQuery(q)
		}
	}
	p.free = p.free[:0]
}

// waitSubmission busy-polls until sub completes.
func waitSubmission(dev gpucore.Device, sub gpucore.Submission) error {
	for {
		done, err := dev.Completed(sub)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		runtime.Gosched()
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

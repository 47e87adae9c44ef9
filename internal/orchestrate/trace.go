// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package orchestrate

import (
	"fmt"
	"time"

	"github.com/gogpu/computebench/internal/profile"
)

// PassTiming describes one dispatch of a run.
type PassTiming struct {
	Index       int
	Label       string
	Groups      [3]uint32
	Invocations uint64

	// DeviceMS is the measured time of the dispatch in milliseconds, or 0
	// when profiling is off.
	DeviceMS float64
}

// Trace summarizes one orchestrator run.
type Trace struct {
	Algorithm string
	Len       int

	Passes      []PassTiming
	Dispatches  int
	Barriers    int
	Invocations uint64

	// DeviceMS is the sum of the pass timings.
	DeviceMS float64

	// DeviceTimed reports whether pass timings come from device
	// timestamps rather than host time.
	DeviceTimed bool

	// Wall is the host time of the whole run, upload and readback
	// included.
	Wall time.Duration
}

// String formats a one-line summary.
func (t Trace) String() string {
	return fmt.Sprintf("%s n=%d: %d dispatches, %d barriers, %d invocations, device %.3fms, wall %v",
		t.Algorithm, t.Len, t.Dispatches, t.Barriers, t.Invocations, t.DeviceMS, t.Wall)
}

// recorder accumulates a trace while a run is recorded.
type recorder struct {
	trace Trace
	prof  *profile.Profiler
	spans []*profile.Span
}

func newRecorder(algorithm string, n int, prof *profile.Profiler) *recorder {
	r := &recorder{trace: Trace{Algorithm: algorithm, Len: n}, prof: prof}
	if prof != nil {
		r.trace.DeviceTimed = prof.DeviceTimed()
	}
	return r
}

// dispatch records one dispatch through fn, bracketed by a span when
// profiling.
func (r *recorder) dispatch(label string, groups [3]uint32, wg [3]uint32, fn func() error) error {
	var span *profile.Span
	if r.prof != nil {
		s, err := r.prof.Begin()
		if err != nil {
			return err
		}
		span = s
	}
	if err := fn(); err != nil {
		if span != nil {
			_ = span.End()
			r.spans = append(r.spans, span)
		}
		return err
	}
	if span != nil {
		if err := span.End(); err != nil {
			return err
		}
	}
	r.spans = append(r.spans, span)

	inv := uint64(groups[0]) * uint64(groups[1]) * uint64(groups[2]) *
		uint64(wg[0]) * uint64(wg[1]) * uint64(wg[2])
	r.trace.Passes = append(r.trace.Passes, PassTiming{
		Index:       len(r.trace.Passes),
		Label:       label,
		Groups:      groups,
		Invocations: inv,
	})
	r.trace.Dispatches++
	r.trace.Invocations += inv
	return nil
}

func (r *recorder) barrier() {
	r.trace.Barriers++
}

// finish resolves every span. Called after the run's readback so that
// resolution never stalls the recorded passes.
func (r *recorder) finish() (Trace, error) {
	var firstErr error
	for i, s := range r.spans {
		if s == nil {
			continue
		}
		ms, err := s.Wait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if i < len(r.trace.Passes) {
			r.trace.Passes[i].DeviceMS = ms
			r.trace.DeviceMS += ms
		}
	}
	r.spans = nil
	return r.trace, firstErr
}

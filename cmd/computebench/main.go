// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command computebench runs the device max reduction or bitonic sort on a
// random dataset and compares the result and timing with host baselines.
//
// Usage:
//
//	computebench -mode max -n 262144 -tile 8 -runs 5
//	computebench -mode sort -n 65536 -backend sim -profile
//	computebench -config bench.toml -runs 20
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"slices"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/computebench"
	"github.com/gogpu/computebench/internal/cpu"
	"github.com/gogpu/computebench/internal/parallel"
)

var errMismatch = errors.New("device and host results differ")

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Verbose {
		computebench.SetLogger(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config, w io.Writer) error {
	alg, err := computebench.ParseAlgorithm(cfg.Mode)
	if err != nil {
		return err
	}
	backend, err := computebench.ParseBackend(cfg.Backend)
	if err != nil {
		return err
	}
	if cfg.N < 1 {
		return fmt.Errorf("-n must be positive, got %d", cfg.N)
	}

	r, err := computebench.NewRunner(
		computebench.WithBackend(backend),
		computebench.WithTileFactor(cfg.Tile),
		computebench.WithPadding(cfg.Pad),
		computebench.WithProfiling(cfg.Profile),
		computebench.WithWorkgroupSize(cfg.Workgroup),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	p := message.NewPrinter(language.English)
	printDevice(p, w, r)

	data := computebench.RandomDataset(cfg.N, cfg.Bound, cfg.Seed)
	res, err := r.Bench(ctx, alg, data, cfg.Runs)
	if err != nil {
		return err
	}

	pool := parallel.NewPool(0)
	defer pool.Close()

	p.Fprintf(w, "\n%s of %d elements, %d runs\n", alg, cfg.N, res.Runs)
	timing := "host"
	if res.DeviceTimed {
		timing = "device"
	}
	p.Fprintf(w, "  device         %10.4f ms  (wall mean %v, min %v, %s timing)\n",
		res.DeviceMS, res.Mean.Round(time.Microsecond), res.Min.Round(time.Microsecond), timing)
	p.Fprintf(w, "  dispatches     %10d     invocations %d\n", res.Last.Dispatches, res.Last.Invocations)

	var agree bool
	switch alg {
	case computebench.AlgorithmMax:
		var single, multi int32
		tSingle := timeIt(func() { single = cpu.Max(data) })
		tMulti := timeIt(func() { multi = cpu.MaxParallel(pool, data) })
		printHost(p, w, "host", tSingle)
		printHost(p, w, fmt.Sprintf("host x%d", pool.Workers()), tMulti)
		p.Fprintf(w, "  max: device %d, host %d, host pooled %d\n", res.Max, single, multi)
		agree = res.Max == single && single == multi
	case computebench.AlgorithmSort:
		single := slices.Clone(data)
		multi := slices.Clone(data)
		var errSingle, errMulti error
		tSingle := timeIt(func() { errSingle = cpu.BitonicSort(single) })
		tMulti := timeIt(func() { errMulti = cpu.BitonicSortParallel(pool, multi) })
		if err := errors.Join(errSingle, errMulti); err != nil {
			return err
		}
		printHost(p, w, "host", tSingle)
		printHost(p, w, fmt.Sprintf("host x%d", pool.Workers()), tMulti)
		agree = slices.Equal(res.Sorted, single) && slices.Equal(single, multi)
	}

	if backend == computebench.BackendNoop {
		p.Fprintf(w, "  verification skipped: the noop backend executes nothing\n")
		return nil
	}
	if !agree {
		return errMismatch
	}
	p.Fprintf(w, "  results agree\n")
	return nil
}

func printDevice(p *message.Printer, w io.Writer, r *computebench.Runner) {
	info, l := r.Info(), r.Limits()
	p.Fprintf(w, "adapter: %s (%v)\n", info.Name, info.Type)
	p.Fprintf(w, "  max workgroup size        %d x %d x %d\n",
		l.MaxWorkgroupSize[0], l.MaxWorkgroupSize[1], l.MaxWorkgroupSize[2])
	p.Fprintf(w, "  max invocations/group     %d\n", l.MaxInvocationsPerWorkgroup)
	p.Fprintf(w, "  max workgroups/dimension  %d\n", l.MaxWorkgroupsPerDimension)
	p.Fprintf(w, "  max buffer size           %d bytes\n", l.MaxBufferSize)
	p.Fprintf(w, "  timestamps                %t\n", l.Timestamps)
}

func printHost(p *message.Printer, w io.Writer, label string, d time.Duration) {
	p.Fprintf(w, "  %-14s %10.4f ms\n", label, float64(d)/float64(time.Millisecond))
}

func timeIt(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

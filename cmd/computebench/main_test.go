// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"strings"
	"testing"
)

func simConfig(mode string, n int) config {
	cfg := defaultConfig()
	cfg.Mode = mode
	cfg.N = n
	cfg.Backend = "sim"
	cfg.Runs = 1
	return cfg
}

func TestRunMax(t *testing.T) {
	cfg := simConfig("max", 4096)
	var out strings.Builder
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	report := out.String()
	for _, want := range []string{
		"max of 4,096 elements",
		"max: device 1,000,000, host 1,000,000",
		"max workgroups/dimension",
		"results agree",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestRunSort(t *testing.T) {
	cfg := simConfig("sort", 1024)
	cfg.Profile = true
	var out strings.Builder
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "device timing") {
		t.Errorf("profiling on the simulated device must report device timing:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "results agree") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config)
	}{
		{"mode", func(c *config) { c.Mode = "median" }},
		{"backend", func(c *config) { c.Backend = "metal" }},
		{"length", func(c *config) { c.N = 0 }},
		{"tile", func(c *config) { c.N = 100 }},
		{"sort length", func(c *config) { c.Mode = "sort"; c.N = 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simConfig("max", 64)
			tt.mutate(&cfg)
			var out strings.Builder
			if err := run(context.Background(), cfg, &out); err == nil {
				t.Errorf("run(%+v) succeeded", cfg)
			}
		})
	}
}

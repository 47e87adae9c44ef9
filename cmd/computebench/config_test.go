// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Flags
// =============================================================================

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg != defaultConfig() {
		t.Errorf("got %+v, want defaults %+v", cfg, defaultConfig())
	}
}

func TestParseArgsFlags(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-mode", "sort", "-n", "4096", "-tile", "4", "-runs", "2",
		"-seed", "9", "-bound", "77", "-backend", "sim", "-pad", "-v",
		"-workgroup", "32",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	want := config{
		Mode: "sort", N: 4096, Tile: 4, Runs: 2, Seed: 9, Bound: 77,
		Backend: "sim", Pad: true, Verbose: true, Workgroup: 32,
	}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative tile", []string{"-tile", "-2"}},
		{"bound overflow", []string{"-bound", "3000000000"}},
		{"unknown flag", []string{"-fast"}},
		{"positional", []string{"max"}},
		{"missing config", []string{"-config", "does-not-exist.toml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseArgs(tt.args, io.Discard); err == nil {
				t.Errorf("parseArgs(%v) succeeded", tt.args)
			}
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	var out strings.Builder
	_, err := parseArgs([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("got %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(out.String(), "-tile") {
		t.Errorf("usage does not list -tile:\n%s", out.String())
	}
}

// =============================================================================
// Config file
// =============================================================================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
mode = "sort"
n = 1024
backend = "sim"
profile = true
`)
	cfg, err := parseArgs([]string{"-config", path}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.Mode != "sort" || cfg.N != 1024 || cfg.Backend != "sim" || !cfg.Profile {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Tile != 8 || cfg.Runs != 5 {
		t.Errorf("unset keys must keep defaults: %+v", cfg)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, `
mode = "sort"
n = 1024
tile = 2
`)
	cfg, err := parseArgs([]string{"-n", "64", "-config", path, "-tile", "4"}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if cfg.N != 64 {
		t.Errorf("N = %d, want flag value 64", cfg.N)
	}
	if cfg.Tile != 4 {
		t.Errorf("Tile = %d, want flag value 4", cfg.Tile)
	}
	if cfg.Mode != "sort" {
		t.Errorf("Mode = %q, want file value sort", cfg.Mode)
	}
}

func TestConfigFileUnknownKey(t *testing.T) {
	_, err := decodeConfig(strings.NewReader("mode = \"max\"\ntiles = 4\n"))
	if err == nil {
		t.Fatal("unknown key accepted")
	}
	if !strings.Contains(err.Error(), "tiles") {
		t.Errorf("error %q does not name the key", err)
	}
}

func TestConfigFileBadType(t *testing.T) {
	if _, err := decodeConfig(strings.NewReader(`n = "many"`)); err == nil {
		t.Error("string for n accepted")
	}
}

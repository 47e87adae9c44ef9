// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// config is the run configuration. Every field can be set in the TOML file
// given with -config and overridden by the flag of the same name.
type config struct {
	Mode      string `toml:"mode"`
	N         int    `toml:"n"`
	Tile      uint32 `toml:"tile"`
	Runs      int    `toml:"runs"`
	Seed      uint64 `toml:"seed"`
	Bound     int32  `toml:"bound"`
	Backend   string `toml:"backend"`
	Pad       bool   `toml:"pad"`
	Profile   bool   `toml:"profile"`
	Workgroup uint32 `toml:"workgroup"`
	Verbose   bool   `toml:"verbose"`
}

func defaultConfig() config {
	return config{
		Mode:      "max",
		N:         1 << 18,
		Tile:      8,
		Runs:      5,
		Seed:      1,
		Bound:     1_000_000,
		Backend:   "auto",
		Workgroup: 64,
	}
}

// bindFlags registers one flag per config field, defaulting to the
// current value of cfg.
func bindFlags(fs *flag.FlagSet, cfg *config) {
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "algorithm: max or sort")
	fs.IntVar(&cfg.N, "n", cfg.N, "dataset length")
	fs.Var((*uint32Value)(&cfg.Tile), "tile", "reduction tile factor")
	fs.IntVar(&cfg.Runs, "runs", cfg.Runs, "measured runs after one warm-up")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "dataset seed")
	fs.Var((*int32Value)(&cfg.Bound), "bound", "values are drawn from [0, bound)")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "device: auto, gpu, sim or noop")
	fs.BoolVar(&cfg.Pad, "pad", cfg.Pad, "pad the reduction grid to accept any length")
	fs.BoolVar(&cfg.Profile, "profile", cfg.Profile, "record per-pass device time")
	fs.Var((*uint32Value)(&cfg.Workgroup), "workgroup", "sort workgroup width")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "debug logging to stderr")
}

type uint32Value uint32

func (v *uint32Value) String() string { return strconv.FormatUint(uint64(*v), 10) }

func (v *uint32Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*v = uint32Value(n)
	return nil
}

type int32Value int32

func (v *int32Value) String() string { return strconv.FormatInt(int64(*v), 10) }

func (v *int32Value) Set(s string) error {
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return err
	}
	*v = int32Value(n)
	return nil
}

// parseArgs parses the command line. When -config names a file, its values
// replace the defaults and flags given explicitly replace the file's values.
func parseArgs(args []string, stderr io.Writer) (config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("computebench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var path string
	fs.StringVar(&path, "config", "", "TOML config file")
	bindFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if path == "" {
		return cfg, nil
	}

	fileCfg, err := loadConfig(path)
	if err != nil {
		return config{}, err
	}
	override := flag.NewFlagSet("override", flag.ContinueOnError)
	override.SetOutput(io.Discard)
	bindFlags(override, &fileCfg)
	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		setErr = override.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return config{}, setErr
	}
	return fileCfg, nil
}

// loadConfig reads a TOML file on top of the defaults. Unknown keys are an
// error.
func loadConfig(path string) (config, error) {
	f, err := os.Open(path)
	if err != nil {
		return config{}, err
	}
	defer f.Close()
	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (config, error) {
	cfg := defaultConfig()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return config{}, fmt.Errorf("config: %s", strict.String())
		}
		return config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

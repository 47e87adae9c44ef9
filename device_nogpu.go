// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

package computebench

import (
	"fmt"

	"github.com/gogpu/computebench/gpucore"
)

// openHardware always fails: the binary was built without GPU support.
func openHardware(b Backend) (gpucore.Device, error) {
	return nil, fmt.Errorf("%w: %s backend unavailable in a nogpu build", ErrNoGPU, b)
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package executor

import (
	"bytes"
	"runtime"
)

// goroutineTag returns the "goroutine N" header of the current stack.
func goroutineTag() string {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	if i := bytes.IndexByte(buf, '['); i > 0 {
		return string(bytes.TrimSpace(buf[:i]))
	}
	return string(buf)
}

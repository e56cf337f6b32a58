// Package memzero wipes sensitive buffers.
package memzero

import "runtime"

// Zero overwrites b with zeros. Scalar and entropy buffers are passed here as
// soon as they are no longer needed.
//
//go:noinline
func Zero(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package store

import "context"

// lockFile is a no-op where flock is unavailable; FileStore's own mutex still
// serialises writers inside one process.
func lockFile(context.Context, string) (func(), error) {
	return func() {}, nil
}

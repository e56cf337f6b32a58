package types

import "time"

// LockoutState is the persisted failed-authentication counter.
type LockoutState struct {
	Attempts     int
	Level        int
	LockoutUntil time.Time // zero when no lockout is pending
}

// Locked reports whether a lockout is pending at now.
func (s LockoutState) Locked(now time.Time) bool {
	return !s.LockoutUntil.IsZero() && now.Before(s.LockoutUntil)
}

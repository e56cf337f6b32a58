// Package gate blocks access to the custody core until device authentication
// succeeds, subject to the lockout policy.
package gate

import "context"

// Capability is what the device reports about its authentication factors.
type Capability struct {
	HasHardware bool
	IsEnrolled  bool
	HasPasscode bool
}

// Secured reports whether any authentication factor is usable.
func (c Capability) Secured() bool {
	return (c.HasHardware && c.IsEnrolled) || c.HasPasscode
}

// Outcome is the result of one platform authentication prompt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeUserCancel
	OutcomeFallback
	OutcomeNotEnrolled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUserCancel:
		return "user_cancel"
	case OutcomeFallback:
		return "fallback"
	case OutcomeNotEnrolled:
		return "not_enrolled"
	default:
		return "failed"
	}
}

// Authenticator is the platform authentication collaborator.
type Authenticator interface {
	Probe(ctx context.Context) (Capability, error)
	Prompt(ctx context.Context, reason string) (Outcome, error)
}

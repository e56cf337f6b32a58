package gate

import "context"

// PermissiveCheck is the lower-stakes confirmation used outside the unlock
// flow. Devices without enrolled biometrics pass without a prompt, and the
// lockout policy is not consulted or updated.
func PermissiveCheck(ctx context.Context, auth Authenticator, reason string) (bool, error) {
	capability, err := auth.Probe(ctx)
	if err != nil {
		return false, err
	}
	if !capability.HasHardware || !capability.IsEnrolled {
		return true, nil
	}
	outcome, err := auth.Prompt(ctx, reason)
	if err != nil {
		return false, err
	}
	return outcome == OutcomeSuccess, nil
}

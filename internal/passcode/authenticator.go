package passcode

import (
	"context"
	"errors"
	"io"
	"strings"

	"custodia/internal/gate"
)

// FallbackInput asks for the alternative factor instead of answering.
const FallbackInput = "?"

// PromptFunc reads one passcode entry. io.EOF means the user dismissed the
// prompt.
type PromptFunc func(ctx context.Context, reason string) (string, error)

// Authenticator adapts a Verifier and a terminal prompt to gate.Authenticator.
type Authenticator struct {
	verifier *Verifier
	prompt   PromptFunc
}

var _ gate.Authenticator = (*Authenticator)(nil)

func NewAuthenticator(v *Verifier, prompt PromptFunc) *Authenticator {
	return &Authenticator{verifier: v, prompt: prompt}
}

// Probe reports a passcode-only device: the terminal is the sensor and the
// passcode record is the enrolment.
func (a *Authenticator) Probe(ctx context.Context) (gate.Capability, error) {
	ok, err := a.verifier.Exists(ctx)
	if err != nil {
		return gate.Capability{}, err
	}
	return gate.Capability{HasHardware: true, IsEnrolled: ok, HasPasscode: ok}, nil
}

func (a *Authenticator) Prompt(ctx context.Context, reason string) (gate.Outcome, error) {
	input, err := a.prompt(ctx, reason)
	switch {
	case errors.Is(err, io.EOF):
		return gate.OutcomeUserCancel, nil
	case err != nil:
		return gate.OutcomeFailed, err
	}
	input = strings.TrimRight(input, "\r\n")
	switch input {
	case "":
		return gate.OutcomeUserCancel, nil
	case FallbackInput:
		return gate.OutcomeFallback, nil
	}

	ok, err := a.verifier.Verify(ctx, input)
	switch {
	case errors.Is(err, ErrNotSet):
		return gate.OutcomeNotEnrolled, nil
	case err != nil:
		return gate.OutcomeFailed, err
	case ok:
		return gate.OutcomeSuccess, nil
	default:
		return gate.OutcomeFailed, nil
	}
}

package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"custodia/internal/lockout"
	"custodia/internal/logging"
	"custodia/internal/metrics"
)

// Status is the gate's lifecycle state.
type Status int

const (
	StatusUninitialized Status = iota
	StatusCheckingCapability
	StatusAuthenticating
	StatusLockedOut
	StatusAwaitingRetry
	StatusAuthenticated
	StatusSecurityRequired
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusCheckingCapability:
		return "checking-capability"
	case StatusAuthenticating:
		return "authenticating"
	case StatusLockedOut:
		return "locked-out"
	case StatusAwaitingRetry:
		return "awaiting-retry"
	case StatusAuthenticated:
		return "authenticated"
	case StatusSecurityRequired:
		return "security-required"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

const (
	msgFailed           = "Authentication failed. Please try again."
	msgCancelled        = "Authentication cancelled."
	msgSecurityRequired = "Device security is required. Set up biometrics or a device passcode to continue."
	msgSetUpSecurity    = "No biometrics enrolled. Set up security on this device to continue."
)

// DefaultReason is shown by the platform prompt.
const DefaultReason = "Unlock custodia"

// Result is what one gate transition reports to the UI.
type Result struct {
	Status  Status
	Message string
	// Remaining is the lockout time left when Status is StatusLockedOut.
	Remaining time.Duration
	// RemainingAttempts is set when failures are pending and no lockout is active.
	RemainingAttempts int
	// Ignored is set when the call overlapped an in-flight authentication.
	Ignored bool
	// Cancelled is set when the user dismissed the prompt and no lockout fired.
	Cancelled bool
}

// Passed reports whether the gate is open.
func (r Result) Passed() bool { return r.Status == StatusAuthenticated }

// MandatoryGate requires a secured device and a successful prompt. It never
// treats an unsecured device as authenticated.
type MandatoryGate struct {
	auth    Authenticator
	policy  *lockout.Policy
	log     *slog.Logger
	metrics *metrics.Metrics
	reason  string

	inflight atomic.Bool

	mu     sync.Mutex
	status Status
}

// NewMandatoryGate returns a gate in StatusUninitialized.
func NewMandatoryGate(auth Authenticator, policy *lockout.Policy, logger *slog.Logger, m *metrics.Metrics) *MandatoryGate {
	return &MandatoryGate{
		auth:    auth,
		policy:  policy,
		log:     logging.OrDiscard(logger),
		metrics: m,
		reason:  DefaultReason,
	}
}

// WithReason sets the prompt text.
func (g *MandatoryGate) WithReason(reason string) *MandatoryGate {
	if reason != "" {
		g.reason = reason
	}
	return g
}

// Status returns the gate's current state.
func (g *MandatoryGate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *MandatoryGate) setStatus(s Status) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

// Mount loads the persisted lockout state and, unless a lockout is active,
// authenticates immediately.
func (g *MandatoryGate) Mount(ctx context.Context) Result {
	g.policy.Load(ctx)
	if rem, locked := g.policy.RemainingTime(ctx, g.policy.Now()); locked {
		g.setStatus(StatusLockedOut)
		return lockedResult(rem)
	}
	return g.Authenticate(ctx)
}

// Current reports the gate state together with the lockout time left or the
// attempts left before the next lockout.
func (g *MandatoryGate) Current(ctx context.Context) Result {
	st := g.Status()
	if st != StatusAuthenticated {
		if rem, locked := g.policy.RemainingTime(ctx, g.policy.Now()); locked {
			return lockedResult(rem)
		}
	}
	return g.withAttempts(ctx, Result{Status: st})
}

// Authenticate runs one authentication attempt. Overlapping calls return
// immediately with Ignored set.
func (g *MandatoryGate) Authenticate(ctx context.Context) Result {
	if !g.inflight.CompareAndSwap(false, true) {
		return Result{Status: g.Status(), Ignored: true}
	}
	defer g.inflight.Store(false)
	return g.withAttempts(ctx, g.authenticate(ctx))
}

func (g *MandatoryGate) authenticate(ctx context.Context) Result {
	if g.Status() == StatusAuthenticated {
		return Result{Status: StatusAuthenticated}
	}

	if rem, locked := g.policy.RemainingTime(ctx, g.policy.Now()); locked {
		g.setStatus(StatusLockedOut)
		return lockedResult(rem)
	}

	g.setStatus(StatusCheckingCapability)
	capability, err := g.auth.Probe(ctx)
	if err != nil {
		g.log.Error("authentication capability probe failed", "err", err)
		g.setStatus(StatusAwaitingRetry)
		return Result{Status: StatusAwaitingRetry, Message: msgFailed}
	}
	if !capability.Secured() {
		g.log.Warn("device has no authentication factor")
		g.setStatus(StatusSecurityRequired)
		return Result{Status: StatusSecurityRequired, Message: msgSecurityRequired}
	}

	g.setStatus(StatusAuthenticating)
	outcome, err := g.auth.Prompt(ctx, g.reason)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			g.setStatus(StatusAwaitingRetry)
			return Result{Status: StatusAwaitingRetry}
		}
		g.log.Error("authentication prompt failed", "err", err)
		outcome = OutcomeFailed
	}
	g.metrics.AuthOutcome(outcome.String())

	switch outcome {
	case OutcomeSuccess:
		g.policy.RecordSuccess(ctx)
		g.setStatus(StatusAuthenticated)
		g.log.Info("device authenticated")
		return Result{Status: StatusAuthenticated}
	case OutcomeFallback:
		return Result{Status: StatusAuthenticating}
	case OutcomeNotEnrolled:
		g.setStatus(StatusSecurityRequired)
		return Result{Status: StatusSecurityRequired, Message: msgSetUpSecurity}
	case OutcomeUserCancel:
		res := g.fail(ctx, msgCancelled)
		res.Cancelled = res.Status == StatusAwaitingRetry
		return res
	default:
		return g.fail(ctx, msgFailed)
	}
}

func (g *MandatoryGate) fail(ctx context.Context, msg string) Result {
	f := g.policy.RecordFailure(ctx)
	if f.Triggered {
		g.setStatus(StatusLockedOut)
		return lockedResult(f.Duration)
	}
	g.setStatus(StatusAwaitingRetry)
	return Result{Status: StatusAwaitingRetry, Message: msg}
}

// withAttempts fills RemainingAttempts when failures are pending and the gate
// is neither open nor locked out.
func (g *MandatoryGate) withAttempts(ctx context.Context, res Result) Result {
	if res.Status == StatusAuthenticated || res.Status == StatusLockedOut {
		return res
	}
	if left := g.policy.RemainingAttempts(ctx); left < lockout.Threshold {
		res.RemainingAttempts = left
	}
	return res
}

// Background clears an authenticated session.
func (g *MandatoryGate) Background() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusAuthenticated {
		g.status = StatusAwaitingRetry
	}
}

// Foreground re-authenticates unless the current session is still authenticated.
func (g *MandatoryGate) Foreground(ctx context.Context) Result {
	if g.Status() == StatusAuthenticated {
		return Result{Status: StatusAuthenticated}
	}
	return g.Authenticate(ctx)
}

// WatchLockout calls emit with the remaining lockout time on every tick until
// the lockout elapses or ctx is done. It returns nil once the gate is ready to
// retry and ctx.Err() on teardown. Persisted state is never modified.
func (g *MandatoryGate) WatchLockout(ctx context.Context, ticks <-chan time.Time, emit func(time.Duration)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rem, locked := g.policy.RemainingTime(ctx, g.policy.Now())
		if !locked {
			g.mu.Lock()
			if g.status == StatusLockedOut {
				g.status = StatusAwaitingRetry
			}
			g.mu.Unlock()
			return nil
		}
		emit(rem)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
		}
	}
}

func lockedResult(rem time.Duration) Result {
	return Result{
		Status:    StatusLockedOut,
		Message:   fmt.Sprintf("Too many failed attempts. Please wait %s.", lockout.FormatDuration(rem)),
		Remaining: rem,
	}
}

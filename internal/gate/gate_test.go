package gate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"custodia/internal/gate"
	"custodia/internal/lockout"
	"custodia/internal/metrics"
	"custodia/internal/store"
)

type fakeAuth struct {
	mu       sync.Mutex
	cap      gate.Capability
	probeErr error
	outcomes []gate.Outcome
	prompts  int
	block    chan struct{}
	entered  chan struct{}
}

func secured() gate.Capability {
	return gate.Capability{HasHardware: true, IsEnrolled: true, HasPasscode: true}
}

func (f *fakeAuth) Probe(context.Context) (gate.Capability, error) {
	return f.cap, f.probeErr
}

func (f *fakeAuth) Prompt(ctx context.Context, _ string) (gate.Outcome, error) {
	f.mu.Lock()
	f.prompts++
	var out gate.Outcome = gate.OutcomeFailed
	if len(f.outcomes) > 0 {
		out, f.outcomes = f.outcomes[0], f.outcomes[1:]
	}
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeAuth) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newGate(auth gate.Authenticator) (*gate.MandatoryGate, *lockout.Policy, *clock) {
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	policy := lockout.New(store.NewMemoryStore(), clk.now, nil, nil)
	return gate.NewMandatoryGate(auth, policy, nil, nil), policy, clk
}

func TestMount_SuccessAuthenticates(t *testing.T) {
	auth := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeSuccess}}
	g, _, _ := newGate(auth)
	if g.Status() != gate.StatusUninitialized {
		t.Fatalf("initial status = %v", g.Status())
	}
	res := g.Mount(context.Background())
	if !res.Passed() || g.Status() != gate.StatusAuthenticated {
		t.Fatalf("result = %+v", res)
	}
}

func TestAuthenticate_FiveFailuresThenShortCircuit(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured()}
	g, policy, _ := newGate(auth)

	for i := 1; i < lockout.Threshold; i++ {
		res := g.Authenticate(ctx)
		if res.Status != gate.StatusAwaitingRetry || res.Message != "Authentication failed. Please try again." {
			t.Fatalf("attempt %d: %+v", i, res)
		}
		if res.RemainingAttempts != lockout.Threshold-i {
			t.Fatalf("attempt %d remaining = %d", i, res.RemainingAttempts)
		}
	}
	res := g.Authenticate(ctx)
	if res.Status != gate.StatusLockedOut || !strings.Contains(res.Message, "Please wait 1m") {
		t.Fatalf("lockout result = %+v", res)
	}
	if res.Remaining != time.Minute {
		t.Fatalf("remaining = %v", res.Remaining)
	}

	prompts := auth.promptCount()
	res = g.Authenticate(ctx)
	if res.Status != gate.StatusLockedOut || !strings.Contains(res.Message, "Please wait 1m") {
		t.Fatalf("short-circuit result = %+v", res)
	}
	if auth.promptCount() != prompts {
		t.Fatal("prompt shown while locked out")
	}
	if st := policy.State(ctx); st.Level != 1 || st.Attempts != 0 {
		t.Fatalf("short-circuit changed lockout state: %+v", st)
	}
}

func TestAuthenticate_UserCancelCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{
		gate.OutcomeUserCancel, gate.OutcomeUserCancel, gate.OutcomeUserCancel,
		gate.OutcomeUserCancel, gate.OutcomeUserCancel,
	}}
	g, policy, _ := newGate(auth)

	res := g.Authenticate(ctx)
	if res.Status != gate.StatusAwaitingRetry || res.Message != "Authentication cancelled." || !res.Cancelled {
		t.Fatalf("cancel result = %+v", res)
	}
	if policy.State(ctx).Attempts != 1 {
		t.Fatal("cancel did not count as failure")
	}
	for i := 0; i < 3; i++ {
		g.Authenticate(ctx)
	}
	res = g.Authenticate(ctx)
	if res.Status != gate.StatusLockedOut || res.Cancelled || strings.Contains(res.Message, "cancelled") {
		t.Fatalf("lockout message should replace cancel message: %+v", res)
	}
}

func TestAuthenticate_FallbackAndNotEnrolledDoNotCount(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeFallback, gate.OutcomeNotEnrolled}}
	g, policy, _ := newGate(auth)

	res := g.Authenticate(ctx)
	if res.Status != gate.StatusAuthenticating || res.Message != "" {
		t.Fatalf("fallback result = %+v", res)
	}
	res = g.Authenticate(ctx)
	if res.Status != gate.StatusSecurityRequired || !strings.Contains(res.Message, "Set up security") {
		t.Fatalf("not enrolled result = %+v", res)
	}
	if st := policy.State(ctx); st.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", st.Attempts)
	}
}

func TestAuthenticate_UnsecuredDeviceIsNeverAuthenticated(t *testing.T) {
	auth := &fakeAuth{cap: gate.Capability{HasHardware: true}, outcomes: []gate.Outcome{gate.OutcomeSuccess}}
	g, _, _ := newGate(auth)
	res := g.Authenticate(context.Background())
	if res.Status != gate.StatusSecurityRequired || res.Passed() {
		t.Fatalf("result = %+v", res)
	}
	if auth.promptCount() != 0 {
		t.Fatal("prompt shown on unsecured device")
	}
}

func TestAuthenticate_ProbeErrorDoesNotCount(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{probeErr: errors.New("sensor busy")}
	g, policy, _ := newGate(auth)
	res := g.Authenticate(ctx)
	if res.Status != gate.StatusAwaitingRetry {
		t.Fatalf("result = %+v", res)
	}
	if policy.State(ctx).Attempts != 0 {
		t.Fatal("probe error counted as failure")
	}
}

func TestAuthenticate_SuccessResetsLockoutState(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeFailed, gate.OutcomeFailed, gate.OutcomeSuccess}}
	g, policy, _ := newGate(auth)
	g.Authenticate(ctx)
	g.Authenticate(ctx)
	if res := g.Authenticate(ctx); !res.Passed() {
		t.Fatalf("result = %+v", res)
	}
	if st := policy.State(ctx); st.Attempts != 0 || st.Level != 0 {
		t.Fatalf("state after success = %+v", st)
	}
}

func TestAuthenticate_SingleFlight(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{
		cap:      secured(),
		outcomes: []gate.Outcome{gate.OutcomeSuccess},
		block:    make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	g, _, _ := newGate(auth)

	done := make(chan gate.Result, 1)
	go func() { done <- g.Authenticate(ctx) }()
	<-auth.entered

	res := g.Authenticate(ctx)
	if !res.Ignored || res.Status != gate.StatusAuthenticating {
		t.Fatalf("overlapping call = %+v", res)
	}

	close(auth.block)
	if first := <-done; !first.Passed() {
		t.Fatalf("first call = %+v", first)
	}
	if auth.promptCount() != 1 {
		t.Fatalf("prompts = %d, want 1", auth.promptCount())
	}
}

func TestLifecycle_BackgroundForcesReauth(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeSuccess, gate.OutcomeSuccess}}
	g, _, _ := newGate(auth)

	g.Mount(ctx)
	if res := g.Foreground(ctx); !res.Passed() || auth.promptCount() != 1 {
		t.Fatalf("foreground in same session re-prompted: %+v prompts=%d", res, auth.promptCount())
	}

	g.Background()
	if g.Status() != gate.StatusAwaitingRetry {
		t.Fatalf("status after background = %v", g.Status())
	}
	if res := g.Foreground(ctx); !res.Passed() || auth.promptCount() != 2 {
		t.Fatalf("foreground after background: %+v prompts=%d", res, auth.promptCount())
	}
}

func TestMount_LockedOutDoesNotPrompt(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured()}
	g, policy, clk := newGate(auth)
	for i := 0; i < lockout.Threshold; i++ {
		policy.RecordFailure(ctx)
	}
	clk.advance(30 * time.Second)
	res := g.Mount(ctx)
	if res.Status != gate.StatusLockedOut || res.Remaining != 30*time.Second {
		t.Fatalf("mount result = %+v", res)
	}
	if auth.promptCount() != 0 {
		t.Fatal("prompt shown while locked out")
	}
}

func TestWatchLockout_CountsDownAndStops(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured()}
	g, _, clk := newGate(auth)
	for i := 0; i < lockout.Threshold; i++ {
		g.Authenticate(ctx)
	}

	// Each emit advances the clock before the next tick is accepted, so the
	// watcher reads exactly one second later on every iteration.
	ticks := make(chan time.Time)
	var seen []time.Duration
	errc := make(chan error, 1)
	go func() {
		errc <- g.WatchLockout(ctx, ticks, func(d time.Duration) {
			seen = append(seen, d)
			clk.advance(time.Second)
		})
	}()

	for i := 0; i < 60; i++ {
		ticks <- time.Time{}
	}
	if err := <-errc; err != nil {
		t.Fatalf("WatchLockout: %v", err)
	}
	if len(seen) != 60 || seen[0] != time.Minute || seen[59] != time.Second {
		t.Fatalf("countdown = %v", seen)
	}
	if g.Status() != gate.StatusAwaitingRetry {
		t.Fatalf("status after countdown = %v", g.Status())
	}
}

func TestWatchLockout_TeardownKeepsState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	auth := &fakeAuth{cap: secured()}
	g, policy, _ := newGate(auth)
	for i := 0; i < lockout.Threshold; i++ {
		g.Authenticate(context.Background())
	}
	before := policy.State(context.Background())

	emitted := make(chan struct{}, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- g.WatchLockout(ctx, make(chan time.Time), func(time.Duration) {
			select {
			case emitted <- struct{}{}:
			default:
			}
		})
	}()
	<-emitted
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if after := policy.State(context.Background()); after != before {
		t.Fatalf("teardown changed state: %+v -> %+v", before, after)
	}
}

func TestAuthenticate_RecordsOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	policy := lockout.New(store.NewMemoryStore(), clk.now, nil, m)
	auth := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeFailed, gate.OutcomeSuccess}}
	g := gate.NewMandatoryGate(auth, policy, nil, m)

	g.Authenticate(context.Background())
	g.Authenticate(context.Background())
	if got := testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed outcomes = %v", got)
	}
	if got := testutil.ToFloat64(m.AuthOutcomes.WithLabelValues("success")); got != 1 {
		t.Fatalf("success outcomes = %v", got)
	}
}

func TestPermissiveCheck(t *testing.T) {
	ctx := context.Background()

	noHardware := &fakeAuth{cap: gate.Capability{HasPasscode: true}}
	if ok, err := gate.PermissiveCheck(ctx, noHardware, "confirm"); !ok || err != nil {
		t.Fatalf("no hardware: ok=%v err=%v", ok, err)
	}
	if noHardware.promptCount() != 0 {
		t.Fatal("prompted without hardware")
	}

	notEnrolled := &fakeAuth{cap: gate.Capability{HasHardware: true}}
	if ok, _ := gate.PermissiveCheck(ctx, notEnrolled, "confirm"); !ok {
		t.Fatal("not enrolled should soft-allow")
	}

	denied := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeUserCancel}}
	if ok, _ := gate.PermissiveCheck(ctx, denied, "confirm"); ok {
		t.Fatal("cancelled prompt passed")
	}

	allowed := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeSuccess}}
	if ok, _ := gate.PermissiveCheck(ctx, allowed, "confirm"); !ok {
		t.Fatal("successful prompt rejected")
	}

	broken := &fakeAuth{probeErr: errors.New("no sensor service")}
	if ok, err := gate.PermissiveCheck(ctx, broken, "confirm"); ok || err == nil {
		t.Fatalf("probe error: ok=%v err=%v", ok, err)
	}
}

func TestMount_ReportsPersistedRemainingAttempts(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	records := store.NewMemoryStore()
	earlier := lockout.New(records, clk.now, nil, nil)
	earlier.RecordFailure(ctx)
	earlier.RecordFailure(ctx)

	auth := &fakeAuth{cap: secured(), outcomes: []gate.Outcome{gate.OutcomeFallback}}
	g := gate.NewMandatoryGate(auth, lockout.New(records, clk.now, nil, nil), nil, nil)

	if res := g.Current(ctx); res.Status != gate.StatusUninitialized || res.RemainingAttempts != lockout.Threshold-2 {
		t.Fatalf("current before mount = %+v", res)
	}
	res := g.Mount(ctx)
	if res.Status != gate.StatusAuthenticating || res.RemainingAttempts != lockout.Threshold-2 {
		t.Fatalf("mount result = %+v", res)
	}
}

func TestCurrent_LockedAndAuthenticated(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{cap: secured()}
	g, policy, clk := newGate(auth)
	for i := 0; i < lockout.Threshold; i++ {
		g.Authenticate(ctx)
	}
	clk.advance(15 * time.Second)
	if res := g.Current(ctx); res.Status != gate.StatusLockedOut || res.Remaining != 45*time.Second || res.RemainingAttempts != 0 {
		t.Fatalf("current while locked = %+v", res)
	}

	clk.advance(time.Minute)
	auth.mu.Lock()
	auth.outcomes = []gate.Outcome{gate.OutcomeSuccess}
	auth.mu.Unlock()
	if res := g.Authenticate(ctx); !res.Passed() {
		t.Fatalf("authenticate after lockout = %+v", res)
	}
	if res := g.Current(ctx); res.Status != gate.StatusAuthenticated || res.RemainingAttempts != 0 {
		t.Fatalf("current when open = %+v", res)
	}
	if policy.State(ctx).Level != 0 {
		t.Fatal("success did not reset level")
	}
}

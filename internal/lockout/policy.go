// Package lockout tracks failed device authentications and enforces an
// escalating cooldown that survives process restarts.
package lockout

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"custodia/internal/domain"
	"custodia/internal/logging"
	"custodia/internal/metrics"
)

// Threshold is the number of failures that triggers the next lockout tier.
const Threshold = 5

var tiers = [...]time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
}

// Tiers returns the cooldown per lockout level, in order.
func Tiers() []time.Duration {
	out := make([]time.Duration, len(tiers))
	copy(out, tiers[:])
	return out
}

// Failure describes the state after RecordFailure.
type Failure struct {
	Attempts     int
	Level        int
	LockoutUntil time.Time
	// Triggered is set when this failure started a new lockout.
	Triggered bool
	Duration  time.Duration
}

// Policy is the persisted failure counter. Every call re-reads the records,
// so processes sharing one store see each other's failures. It never returns
// errors: storage failures are logged and counted, and the last state read
// stays authoritative for the current process.
type Policy struct {
	mu      sync.Mutex
	records domain.RecordStore
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics

	state domain.LockoutState
}

// New returns a Policy over records. now defaults to time.Now.
func New(records domain.RecordStore, now func() time.Time, logger *slog.Logger, m *metrics.Metrics) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{records: records, now: now, log: logging.OrDiscard(logger), metrics: m}
}

// Load reads the persisted state. An elapsed lockout is cleared; attempts and
// level are kept until the next success.
func (p *Policy) Load(ctx context.Context) domain.LockoutState {
	defer p.acquire(ctx)()
	p.loadLocked(ctx)
	p.clearElapsedLocked(ctx)
	return p.state
}

// acquire takes the in-process mutex and, when the store is shared between
// processes, its cross-process lock. The returned func releases both.
func (p *Policy) acquire(ctx context.Context) func() {
	p.mu.Lock()
	l, ok := p.records.(domain.RecordLocker)
	if !ok {
		return p.mu.Unlock
	}
	unlock, err := l.Lock(ctx)
	if err != nil {
		p.metrics.StoreFailure("lockout")
		p.log.Error("lockout state lock failed", "err", err)
		return p.mu.Unlock
	}
	return func() {
		unlock()
		p.mu.Unlock()
	}
}

// loadLocked refreshes p.state from the records. A field whose read fails
// keeps its last known value.
func (p *Policy) loadLocked(ctx context.Context) {
	st := p.state
	if n, ok := p.readInt64(ctx, domain.RecordLockoutAttempts); ok {
		st.Attempts = int(n)
	}
	if n, ok := p.readInt64(ctx, domain.RecordLockoutLevel); ok {
		st.Level = int(n)
	}
	if ms, ok := p.readInt64(ctx, domain.RecordLockoutUntil); ok {
		st.LockoutUntil = time.Time{}
		if ms > 0 {
			st.LockoutUntil = time.UnixMilli(ms)
		}
	}
	st.Level = clampLevel(st.Level)
	if st.Attempts < 0 {
		st.Attempts = 0
	}
	p.state = st
}

func (p *Policy) clearElapsedLocked(ctx context.Context) {
	if p.state.LockoutUntil.IsZero() || p.state.Locked(p.now()) {
		return
	}
	p.state.LockoutUntil = time.Time{}
	p.remove(ctx, domain.RecordLockoutUntil)
	p.log.Debug("elapsed lockout cleared", "level", p.state.Level)
}

// RecordFailure counts one failed authentication and triggers the next
// lockout tier once Threshold is reached. A pending lockout is never
// shortened and level never decreases.
func (p *Policy) RecordFailure(ctx context.Context) Failure {
	defer p.acquire(ctx)()
	p.loadLocked(ctx)
	p.clearElapsedLocked(ctx)

	st := p.state
	st.Attempts++
	if st.Attempts < Threshold {
		p.state = st
		p.write(ctx, domain.RecordLockoutAttempts, strconv.Itoa(st.Attempts))
		return Failure{Attempts: st.Attempts, Level: st.Level, LockoutUntil: st.LockoutUntil}
	}

	st.Level = clampLevel(st.Level + 1)
	d := tiers[st.Level-1]
	until := p.now().Add(d)
	if st.LockoutUntil.After(until) {
		until = st.LockoutUntil
	}
	st.Attempts = 0
	st.LockoutUntil = until
	p.state = st

	// Expiry goes first so an interrupted write cannot drop an active lockout.
	p.write(ctx, domain.RecordLockoutUntil, strconv.FormatInt(st.LockoutUntil.UnixMilli(), 10))
	p.write(ctx, domain.RecordLockoutLevel, strconv.Itoa(st.Level))
	p.write(ctx, domain.RecordLockoutAttempts, "0")

	p.metrics.Lockout(st.Level)
	p.log.Warn("authentication locked out", "level", st.Level, "duration", FormatDuration(d))
	return Failure{
		Level:        st.Level,
		LockoutUntil: st.LockoutUntil,
		Triggered:    true,
		Duration:     d,
	}
}

// RecordSuccess resets attempts, level and any pending lockout.
func (p *Policy) RecordSuccess(ctx context.Context) {
	defer p.acquire(ctx)()
	p.state = domain.LockoutState{}
	p.remove(ctx, domain.RecordLockoutUntil)
	p.remove(ctx, domain.RecordLockoutLevel)
	p.remove(ctx, domain.RecordLockoutAttempts)
	p.metrics.LockoutCleared()
}

// IsLockedOut reports whether a lockout is pending at now.
func (p *Policy) IsLockedOut(ctx context.Context, now time.Time) bool {
	return p.State(ctx).Locked(now)
}

// RemainingTime returns how long the current lockout lasts past now.
func (p *Policy) RemainingTime(ctx context.Context, now time.Time) (time.Duration, bool) {
	st := p.State(ctx)
	if !st.Locked(now) {
		return 0, false
	}
	return st.LockoutUntil.Sub(now), true
}

// RemainingAttempts returns the failures left before the next lockout tier.
func (p *Policy) RemainingAttempts(ctx context.Context) int {
	return Threshold - p.State(ctx).Attempts
}

// State returns the persisted state as of now. It does not modify records.
func (p *Policy) State(ctx context.Context) domain.LockoutState {
	defer p.acquire(ctx)()
	p.loadLocked(ctx)
	return p.state
}

// Now returns the policy clock's current time.
func (p *Policy) Now() time.Time { return p.now() }

func clampLevel(level int) int {
	switch {
	case level < 0:
		return 0
	case level > len(tiers):
		return len(tiers)
	default:
		return level
	}
}

// readInt64 reads a numeric record. ok is false only when the store itself
// failed; a missing or corrupt record reads as zero.
func (p *Policy) readInt64(ctx context.Context, key domain.RecordKey) (n int64, ok bool) {
	v, found, err := p.records.Get(ctx, key)
	if err != nil {
		p.storeFailure("read", key, err)
		return 0, false
	}
	if !found || v == "" {
		return 0, true
	}
	n, err = strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.storeFailure("parse", key, err)
		return 0, true
	}
	return n, true
}

func (p *Policy) write(ctx context.Context, key domain.RecordKey, value string) {
	if err := p.records.Set(ctx, key, value); err != nil {
		p.storeFailure("write", key, err)
	}
}

func (p *Policy) remove(ctx context.Context, key domain.RecordKey) {
	if err := p.records.Delete(ctx, key); err != nil {
		p.storeFailure("delete", key, err)
	}
}

func (p *Policy) storeFailure(op string, key domain.RecordKey, err error) {
	p.metrics.StoreFailure("lockout")
	p.log.Error("lockout state "+op+" failed", "record", key.String(), "err", err)
}

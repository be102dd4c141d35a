package auth

import (
	"context"
	"time"
)

// Lockout defaults: two failed attempts for a username within a trailing five
// minute window lock further logins until the window slides past them.
const (
	DefaultLockoutWindow    = 5 * time.Minute
	DefaultLockoutThreshold = 2
)

// LockoutLedger is the slice of the login-attempt ledger the lockout policy
// reads (interface here to avoid a repository import cycle).
type LockoutLedger interface {
	// CountFailedAttempts counts failed attempts for username since the cutoff.
	CountFailedAttempts(ctx context.Context, username string, since time.Time) (int, error)
	// HasLockTrigger reports whether any attempt for username or from ip since
	// the cutoff carries the lock marker.
	HasLockTrigger(ctx context.Context, username, ip string, since time.Time) (bool, error)
}

// LockoutPolicy derives lock state from recent ledger entries. There is no
// persisted locked flag; state is a windowed query, so expiry is implicit once
// the window slides past the qualifying entries.
type LockoutPolicy struct {
	ledger    LockoutLedger
	window    time.Duration
	threshold int
	now       func() time.Time
}

// NewLockoutPolicy builds a policy over the given ledger. Zero window or
// threshold select the defaults.
func NewLockoutPolicy(ledger LockoutLedger, window time.Duration, threshold int) *LockoutPolicy {
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	return &LockoutPolicy{ledger: ledger, window: window, threshold: threshold, now: time.Now}
}

// WithClock replaces the policy's clock. Tests use this to simulate window
// expiry without sleeping.
func (p *LockoutPolicy) WithClock(now func() time.Time) *LockoutPolicy {
	p.now = now
	return p
}

// Cutoff returns the start of the current trailing window.
func (p *LockoutPolicy) Cutoff() time.Time {
	return p.now().Add(-p.window)
}

// Threshold returns the failed-attempt count at which a lock fires.
func (p *LockoutPolicy) Threshold() int {
	return p.threshold
}

// IsLocked reports whether logins for username, or from ip, are currently
// locked out: a lock-marked attempt for either within the window, or a
// window failure count for the username at or past the threshold.
func (p *LockoutPolicy) IsLocked(ctx context.Context, username, ip string) (bool, error) {
	cutoff := p.Cutoff()
	triggered, err := p.ledger.HasLockTrigger(ctx, username, ip, cutoff)
	if err != nil {
		return false, err
	}
	if triggered {
		return true, nil
	}
	failures, err := p.ledger.CountFailedAttempts(ctx, username, cutoff)
	if err != nil {
		return false, err
	}
	return failures >= p.threshold, nil
}

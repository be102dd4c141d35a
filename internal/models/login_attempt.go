package models

import "time"

// LoginAttempt is one row of the append-only login audit ledger. Rows are
// written exactly once per login call and never mutated; lock state is always
// derived from recent rows rather than stored on the account.
type LoginAttempt struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	IP        string    `json:"ip" db:"ip"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	// Succeeded is the credential-check outcome.
	Succeeded bool `json:"succeeded" db:"result"`
	// TriggeredLock marks the attempt that pushed the failure count to the
	// lockout threshold, or an attempt rejected while a lock was in force.
	TriggeredLock bool `json:"triggered_lock" db:"locked"`
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/credfort/credfort-backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when account creation hits the username
// uniqueness constraint.
var ErrDuplicateUsername = errors.New("username already taken")

// AccountRepository defines account data access methods.
type AccountRepository interface {
	// CreateAccount inserts a new account with empty history slots.
	CreateAccount(ctx context.Context, account *models.Account) error
	// GetAccountByUsername fetches the login projection: only the active hash
	// is loaded, never the history columns.
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	// GetAccountByID fetches the full row including history hashes.
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	// UpdatePasswords replaces the active hash and both history slots.
	UpdatePasswords(ctx context.Context, id, current, old1, old2 string) error
}

// LoginAttemptRepository is the append-only login audit ledger.
type LoginAttemptRepository interface {
	// RecordLoginAttempt appends one ledger row.
	RecordLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	// RecordFailedAttempt appends a failed row after counting window failures
	// for the same username in the same transaction. When the count including
	// this attempt reaches threshold, the row is written with the lock marker
	// and true is returned.
	RecordFailedAttempt(ctx context.Context, attempt *models.LoginAttempt, since time.Time, threshold int) (bool, error)
	// CountFailedAttempts counts failed rows for username at or after since.
	CountFailedAttempts(ctx context.Context, username string, since time.Time) (int, error)
	// HasLockTrigger reports whether a lock-marked row exists at or after since
	// for the username or the origin IP.
	HasLockTrigger(ctx context.Context, username, ip string, since time.Time) (bool, error)
	// ListLoginAttempts returns recent rows for a username, newest first.
	ListLoginAttempts(ctx context.Context, username string, since time.Time, limit int) ([]*models.LoginAttempt, error)
}

// SessionRepository defines server-side session storage.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// TouchSession refreshes last activity and expiry on access.
	TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) error
}

// Store aggregates all repositories behind one handle.
type Store interface {
	AccountRepository
	LoginAttemptRepository
	SessionRepository
	RunMigrations(migrationSQL string) error
	Close() error
}

// Package service contains the authentication core: it orchestrates the
// credential hasher, password policies, history guard, lockout policy, and the
// login-attempt ledger across register, login, and rotate-password operations.
// It is transport-agnostic; handlers map its tagged results to status codes.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/credfort/credfort-backend/internal/auth"
	"github.com/credfort/credfort-backend/internal/models"
	"github.com/credfort/credfort-backend/internal/repository"
)

// Status tags an operation outcome. Handlers switch on it exhaustively.
type Status int

const (
	StatusOK Status = iota
	StatusWeakPassword
	StatusDuplicateIdentity
	StatusInvalidCredentials
	StatusLocked
	StatusPasswordReused
	StatusUnauthenticated
	StatusStorageFailure
)

// String returns the status name, used in logs and metrics labels.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWeakPassword:
		return "weak_password"
	case StatusDuplicateIdentity:
		return "duplicate_identity"
	case StatusInvalidCredentials:
		return "invalid_credentials"
	case StatusLocked:
		return "locked"
	case StatusPasswordReused:
		return "password_reused"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "storage_failure"
	}
}

// Result is the tagged outcome of an authentication operation.
type Result struct {
	Status  Status
	Account *models.SanitizedAccount
	// NowLocked marks a failed login whose own attempt pushed the failure
	// count to the lockout threshold.
	NowLocked bool
}

func failure(status Status) Result { return Result{Status: status} }

// AuthService is the authentication core. All collaborators are injected so
// tests can substitute cheap hashers and fixed clocks.
type AuthService struct {
	store   repository.Store
	hasher  auth.Hasher
	history *auth.HistoryGuard
	lockout *auth.LockoutPolicy
	policy  auth.PasswordPolicy
	now     func() time.Time
}

// NewAuthService wires the core together.
func NewAuthService(store repository.Store, hasher auth.Hasher, lockout *auth.LockoutPolicy, policy auth.PasswordPolicy) *AuthService {
	return &AuthService{
		store:   store,
		hasher:  hasher,
		history: auth.NewHistoryGuard(hasher),
		lockout: lockout,
		policy:  policy,
		now:     time.Now,
	}
}

// WithClock replaces the service clock for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Register creates an account with empty password history.
func (s *AuthService) Register(ctx context.Context, username, password, name string) Result {
	if err := auth.ValidatePassword(password, s.policy); err != nil {
		return failure(StatusWeakPassword)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		log.Printf("register: hashing failed: %v", err)
		return failure(StatusStorageFailure)
	}

	account := &models.Account{
		Username:     username,
		PasswordHash: hashed,
		Name:         name,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return failure(StatusDuplicateIdentity)
		}
		log.Printf("register: store failure: %v", err)
		return failure(StatusStorageFailure)
	}

	return Result{Status: StatusOK, Account: account.Sanitized()}
}

// Login authenticates username/password from the given origin IP. Every call
// appends exactly one ledger row, whatever branch is taken. Absent accounts
// and wrong passwords share one failure path so callers cannot probe which
// usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) Result {
	locked, err := s.lockout.IsLocked(ctx, username, ip)
	if err != nil {
		// Ledger read failure: log and proceed unlocked rather than turning a
		// ledger outage into a login outage. The account lookup below fails
		// anyway if the whole store is down.
		log.Printf("login: lockout check failed: %v", err)
	}
	if locked {
		s.recordAttempt(ctx, &models.LoginAttempt{
			Username:      username,
			IP:            ip,
			Timestamp:     s.now(),
			Succeeded:     false,
			TriggeredLock: true,
		})
		return failure(StatusLocked)
	}

	account, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("login: account lookup failed: %v", err)
		s.recordAttempt(ctx, &models.LoginAttempt{Username: username, IP: ip, Timestamp: s.now()})
		return failure(StatusStorageFailure)
	}

	if account != nil {
		match, verr := s.hasher.Verify(account.PasswordHash, password)
		if verr != nil {
			// Corrupt stored hash is an internal failure, not a credential
			// mismatch; it still leaves a ledger row.
			log.Printf("login: stored hash unusable for user %s: %v", account.ID, verr)
			s.recordAttempt(ctx, &models.LoginAttempt{Username: username, IP: ip, Timestamp: s.now()})
			return failure(StatusStorageFailure)
		}
		if match {
			s.recordAttempt(ctx, &models.LoginAttempt{
				Username:  username,
				IP:        ip,
				Timestamp: s.now(),
				Succeeded: true,
			})
			return Result{Status: StatusOK, Account: account.Sanitized()}
		}
	}

	// Unknown username and wrong password land here identically.
	attempt := &models.LoginAttempt{Username: username, IP: ip, Timestamp: s.now()}
	tripped, err := s.store.RecordFailedAttempt(ctx, attempt, s.lockout.Cutoff(), s.lockout.Threshold())
	if err != nil {
		// Audit write failure must not change the credential outcome already
		// computed; log for operators and answer what the check warrants.
		log.Printf("login: ledger write failed: %v", err)
	}
	return Result{Status: StatusInvalidCredentials, NowLocked: tripped}
}

// RotatePassword replaces the caller's active password, shifting the two most
// recent hashes down the history. The caller's session identity is untouched:
// it never carried password fields.
func (s *AuthService) RotatePassword(ctx context.Context, userID, newPassword string) Result {
	if err := auth.ValidatePassword(newPassword, s.policy); err != nil {
		return failure(StatusWeakPassword)
	}

	// Full re-fetch including history; the session identity never carries it.
	account, err := s.store.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failure(StatusUnauthenticated)
		}
		log.Printf("rotate: account lookup failed: %v", err)
		return failure(StatusStorageFailure)
	}

	reused, err := s.history.IsReused(newPassword, account.PasswordHash, account.PasswordOld1, account.PasswordOld2)
	if err != nil {
		log.Printf("rotate: history check failed for user %s: %v", account.ID, err)
		return failure(StatusStorageFailure)
	}
	if reused {
		return failure(StatusPasswordReused)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		log.Printf("rotate: hashing failed: %v", err)
		return failure(StatusStorageFailure)
	}

	// Shift current -> old1 -> old2, dropping the oldest.
	if err := s.store.UpdatePasswords(ctx, account.ID, hashed, account.PasswordHash, account.PasswordOld1); err != nil {
		log.Printf("rotate: store failure: %v", err)
		return failure(StatusStorageFailure)
	}

	return Result{Status: StatusOK, Account: account.Sanitized()}
}

// RecentAttempts returns the ledger rows for a username over the trailing day,
// newest first. Operator/self-service visibility; the ledger itself stays
// append-only.
func (s *AuthService) RecentAttempts(ctx context.Context, username string) ([]*models.LoginAttempt, error) {
	return s.store.ListLoginAttempts(ctx, username, s.now().Add(-24*time.Hour), 50)
}

// recordAttempt appends a ledger row, logging failures without propagating
// them: the credential outcome is authoritative over audit availability.
func (s *AuthService) recordAttempt(ctx context.Context, attempt *models.LoginAttempt) {
	if err := s.store.RecordLoginAttempt(ctx, attempt); err != nil {
		log.Printf("login: ledger write failed: %v", err)
	}
}

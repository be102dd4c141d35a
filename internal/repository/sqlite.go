package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/credfort/credfort-backend/internal/models"
)

// SQLiteRepository implements Store using SQLite.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) the SQLite database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// An in-memory database exists per connection, so the pool must stay at one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// AccountRepository implementation

func (r *SQLiteRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, username, password, password_old1, password_old2, name)
		VALUES (?, ?, ?, '', '', ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.Name,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	// History columns stay out of the login projection.
	query := `SELECT id, username, password, name FROM users WHERE username = ?`

	err := r.db.GetContext(ctx, &account, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (r *SQLiteRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	query := `SELECT id, username, password, password_old1, password_old2, name FROM users WHERE id = ?`

	err := r.db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (r *SQLiteRepository) UpdatePasswords(ctx context.Context, id, current, old1, old2 string) error {
	query := `UPDATE users SET password = ?, password_old1 = ?, password_old2 = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, current, old1, old2, id)
	if err != nil {
		return fmt.Errorf("failed to update passwords: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

// LoginAttemptRepository implementation

func (r *SQLiteRepository) RecordLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, username, ip, timestamp, result, locked)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.Username,
		attempt.IP,
		attempt.Timestamp,
		attempt.Succeeded,
		attempt.TriggeredLock,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

// RecordFailedAttempt counts window failures and appends the new row in one
// transaction, so two concurrent failures cannot both read a sub-threshold
// count without one observing the other.
func (r *SQLiteRepository) RecordFailedAttempt(ctx context.Context, attempt *models.LoginAttempt, since time.Time, threshold int) (bool, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}
	attempt.Succeeded = false

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var failures int
	countQuery := `SELECT COUNT(*) FROM login_attempts WHERE username = ? AND result = ? AND timestamp >= ?`
	if err := tx.GetContext(ctx, &failures, countQuery, attempt.Username, false, since); err != nil {
		return false, fmt.Errorf("failed to count failed attempts: %w", err)
	}

	// This attempt is the (failures+1)-th failure in the window.
	attempt.TriggeredLock = failures+1 >= threshold

	insertQuery := `
		INSERT INTO login_attempts (id, username, ip, timestamp, result, locked)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		attempt.ID, attempt.Username, attempt.IP, attempt.Timestamp, attempt.Succeeded, attempt.TriggeredLock,
	); err != nil {
		return false, fmt.Errorf("failed to record failed attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit failed attempt: %w", err)
	}

	return attempt.TriggeredLock, nil
}

func (r *SQLiteRepository) CountFailedAttempts(ctx context.Context, username string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM login_attempts WHERE username = ? AND result = ? AND timestamp >= ?`

	if err := r.db.GetContext(ctx, &count, query, username, false, since); err != nil {
		return 0, fmt.Errorf("failed to count failed attempts: %w", err)
	}

	return count, nil
}

func (r *SQLiteRepository) HasLockTrigger(ctx context.Context, username, ip string, since time.Time) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE locked = ? AND timestamp >= ? AND (username = ? OR ip = ?)
	`

	if err := r.db.GetContext(ctx, &count, query, true, since, username, ip); err != nil {
		return false, fmt.Errorf("failed to query lock triggers: %w", err)
	}

	return count > 0, nil
}

func (r *SQLiteRepository) ListLoginAttempts(ctx context.Context, username string, since time.Time, limit int) ([]*models.LoginAttempt, error) {
	var attempts []*models.LoginAttempt
	query := `
		SELECT id, username, ip, timestamp, result, locked FROM login_attempts
		WHERE username = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	if err := r.db.SelectContext(ctx, &attempts, query, username, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}

	return attempts, nil
}

// SessionRepository implementation

func (r *SQLiteRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sessions (id, user_id, username, name, created_at, last_activity, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Username,
		session.Name,
		session.CreatedAt,
		session.LastActivity,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	query := `SELECT id, user_id, username, name, created_at, last_activity, expires_at FROM sessions WHERE id = ?`

	err := r.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (r *SQLiteRepository) TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	query := `UPDATE sessions SET last_activity = ?, expires_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, lastActivity, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) error {
	query := `DELETE FROM sessions WHERE expires_at < ?`

	_, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}

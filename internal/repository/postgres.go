package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/credfort/credfort-backend/internal/models"
)

// PostgresRepository implements Store using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository connects to PostgreSQL using the given connection string.
func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// AccountRepository implementation

func (r *PostgresRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, username, password, password_old1, password_old2, name)
		VALUES ($1, $2, $3, '', '', $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.Name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	query := `SELECT id, username, password, name FROM users WHERE username = $1`

	err := r.db.GetContext(ctx, &account, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (r *PostgresRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	query := `SELECT id, username, password, password_old1, password_old2, name FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (r *PostgresRepository) UpdatePasswords(ctx context.Context, id, current, old1, old2 string) error {
	query := `UPDATE users SET password = $1, password_old1 = $2, password_old2 = $3 WHERE id = $4`

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

func (r *PostgresRepository) RecordLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, username, ip, timestamp, result, locked)
		VALUES ($1, $2, $3, $4, $5, $6)
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

// RecordFailedAttempt counts window failures and appends the new row inside a
// serializable transaction, removing the concurrent read-then-write race at
// the cost of one extra round trip.
func (r *PostgresRepository) RecordFailedAttempt(ctx context.Context, attempt *models.LoginAttempt, since time.Time, threshold int) (bool, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}
	attempt.Succeeded = false

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var failures int
	countQuery := `SELECT COUNT(*) FROM login_attempts WHERE username = $1 AND result = $2 AND timestamp >= $3`
	if err := tx.GetContext(ctx, &failures, countQuery, attempt.Username, false, since); err != nil {
		return false, fmt.Errorf("failed to count failed attempts: %w", err)
	}

	attempt.TriggeredLock = failures+1 >= threshold

	insertQuery := `
		INSERT INTO login_attempts (id, username, ip, timestamp, result, locked)
		VALUES ($1, $2, $3, $4, $5, $6)
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

func (r *PostgresRepository) CountFailedAttempts(ctx context.Context, username string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM login_attempts WHERE username = $1 AND result = $2 AND timestamp >= $3`

	if err := r.db.GetContext(ctx, &count, query, username, false, since); err != nil {
		return 0, fmt.Errorf("failed to count failed attempts: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) HasLockTrigger(ctx context.Context, username, ip string, since time.Time) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE locked = $1 AND timestamp >= $2 AND (username = $3 OR ip = $4)
	`

	if err := r.db.GetContext(ctx, &count, query, true, since, username, ip); err != nil {
		return false, fmt.Errorf("failed to query lock triggers: %w", err)
	}

	return count > 0, nil
}

func (r *PostgresRepository) ListLoginAttempts(ctx context.Context, username string, since time.Time, limit int) ([]*models.LoginAttempt, error) {
	var attempts []*models.LoginAttempt
	query := `
		SELECT id, username, ip, timestamp, result, locked FROM login_attempts
		WHERE username = $1 AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	if err := r.db.SelectContext(ctx, &attempts, query, username, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}

	return attempts, nil
}

// SessionRepository implementation

func (r *PostgresRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sessions (id, user_id, username, name, created_at, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
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

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	query := `SELECT id, user_id, username, name, created_at, last_activity, expires_at FROM sessions WHERE id = $1`

	err := r.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (r *PostgresRepository) TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	query := `UPDATE sessions SET last_activity = $1, expires_at = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, lastActivity, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) error {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	_, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}

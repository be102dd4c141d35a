// Package session implements the server-side session store and its cookie
// transport. The cookie carries only a sealed opaque session handle; the
// sanitized identity lives in the sessions table.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/credfort/credfort-backend/internal/models"
	"github.com/credfort/credfort-backend/internal/repository"
)

// CookieName is the session cookie name.
const CookieName = "credfort_session"

// DefaultTTL is the session lifetime, refreshed on each authenticated access.
const DefaultTTL = 24 * time.Hour

// ErrNoSession reports that the request carries no valid, unexpired session.
var ErrNoSession = errors.New("no valid session")

// Manager issues, reads, and destroys sessions bound to HTTP callers.
type Manager struct {
	store  repository.SessionRepository
	sealer *Sealer
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager builds a session manager. Zero ttl selects DefaultTTL. secure
// controls the cookie's Secure attribute (off for plain-HTTP development).
func NewManager(store repository.SessionRepository, secret string, ttl time.Duration, secure bool) (*Manager, error) {
	sealer, err := NewSealer(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, sealer: sealer, ttl: ttl, secure: secure, now: time.Now}, nil
}

// WithClock replaces the manager's clock for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue creates a session row for the identity and sets the sealed cookie on
// the response.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, identity *models.SanitizedAccount) (*models.Session, error) {
	now := m.now()
	s := &models.Session{
		UserID:       identity.ID,
		Username:     identity.Username,
		Name:         identity.Name,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	sealed, err := m.sealer.Seal(s.ID)
	if err != nil {
		return nil, err
	}
	m.setCookie(w, sealed, int(m.ttl.Seconds()))
	return s, nil
}

// Current resolves the request's session. A hit refreshes the row's expiry and
// re-issues the cookie, so active sessions slide their 24h window forward.
// Missing, tampered, unknown, or expired sessions all yield ErrNoSession.
func (m *Manager) Current(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	id, err := m.sealer.Open(c.Value)
	if err != nil {
		return nil, ErrNoSession
	}
	s, err := m.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	now := m.now()
	if now.After(s.ExpiresAt) {
		return nil, ErrNoSession
	}
	s.LastActivity = now
	s.ExpiresAt = now.Add(m.ttl)
	if err := m.store.TouchSession(ctx, s.ID, s.LastActivity, s.ExpiresAt); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	sealed, err := m.sealer.Seal(s.ID)
	if err == nil {
		m.setCookie(w, sealed, int(m.ttl.Seconds()))
	}
	return s, nil
}

// Destroy deletes the request's session row, if any, and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer m.setCookie(w, "", -1)
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	id, err := m.sealer.Open(c.Value)
	if err != nil {
		return nil
	}
	return m.store.DeleteSession(ctx, id)
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

package rest

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/credfort/credfort-backend/internal/auth"
	"github.com/credfort/credfort-backend/internal/pkg/metrics"
	"github.com/credfort/credfort-backend/internal/service"
	"github.com/credfort/credfort-backend/internal/session"
)

// AuthHandler exposes the authentication core over HTTP. It owns request
// shape validation and the mapping from tagged service results to status
// codes; business rules stay in the service.
type AuthHandler struct {
	svc      *service.AuthService
	sessions *session.Manager
	policy   auth.PasswordPolicy

	loginLimiterMu sync.Mutex
	loginLimiters  map[string]*rate.Limiter // per-IP login limiters
	ratePerMin     int
	rateBurst      int
}

// NewAuthHandler creates an auth handler. ratePerMin 0 disables the per-IP
// login limiter.
func NewAuthHandler(svc *service.AuthService, sessions *session.Manager, policy auth.PasswordPolicy, ratePerMin, rateBurst int) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		sessions:      sessions,
		policy:        policy,
		loginLimiters: make(map[string]*rate.Limiter),
		ratePerMin:    ratePerMin,
		rateBurst:     rateBurst,
	}
}

// RegisterRequest is the body for POST /register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the body for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdatePasswordRequest is the body for PUT /updatePasswords.
type UpdatePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// PasswordStrengthRequest is the body for POST /password/strength.
type PasswordStrengthRequest struct {
	Password string `json:"password"`
}

// PasswordStrengthResponse reports a strength score without storing anything.
type PasswordStrengthResponse struct {
	Score       int    `json:"score"`
	Label       string `json:"label"`
	MeetsPolicy bool   `json:"meets_policy"`
}

// RegisterRoutes registers auth routes on the given router.
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.Register).Methods("POST")
	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/logout", h.Logout).Methods("GET")
	router.HandleFunc("/profile", h.Profile).Methods("GET")
	router.HandleFunc("/updatePasswords", h.UpdatePasswords).Methods("PUT")
	router.HandleFunc("/password/strength", h.PasswordStrength).Methods("POST")
	router.HandleFunc("/loginAttempts", h.LoginAttempts).Methods("GET")
}

// getIP extracts the client IP from the request.
func (h *AuthHandler) getIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		parts := strings.Split(ip, ",")
		if len(parts) > 0 {
			ip = strings.TrimSpace(parts[0])
		}
	}
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		ip = host
	}
	return ip
}

// getLoginLimiter returns or creates a rate limiter for the given IP.
func (h *AuthHandler) getLoginLimiter(ip string) *rate.Limiter {
	h.loginLimiterMu.Lock()
	defer h.loginLimiterMu.Unlock()
	limiter, ok := h.loginLimiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(h.ratePerMin)/60.0), h.rateBurst)
		h.loginLimiters[ip] = limiter
	}
	return limiter
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	res := h.svc.Register(r.Context(), req.Username, req.Password, req.Name)
	metrics.RegistrationsTotal.WithLabelValues(res.Status.String()).Inc()
	switch res.Status {
	case service.StatusOK:
		respondJSON(w, http.StatusOK, res.Account)
	case service.StatusWeakPassword:
		respondError(w, http.StatusBadRequest, msgWeakPassword)
	case service.StatusDuplicateIdentity:
		respondError(w, http.StatusBadRequest, msgDuplicateIdentity)
	default:
		respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	ip := h.getIP(r)
	if h.ratePerMin > 0 {
		// Per-IP request limiting sits in front of the core; a limited request
		// is not a credential attempt and leaves no ledger row.
		if !h.getLoginLimiter(ip).Allow() {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
			return
		}
	}

	res := h.svc.Login(r.Context(), req.Username, req.Password, ip)
	metrics.LoginAttemptsTotal.WithLabelValues(res.Status.String()).Inc()
	if res.NowLocked {
		metrics.LockoutsTriggeredTotal.Inc()
	}
	switch res.Status {
	case service.StatusOK:
		if _, err := h.sessions.Issue(r.Context(), w, res.Account); err != nil {
			respondError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		respondJSON(w, http.StatusOK, res.Account)
	case service.StatusInvalidCredentials:
		if res.NowLocked {
			respondError(w, http.StatusUnauthorized, msgNowLocked)
			return
		}
		respondError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case service.StatusLocked:
		respondError(w, http.StatusBadRequest, msgLocked)
	default:
		respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

// Logout handles GET /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Current(r.Context(), w, r); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			respondError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	respondText(w, http.StatusOK, "You have been logged out")
}

// Profile handles GET /profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Current(r.Context(), w, r)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			respondError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	respondJSON(w, http.StatusOK, s.Identity())
}

// UpdatePasswords handles PUT /updatePasswords.
func (h *AuthHandler) UpdatePasswords(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Current(r.Context(), w, r)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			respondError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "New password required")
		return
	}

	res := h.svc.RotatePassword(r.Context(), s.UserID, req.NewPassword)
	metrics.PasswordRotationsTotal.WithLabelValues(res.Status.String()).Inc()
	switch res.Status {
	case service.StatusOK:
		respondText(w, http.StatusOK, "Updated password success")
	case service.StatusWeakPassword:
		respondError(w, http.StatusBadRequest, msgWeakPassword)
	case service.StatusPasswordReused:
		respondError(w, http.StatusBadRequest, msgPasswordReused)
	case service.StatusUnauthenticated:
		respondError(w, http.StatusUnauthorized, msgUnauthenticated)
	default:
		respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

// PasswordStrength handles POST /password/strength. Advisory only: nothing is
// stored or checked against an account.
func (h *AuthHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req PasswordStrengthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	score := auth.CalculatePasswordStrength(req.Password)
	respondJSON(w, http.StatusOK, PasswordStrengthResponse{
		Score:       score,
		Label:       auth.GetPasswordStrengthLabel(score),
		MeetsPolicy: auth.ValidatePassword(req.Password, h.policy) == nil,
	})
}

// LoginAttempts handles GET /loginAttempts: the caller's own recent ledger
// rows, newest first.
func (h *AuthHandler) LoginAttempts(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Current(r.Context(), w, r)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			respondError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	attempts, err := h.svc.RecentAttempts(r.Context(), s.Username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	respondJSON(w, http.StatusOK, attempts)
}

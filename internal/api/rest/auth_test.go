package rest

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/credfort/credfort-backend/internal/auth"
	"github.com/credfort/credfort-backend/internal/repository"
	"github.com/credfort/credfort-backend/internal/service"
	"github.com/credfort/credfort-backend/internal/session"
	"github.com/credfort/credfort-backend/migrations"
)

func setupAuthRouter(t *testing.T, ratePerMin, rateBurst int) *mux.Router {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	sql, err := fs.ReadFile(migrations.FS, "001_initial_schema.sql")
	if err != nil {
		t.Fatalf("Failed to read migration: %v", err)
	}
	if err := repo.RunMigrations(string(sql)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	hasher := auth.NewArgon2Hasher(auth.Argon2Params{Memory: 1024, Time: 1, Threads: 1, SaltLength: 16, KeyLength: 32})
	lockout := auth.NewLockoutPolicy(repo, 5*time.Minute, 2)
	policy := auth.DefaultPasswordPolicy()
	svc := service.NewAuthService(repo, hasher, lockout, policy)

	sessions, err := session.NewManager(repo, "test-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("Failed to create session manager: %v", err)
	}

	router := mux.NewRouter()
	NewAuthHandler(svc, sessions, policy, ratePerMin, rateBurst).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:52000"
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func findSessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func loginAs(t *testing.T, router *mux.Router, username, password string) *http.Cookie {
	t.Helper()
	rec := doJSON(t, router, "POST", "/login", LoginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("Login failed with status %d: %s", rec.Code, rec.Body.String())
	}
	c := findSessionCookie(rec)
	if c == nil {
		t.Fatal("Login should set a session cookie")
	}
	return c
}

func TestRegisterEndpoint(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)

	rec := doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Register status = %d, body %s", rec.Code, rec.Body.String())
	}

	var account map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if account["username"] != "alice" || account["name"] != "Alice" {
		t.Errorf("Unexpected account body: %v", account)
	}
	// No credential material in the response.
	if strings.Contains(strings.ToLower(rec.Body.String()), "password") {
		t.Errorf("Response should not mention passwords: %s", rec.Body.String())
	}
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)

	cases := []struct {
		name string
		body RegisterRequest
		want string
	}{
		{"weak password", RegisterRequest{Username: "alice", Password: "weak1", Name: "Alice"}, msgWeakPassword},
		{"missing username", RegisterRequest{Password: "Passw0rd"}, "Username and password required"},
		{"missing password", RegisterRequest{Username: "alice"}, "Username and password required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/register", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", rec.Code)
			}
			if got := errorMessage(t, rec); got != tc.want {
				t.Errorf("Error = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRegisterEndpoint_Duplicate(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)

	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})
	rec := doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Different1", Name: "Other"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Duplicate register status = %d, want 400", rec.Code)
	}
	if got := errorMessage(t, rec); got != msgDuplicateIdentity {
		t.Errorf("Error = %q, want %q", got, msgDuplicateIdentity)
	}
}

func TestLoginEndpoint_SuccessSetsSession(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})

	cookie := loginAs(t, router, "alice", "Passw0rd")
	if !cookie.HttpOnly {
		t.Error("Session cookie should be HttpOnly")
	}

	rec := doJSON(t, router, "GET", "/profile", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("Profile status = %d, body %s", rec.Code, rec.Body.String())
	}
	var identity map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &identity); err != nil {
		t.Fatalf("Failed to decode profile: %v", err)
	}
	if identity["username"] != "alice" || identity["name"] != "Alice" {
		t.Errorf("Unexpected profile: %v", identity)
	}
}

func TestLoginEndpoint_LockoutSequence(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})

	// First wrong password: plain rejection.
	rec := doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Wrong1aaa"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("First failure status = %d, want 401", rec.Code)
	}
	if got := errorMessage(t, rec); got != msgInvalidCredentials {
		t.Errorf("First failure error = %q, want %q", got, msgInvalidCredentials)
	}

	// Second wrong password trips the lock; the rejection says so.
	rec = doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Wrong2aaa"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Second failure status = %d, want 401", rec.Code)
	}
	if got := errorMessage(t, rec); got != msgNowLocked {
		t.Errorf("Second failure error = %q, want %q", got, msgNowLocked)
	}

	// Correct credentials are refused while locked.
	rec = doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Passw0rd"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Locked login status = %d, want 400", rec.Code)
	}
	if got := errorMessage(t, rec); got != msgLocked {
		t.Errorf("Locked login error = %q, want %q", got, msgLocked)
	}
	if findSessionCookie(rec) != nil {
		t.Error("A locked login must not set a session cookie")
	}
}

func TestLoginEndpoint_UnknownUsernameIndistinguishable(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})

	wrongPass := doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Wrong1aaa"})
	unknown := doJSON(t, router, "POST", "/login", LoginRequest{Username: "ghost", Password: "Wrong1aaa"})

	if wrongPass.Code != unknown.Code {
		t.Errorf("Status codes differ: %d vs %d", wrongPass.Code, unknown.Code)
	}
	if errorMessage(t, wrongPass) != errorMessage(t, unknown) {
		t.Errorf("Error bodies differ: %q vs %q", errorMessage(t, wrongPass), errorMessage(t, unknown))
	}
}

func TestLoginEndpoint_RateLimited(t *testing.T) {
	router := setupAuthRouter(t, 5, 2)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})

	doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Wrong1aaa"})

	// Burst of 2 exhausted by the second request; third is turned away before
	// it reaches the credential path.
	doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Wrong2aaa"})
	rec := doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Wrong3aaa"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Third rapid login status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Rate-limited response should carry Retry-After")
	}
}

func TestProfileEndpoint_RequiresSession(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)

	rec := doJSON(t, router, "GET", "/profile", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Profile without session status = %d, want 401", rec.Code)
	}
	if got := errorMessage(t, rec); got != msgUnauthenticated {
		t.Errorf("Error = %q, want %q", got, msgUnauthenticated)
	}

	rec = doJSON(t, router, "GET", "/profile", nil, &http.Cookie{Name: session.CookieName, Value: "forged"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Profile with forged cookie status = %d, want 401", rec.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})
	cookie := loginAs(t, router, "alice", "Passw0rd")

	rec := doJSON(t, router, "GET", "/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("Logout status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "logged out") {
		t.Errorf("Unexpected logout body: %s", rec.Body.String())
	}

	// The old cookie no longer authenticates.
	rec = doJSON(t, router, "GET", "/profile", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Profile after logout status = %d, want 401", rec.Code)
	}
}

func TestLogoutEndpoint_RequiresSession(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)

	rec := doJSON(t, router, "GET", "/logout", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Logout without session status = %d, want 401", rec.Code)
	}
}

func TestUpdatePasswordsEndpoint(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Password1A", Name: "Alice"})
	cookie := loginAs(t, router, "alice", "Password1A")

	rec := doJSON(t, router, "PUT", "/updatePasswords", UpdatePasswordRequest{NewPassword: "Password2A"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Updated password success") {
		t.Errorf("Unexpected update body: %s", rec.Body.String())
	}

	// The session survives the rotation.
	if profRec := doJSON(t, router, "GET", "/profile", nil, cookie); profRec.Code != http.StatusOK {
		t.Errorf("Profile after rotation status = %d, want 200", profRec.Code)
	}

	// Old password out, new password in.
	old := doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Password1A"})
	if old.Code != http.StatusUnauthorized {
		t.Errorf("Old password login status = %d, want 401", old.Code)
	}
	loginAs(t, router, "alice", "Password2A")
}

func TestUpdatePasswordsEndpoint_RejectsReuse(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Password1A", Name: "Alice"})
	cookie := loginAs(t, router, "alice", "Password1A")

	rec := doJSON(t, router, "PUT", "/updatePasswords", UpdatePasswordRequest{NewPassword: "Password1A"}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Reuse status = %d, want 400", rec.Code)
	}
	if got := errorMessage(t, rec); got != msgPasswordReused {
		t.Errorf("Error = %q, want %q", got, msgPasswordReused)
	}
}

func TestUpdatePasswordsEndpoint_Validation(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Password1A", Name: "Alice"})
	cookie := loginAs(t, router, "alice", "Password1A")

	rec := doJSON(t, router, "PUT", "/updatePasswords", UpdatePasswordRequest{NewPassword: "weak"}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Weak password status = %d, want 400", rec.Code)
	}
	if got := errorMessage(t, rec); got != msgWeakPassword {
		t.Errorf("Error = %q, want %q", got, msgWeakPassword)
	}

	rec = doJSON(t, router, "PUT", "/updatePasswords", UpdatePasswordRequest{NewPassword: "Password2A"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Update without session status = %d, want 401", rec.Code)
	}
}

func TestPasswordStrengthEndpoint(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)

	rec := doJSON(t, router, "POST", "/password/strength", PasswordStrengthRequest{Password: "Str0ng!Passw0rd#"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Strength status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp PasswordStrengthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode strength response: %v", err)
	}
	if resp.Score < 80 || resp.Label != "Strong" || !resp.MeetsPolicy {
		t.Errorf("Unexpected strength response: %+v", resp)
	}

	rec = doJSON(t, router, "POST", "/password/strength", PasswordStrengthRequest{Password: "weak"})
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode strength response: %v", err)
	}
	if resp.MeetsPolicy {
		t.Error("A weak password should not meet policy")
	}
}

func TestLoginAttemptsEndpoint(t *testing.T) {
	router := setupAuthRouter(t, 0, 0)
	doJSON(t, router, "POST", "/register", RegisterRequest{Username: "alice", Password: "Passw0rd", Name: "Alice"})

	doJSON(t, router, "POST", "/login", LoginRequest{Username: "alice", Password: "Wrong1aaa"})
	cookie := loginAs(t, router, "alice", "Passw0rd")

	rec := doJSON(t, router, "GET", "/loginAttempts", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("LoginAttempts status = %d, body %s", rec.Code, rec.Body.String())
	}
	var attempts []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &attempts); err != nil {
		t.Fatalf("Failed to decode attempts: %v", err)
	}
	// One failure plus one success.
	if len(attempts) != 2 {
		t.Fatalf("Attempts = %d rows, want 2", len(attempts))
	}

	rec = doJSON(t, router, "GET", "/loginAttempts", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("LoginAttempts without session status = %d, want 401", rec.Code)
	}
}

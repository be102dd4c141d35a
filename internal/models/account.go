package models

// Account represents a registered user. PasswordHash is the active credential;
// PasswordOld1/PasswordOld2 hold the two hashes that preceded it, most recent
// first, and are empty until the first rotation.
type Account struct {
	ID           string `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password"`
	PasswordOld1 string `json:"-" db:"password_old1"`
	PasswordOld2 string `json:"-" db:"password_old2"`
	Name         string `json:"name" db:"name"`
}

// Sanitized returns the account projection safe to place in a session or
// response body: all password-hash fields stripped.
func (a *Account) Sanitized() *SanitizedAccount {
	return &SanitizedAccount{
		ID:       a.ID,
		Username: a.Username,
		Name:     a.Name,
	}
}

// SanitizedAccount is the identity bound to a session and returned to callers.
type SanitizedAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

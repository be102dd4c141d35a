package auth

import (
	"errors"
	"unicode"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumbers   bool
}

// DefaultPasswordPolicy returns the policy enforced at registration and
// rotation: at least 8 characters with an uppercase letter, a lowercase letter,
// and a digit.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
	}
}

// ErrWeakPassword reports a password that fails the strength policy.
var ErrWeakPassword = errors.New("password not strong enough")

// ValidatePassword checks password against policy. It runs before any hashing
// so rejected inputs never pay the argon2 cost.
func ValidatePassword(password string, policy PasswordPolicy) error {
	if len(password) < policy.MinLength {
		return ErrWeakPassword
	}
	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if policy.RequireUppercase && !hasUpper {
		return ErrWeakPassword
	}
	if policy.RequireLowercase && !hasLower {
		return ErrWeakPassword
	}
	if policy.RequireNumbers && !hasNumber {
		return ErrWeakPassword
	}
	return nil
}

// CalculatePasswordStrength returns a strength score (0-100) for a password.
func CalculatePasswordStrength(password string) int {
	score := 0

	// Length contribution (max 40 points)
	if len(password) >= 8 {
		score += 20
	}
	if len(password) >= 12 {
		score += 10
	}
	if len(password) >= 16 {
		score += 10
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		default:
			hasSpecial = true
		}
	}

	// Character variety (max 40 points)
	varietyCount := 0
	if hasUpper {
		varietyCount++
	}
	if hasLower {
		varietyCount++
	}
	if hasNumber {
		varietyCount++
	}
	if hasSpecial {
		varietyCount++
	}
	score += varietyCount * 10

	// Complexity bonus (max 20 points)
	if len(password) >= 12 && varietyCount >= 3 {
		score += 10
	}
	if len(password) >= 16 && varietyCount >= 4 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// GetPasswordStrengthLabel returns a human-readable strength label.
func GetPasswordStrengthLabel(strength int) string {
	switch {
	case strength < 30:
		return "Weak"
	case strength < 60:
		return "Fair"
	case strength < 80:
		return "Good"
	default:
		return "Strong"
	}
}

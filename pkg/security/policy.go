package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MinMasterPasswordLength is the minimum accepted master password length.
// The master password protects every other credential, so the bar is far
// higher than for stored entry passwords.
const MinMasterPasswordLength = 15

// ErrWeakPassword indicates a master password that fails the vault policy.
var ErrWeakPassword = errors.New("security: master password too weak")

// weakPasswords are widely used passwords rejected outright regardless of
// composition. Matching is case-insensitive.
var weakPasswords = []string{
	"password",
	"password1",
	"password123",
	"password123456789",
	"123456789012345",
	"1234567890123456",
	"qwertyuiopasdfgh",
	"qwerty123456789!",
	"letmein12345678!",
	"administrator123",
	"iloveyou12345678",
	"welcome123456789",
	"masterpassword123",
	"trustno1trustno1",
	"passw0rdpassw0rd",
	"abc123abc123abc123",
	"sunshine12345678",
	"princess12345678",
	"password!password",
	"passwordpassword",
	"changeme12345678",
	"supersecretpassword",
	"thisismypassword",
	"mysecretpassword",
	"secretsecretsecret",
	"defaultpassword1",
	"temporarypassword",
	"rememberme123456",
}

// ValidateMasterPassword enforces the vault's master password policy:
// at least MinMasterPasswordLength characters, all four character classes
// present, and not on the weak-password list. A nil return means the
// password is acceptable; otherwise the error wraps ErrWeakPassword and
// names every failed rule.
func ValidateMasterPassword(password string) error {
	var problems []string

	if len(password) < MinMasterPasswordLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinMasterPasswordLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "must contain a digit")
	}
	if !hasSpecial {
		problems = append(problems, "must contain a special character")
	}

	lower := strings.ToLower(password)
	for _, weak := range weakPasswords {
		if lower == weak {
			problems = append(problems, "is a commonly used password")
			break
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(problems, "; "))
	}
	return nil
}

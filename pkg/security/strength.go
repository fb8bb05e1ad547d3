// Package security implements the password policy layer for the vault:
// master-password validation, strength scoring, secure generation, and
// breach lookups.
package security

// PasswordStrength represents the strength level of a stored password.
type PasswordStrength int

const (
	// PasswordWeak indicates an insecure password.
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// String returns a human-readable representation of the password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Points returns the score points for this strength level, used by the
// vault health report: Weak=0, Fair=8, Good=17, Strong=25.
func (s PasswordStrength) Points() int {
	switch s {
	case PasswordWeak:
		return 0
	case PasswordFair:
		return 8
	case PasswordGood:
		return 17
	case PasswordStrong:
		return 25
	default:
		return 0
	}
}

// Strength evaluates a stored entry password.
// Length is the primary factor per NIST SP 800-63B guidelines: no
// composition rules, focus on length and avoiding compromised passwords.
func Strength(value string) PasswordStrength {
	switch length := len(value); {
	case length >= 20:
		return PasswordStrong
	case length >= 14:
		return PasswordGood
	case length >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

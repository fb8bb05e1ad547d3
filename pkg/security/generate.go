package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Character set constants for password generation.
const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// MinGeneratedLength is the shortest password Generate will produce.
	MinGeneratedLength = 15
	// MaxGeneratedLength bounds runaway length requests.
	MaxGeneratedLength = 128
	// DefaultGeneratedLength is used when the caller passes zero.
	DefaultGeneratedLength = 20

	// maxGenerateAttempts bounds the resample loop that guarantees every
	// enabled character class appears at least once.
	maxGenerateAttempts = 100
)

// ErrEmptyCharset indicates the option flags excluded every character class.
var ErrEmptyCharset = errors.New("security: character set is empty, enable at least one character class")

// GenerateOptions controls password generation. The zero value produces a
// DefaultGeneratedLength password drawing from all four character classes.
type GenerateOptions struct {
	// Length of the generated password; 0 means DefaultGeneratedLength.
	Length int

	// Class toggles; a disabled class is excluded from the charset and
	// from the every-class guarantee.
	NoLowercase bool
	NoUppercase bool
	NoDigits    bool
	NoSymbols   bool

	// Exclude removes individual characters (for example ambiguous ones
	// like "0O1lI") from the charset.
	Exclude string
}

// Generate produces a cryptographically secure random password.
//
// The result always contains at least one character from every enabled
// class, matching what a user expects from a "secure password" button: a
// candidate missing a class is discarded and redrawn.
func Generate(opts GenerateOptions) (string, error) {
	length := opts.Length
	if length == 0 {
		length = DefaultGeneratedLength
	}
	if length < MinGeneratedLength {
		return "", fmt.Errorf("security: password length must be at least %d characters", MinGeneratedLength)
	}
	if length > MaxGeneratedLength {
		return "", fmt.Errorf("security: password length must be at most %d characters", MaxGeneratedLength)
	}

	classes := enabledClasses(opts)
	charset := strings.Join(classes, "")
	if opts.Exclude != "" {
		charset = removeChars(charset, opts.Exclude)
		for i, class := range classes {
			classes[i] = removeChars(class, opts.Exclude)
		}
	}
	if charset == "" {
		return "", ErrEmptyCharset
	}
	for _, class := range classes {
		if class == "" {
			return "", fmt.Errorf("security: exclude list removed an entire character class")
		}
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		candidate, err := randomString(charset, length)
		if err != nil {
			return "", err
		}
		if containsAll(candidate, classes) {
			return candidate, nil
		}
	}
	// Statistically unreachable for length >= MinGeneratedLength.
	return "", fmt.Errorf("security: failed to generate a password containing all character classes")
}

// enabledClasses returns the character classes allowed by the options.
func enabledClasses(opts GenerateOptions) []string {
	var classes []string
	if !opts.NoLowercase {
		classes = append(classes, charsetLowercase)
	}
	if !opts.NoUppercase {
		classes = append(classes, charsetUppercase)
	}
	if !opts.NoDigits {
		classes = append(classes, charsetDigits)
	}
	if !opts.NoSymbols {
		classes = append(classes, charsetSymbols)
	}
	return classes
}

// randomString draws length characters uniformly from charset.
func randomString(charset string, length int) (string, error) {
	charsetLen := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("security: failed to generate random number: %w", err)
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}

// containsAll reports whether s has at least one character from each class.
func containsAll(s string, classes []string) bool {
	for _, class := range classes {
		if !strings.ContainsAny(s, class) {
			return false
		}
	}
	return true
}

// removeChars removes every rune of chars from s.
func removeChars(s, chars string) string {
	var b strings.Builder
	for _, c := range s {
		if !strings.ContainsRune(chars, c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

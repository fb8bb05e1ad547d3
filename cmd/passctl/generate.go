package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mossfield13/passctl/pkg/engine"
	"github.com/mossfield13/passctl/pkg/security"
	"github.com/spf13/cobra"
)

// Generate command flags
var (
	generateLength      int
	generateNoSymbols   bool
	generateNoDigits    bool
	generateNoUppercase bool
	generateNoLowercase bool
	generateExclude     string
	generateCopy        bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&generateLength, "length", "l", security.DefaultGeneratedLength,
		fmt.Sprintf("Password length (%d-%d)", security.MinGeneratedLength, security.MaxGeneratedLength))
	generateCmd.Flags().BoolVar(&generateNoSymbols, "no-symbols", false, "Exclude symbols")
	generateCmd.Flags().BoolVar(&generateNoDigits, "no-digits", false, "Exclude digits")
	generateCmd.Flags().BoolVar(&generateNoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&generateNoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	generateCmd.Flags().StringVar(&generateExclude, "exclude", "", "Characters to exclude")
	generateCmd.Flags().BoolVarP(&generateCopy, "copy", "c", false, "Copy password to clipboard (accessible to all processes)")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a strong random password",
	Long: `Generate a cryptographically secure random password.

The password always contains at least one character from every enabled
character class.

Examples:
  # Generate a 20-character password (default)
  passctl generate

  # Generate a 32-character password without symbols
  passctl generate -l 32 --no-symbols

  # Generate and copy to clipboard
  passctl generate -c

  # Generate a password excluding ambiguous characters
  passctl generate --exclude "0O1lI"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := eng.GeneratePassword(cmd.Context(), engine.GeneratePasswordRequest{
			Length:      generateLength,
			NoLowercase: generateNoLowercase,
			NoUppercase: generateNoUppercase,
			NoDigits:    generateNoDigits,
			NoSymbols:   generateNoSymbols,
			Exclude:     generateExclude,
		})
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}

		fmt.Println(resp.Password)
		fmt.Fprintf(os.Stderr, "Strength: %s\n", resp.Strength)

		if generateCopy {
			if err := copyToClipboard(resp.Password); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to copy to clipboard: %v\n", err)
			} else {
				fmt.Fprintln(os.Stderr, "Password copied to clipboard")
			}
		}

		return nil
	},
}

// copyToClipboard copies text to the system clipboard
func copyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		// Try xclip first, then xsel
		if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else if _, err := exec.LookPath("xsel"); err == nil {
			cmd = exec.Command("xsel", "--clipboard", "--input")
		} else {
			return fmt.Errorf("clipboard tool not found: install xclip or xsel")
		}
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

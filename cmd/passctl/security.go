package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mossfield13/passctl/pkg/security"
	"github.com/spf13/cobra"
)

// Security command flags
var (
	securityVerbose bool
	securityJSON    bool
)

// maxIssuesShown caps the issue list unless --verbose is set.
const maxIssuesShown = 5

func init() {
	rootCmd.AddCommand(securityCmd)
	rootCmd.AddCommand(breachCmd)

	securityCmd.Flags().BoolVarP(&securityVerbose, "verbose", "v", false, "Show every issue and suggestion")
	securityCmd.Flags().BoolVar(&securityJSON, "json", false, "Output in JSON format")
}

// securityCmd reports vault health
var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Analyze vault security health",
	Long: `Analyze the security health of your vault and get recommendations.

The security score is calculated from:
  - Strength (0-25): Average password strength
  - Uniqueness (0-25): Share of unique passwords
  - Freshness (0-25): Share of passwords updated within 180 days
  - TOTP Coverage (0-25): Share of entries with a second factor

Example:
  passctl security            # Show score and top issues
  passctl security --verbose  # Show every issue and suggestion
  passctl security --json     # Output in JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		report, err := eng.SecurityReport(cmd.Context(), token)
		if err != nil {
			return fmt.Errorf("failed to build security report: %w", err)
		}

		if securityJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		printSecurityReport(report, securityVerbose)
		return nil
	},
}

// printSecurityReport renders the report as formatted text.
func printSecurityReport(report *security.Report, verbose bool) {
	var rating string
	switch {
	case report.Overall >= 90:
		rating = "Excellent"
	case report.Overall >= 70:
		rating = "Good"
	case report.Overall >= 50:
		rating = "Fair"
	default:
		rating = "Needs Attention"
	}

	fmt.Printf("Security Score: %d/100 (%s)\n", report.Overall, rating)
	fmt.Printf("Entries evaluated: %d\n\n", report.EntryCount)

	fmt.Println("Components:")
	fmt.Printf("  Strength:      %2d/25 %s\n", report.Components.Strength, progressBar(report.Components.Strength, 25))
	fmt.Printf("  Uniqueness:    %2d/25 %s\n", report.Components.Uniqueness, progressBar(report.Components.Uniqueness, 25))
	fmt.Printf("  Freshness:     %2d/25 %s\n", report.Components.Freshness, progressBar(report.Components.Freshness, 25))
	fmt.Printf("  TOTP coverage: %2d/25 %s\n", report.Components.TotpCoverage, progressBar(report.Components.TotpCoverage, 25))
	fmt.Println()

	if len(report.Issues) > 0 {
		issues := report.Issues
		if !verbose && len(issues) > maxIssuesShown {
			issues = issues[:maxIssuesShown]
		}
		fmt.Printf("⚠️  Issues (%d):\n", len(report.Issues))
		for i, issue := range issues {
			label := strings.ToUpper(string(issue.Type))
			name := issue.EntryName
			if name == "" && len(issue.EntryNames) > 0 {
				name = strings.Join(issue.EntryNames, ", ")
			}
			fmt.Printf("  %d. [%s] %s: %s\n", i+1, label, name, issue.Description)
		}
		if hidden := len(report.Issues) - len(issues); hidden > 0 {
			fmt.Printf("  (%d more, use --verbose to show all)\n", hidden)
		}
		fmt.Println()
	}

	if verbose && len(report.Suggestions) > 0 {
		fmt.Println("💡 Suggestions:")
		for _, suggestion := range report.Suggestions {
			fmt.Printf("  - %s\n", suggestion)
		}
	}
}

// progressBar creates a simple ASCII progress bar.
func progressBar(value, maxVal int) string {
	width := 20
	filled := value * width / maxVal
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// breachCmd checks a password against known breach data
var breachCmd = &cobra.Command{
	Use:   "breach",
	Short: "Check a password against known data breaches",
	Long: `Check whether a password appears in known data breaches.

Only the first five characters of the password's SHA-1 hash leave this
machine (k-anonymity range query); the password itself is never sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Enter password to check: ")
		if err != nil {
			return err
		}

		result, err := eng.CheckPasswordBreach(cmd.Context(), password)
		if err != nil {
			return fmt.Errorf("breach check failed: %w", err)
		}

		if result.Breached {
			fmt.Printf("Password was seen %d times in known breaches. Do not use it.\n", result.Count)
			return nil
		}
		fmt.Println("Password not found in any known breach.")
		return nil
	},
}

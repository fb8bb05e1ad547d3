package security

import (
	"sort"
	"strconv"
	"time"
)

// StaleAfter is the age at which a password counts as stale in the health
// report.
const StaleAfter = 180 * 24 * time.Hour

// Report is the overall security assessment of a vault.
type Report struct {
	// Overall is the total score (0-100).
	Overall int `json:"overall"`
	// Components breaks down the score into categories.
	Components ReportComponents `json:"components"`
	// Issues contains the detected security issues.
	Issues []Issue `json:"issues"`
	// Suggestions provides actionable recommendations.
	Suggestions []string `json:"suggestions"`
	// EntryCount is the number of entries evaluated.
	EntryCount int `json:"entry_count"`
}

// ReportComponents breaks down the security score into categories.
// Each component contributes up to 25 points (total: 100).
type ReportComponents struct {
	// Strength reflects average password strength.
	Strength int `json:"strength"`
	// Uniqueness reflects the share of unique passwords.
	Uniqueness int `json:"uniqueness"`
	// Freshness reflects the share of passwords updated within StaleAfter.
	Freshness int `json:"freshness"`
	// TotpCoverage reflects the share of entries with a TOTP secret.
	TotpCoverage int `json:"totp_coverage"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakPassword indicates a password with insufficient strength.
	IssueWeakPassword IssueType = "weak"
	// IssueReusedPassword indicates a password shared across entries.
	IssueReusedPassword IssueType = "reused"
	// IssueStalePassword indicates a password unchanged for too long.
	IssueStalePassword IssueType = "stale"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	// SeverityCritical requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityWarning should be addressed soon.
	SeverityWarning Severity = "warning"
)

// Issue represents a detected security problem.
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	// EntryName is the affected entry.
	EntryName string `json:"entry_name,omitempty"`
	// EntryNames is used for reuse issues spanning multiple entries.
	EntryNames  []string `json:"entry_names,omitempty"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// ReportEntry is the decrypted view of one entry that the report needs.
// The caller owns decryption; nothing in this package touches storage.
type ReportEntry struct {
	Name      string
	Password  string
	HasTOTP   bool
	UpdatedAt time.Time
}

// BuildReport computes the vault health report over decrypted entries.
// An empty vault scores a perfect 100.
func BuildReport(entries []ReportEntry, now time.Time) *Report {
	if len(entries) == 0 {
		return &Report{
			Overall:     100,
			Components:  ReportComponents{Strength: 25, Uniqueness: 25, Freshness: 25, TotpCoverage: 25},
			Issues:      []Issue{},
			Suggestions: []string{},
		}
	}

	strength, weakIssues := strengthComponent(entries)
	uniqueness, reuseIssues := uniquenessComponent(entries)
	freshness, staleIssues := freshnessComponent(entries, now)
	coverage := totpComponent(entries)

	issues := make([]Issue, 0, len(weakIssues)+len(reuseIssues)+len(staleIssues))
	issues = append(issues, weakIssues...)
	issues = append(issues, reuseIssues...)
	issues = append(issues, staleIssues...)

	return &Report{
		Overall:     strength + uniqueness + freshness + coverage,
		Components:  ReportComponents{Strength: strength, Uniqueness: uniqueness, Freshness: freshness, TotpCoverage: coverage},
		Issues:      issues,
		Suggestions: buildSuggestions(issues),
		EntryCount:  len(entries),
	}
}

// strengthComponent averages password strength, scaled to 0-25.
func strengthComponent(entries []ReportEntry) (int, []Issue) {
	var issues []Issue
	totalPoints := 0

	for _, e := range entries {
		strength := Strength(e.Password)
		totalPoints += strength.Points()

		if strength == PasswordWeak {
			issues = append(issues, Issue{
				Type:        IssueWeakPassword,
				Severity:    SeverityWarning,
				EntryName:   e.Name,
				Description: "Password has insufficient strength",
				Suggestion:  "Use a longer password (14+ characters recommended)",
			})
		}
	}

	score := totalPoints / len(entries)
	if score > 25 {
		score = 25
	}
	return score, issues
}

// uniquenessComponent measures password reuse across entries.
func uniquenessComponent(entries []ReportEntry) (int, []Issue) {
	byPassword := make(map[string][]string)
	for _, e := range entries {
		byPassword[e.Password] = append(byPassword[e.Password], e.Name)
	}

	var issues []Issue
	for _, names := range byPassword {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		issues = append(issues, Issue{
			Type:        IssueReusedPassword,
			Severity:    SeverityWarning,
			EntryNames:  names,
			Description: strconv.Itoa(len(names)) + " entries share the same password",
			Suggestion:  "Use a unique password for each entry",
		})
	}
	// Deterministic ordering for display and tests.
	sort.Slice(issues, func(i, j int) bool { return issues[i].EntryNames[0] < issues[j].EntryNames[0] })

	ratio := float64(len(byPassword)) / float64(len(entries))
	return int(ratio * 25), issues
}

// freshnessComponent measures how many passwords were updated recently.
func freshnessComponent(entries []ReportEntry, now time.Time) (int, []Issue) {
	var issues []Issue
	fresh := 0

	for _, e := range entries {
		age := now.Sub(e.UpdatedAt)
		if age <= StaleAfter {
			fresh++
			continue
		}
		days := int(age.Hours() / 24)
		issues = append(issues, Issue{
			Type:        IssueStalePassword,
			Severity:    SeverityWarning,
			EntryName:   e.Name,
			Description: "Password unchanged for " + strconv.Itoa(days) + " days",
			Suggestion:  "Rotate long-lived passwords",
		})
	}

	ratio := float64(fresh) / float64(len(entries))
	return int(ratio * 25), issues
}

// totpComponent measures how many entries carry a second factor.
func totpComponent(entries []ReportEntry) int {
	withTOTP := 0
	for _, e := range entries {
		if e.HasTOTP {
			withTOTP++
		}
	}
	ratio := float64(withTOTP) / float64(len(entries))
	return int(ratio * 25)
}

// buildSuggestions creates actionable recommendations based on issues.
func buildSuggestions(issues []Issue) []string {
	var hasWeak, hasReused, hasStale bool
	for _, issue := range issues {
		switch issue.Type {
		case IssueWeakPassword:
			hasWeak = true
		case IssueReusedPassword:
			hasReused = true
		case IssueStalePassword:
			hasStale = true
		}
	}

	suggestions := make([]string, 0, 3)
	if hasWeak {
		suggestions = append(suggestions, "Update weak passwords with stronger alternatives (14+ characters)")
	}
	if hasReused {
		suggestions = append(suggestions, "Replace reused passwords with unique values")
	}
	if hasStale {
		suggestions = append(suggestions, "Rotate passwords that have not changed in six months")
	}
	return suggestions
}

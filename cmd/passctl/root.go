// Package main provides the passctl CLI commands.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/mossfield13/passctl/internal/cli"
	"github.com/mossfield13/passctl/internal/config"
	"github.com/mossfield13/passctl/pkg/engine"
	"github.com/mossfield13/passctl/pkg/session"
	"github.com/mossfield13/passctl/pkg/vault"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	homeFlag string

	cfg      *config.Config
	store    *vault.Store
	sessions *session.Manager
	eng      *engine.Engine
)

var rootCmd = &cobra.Command{
	Use:   "passctl",
	Short: "passctl is a local encrypted password vault",
	Long:  `A local-first password manager built with Go.`,
	// PersistentPreRunE runs before the root command and all subcommands.
	// It wires config, storage, and the engine. Every invocation is a
	// fresh process: commands unlock, do their work, and log out again.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(homeFlag)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
		slog.SetDefault(logger)

		if err := os.MkdirAll(cfg.Home, 0700); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}

		store, err = vault.Open(cmd.Context(), cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open vault: %w", err)
		}
		sessions = session.NewManager(cfg.SessionTimeout)
		eng = engine.New(store, sessions, cfg.BackupDir, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if eng != nil {
			_ = eng.Close()
		}
	},
}

// Entry flags for add command
var (
	addURL      string
	addUsername string
	addPassword string
	addNotes    string
	addTOTP     string
	addFields   []string // --field name=value (can be repeated)
	addFavorite bool
)

// Entry flags for update command
var (
	updateSite           string
	updateURL            string
	updateUsername       string
	updatePassword       string
	updatePromptPassword bool
	updateNotes          string
	updateTOTP           string
	updateFields         []string
	updateFavorite       bool
)

// List flags
var (
	listFilter string
	listReveal bool
)

// Delete flags
var (
	deleteForce bool
)

// Audit flags
var (
	auditLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Vault directory (default: ~/.passctl, or $PASSCTL_HOME)")

	// Add subcommands to rootCmd
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(totpCmd)
	rootCmd.AddCommand(auditCmd)

	// Add entry flags to add command
	addCmd.Flags().StringVar(&addURL, "url", "", "Site URL")
	addCmd.Flags().StringVarP(&addUsername, "username", "u", "", "Username or login email")
	addCmd.Flags().StringVarP(&addPassword, "password", "p", "", "Entry password (prompted when omitted)")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")
	addCmd.Flags().StringVar(&addTOTP, "totp", "", "TOTP secret (base32)")
	addCmd.Flags().StringArrayVar(&addFields, "field", nil, "Custom field (name=value, can be repeated)")
	addCmd.Flags().BoolVar(&addFavorite, "favorite", false, "Mark entry as favorite")

	// Add entry flags to update command
	updateCmd.Flags().StringVar(&updateSite, "site", "", "New site name")
	updateCmd.Flags().StringVar(&updateURL, "url", "", "New site URL (empty clears)")
	updateCmd.Flags().StringVarP(&updateUsername, "username", "u", "", "New username")
	updateCmd.Flags().StringVarP(&updatePassword, "password", "p", "", "New entry password")
	updateCmd.Flags().BoolVar(&updatePromptPassword, "prompt-password", false, "Prompt for the new password instead of passing it as a flag")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "", "New notes (empty clears)")
	updateCmd.Flags().StringVar(&updateTOTP, "totp", "", "New TOTP secret (empty clears)")
	updateCmd.Flags().StringArrayVar(&updateFields, "field", nil, "Replace custom fields (name=value, can be repeated)")
	updateCmd.Flags().BoolVar(&updateFavorite, "favorite", false, "Set or clear the favorite marker")

	// Add flags to list command
	listCmd.Flags().StringVar(&listFilter, "filter", "", "Filter by site name (glob pattern supported)")
	listCmd.Flags().BoolVar(&listReveal, "reveal", false, "Show passwords and full entry details")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")

	// Add audit subcommands
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)

	auditListCmd.Flags().IntVar(&auditLimit, "limit", engine.DefaultAuditLimit, "Maximum number of records to show")
}

// initCmd initializes a new vault
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new password vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Initializing new vault...")

		// 1. Prompt for master password
		password1, err := readPassword("Enter master password: ")
		if err != nil {
			return err
		}

		// 2. Confirm password
		password2, err := readPassword("Confirm master password: ")
		if err != nil {
			return err
		}

		// 3. Check passwords match
		if password1 != password2 {
			return fmt.Errorf("passwords do not match")
		}

		// 4. Initialize vault (strength policy is enforced by the engine)
		if _, err := eng.Init(cmd.Context(), engine.InitRequest{MasterPassword: password1}, engine.Meta{}); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		fmt.Printf("Vault initialized successfully at %s\n", cfg.DBPath)
		return nil
	},
}

// statusCmd reports whether the vault exists yet
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := eng.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read vault status: %w", err)
		}

		fmt.Printf("Vault path:  %s\n", cfg.DBPath)
		fmt.Printf("Backup dir:  %s\n", cfg.BackupDir)
		if status.Initialized {
			fmt.Println("Initialized: yes")
		} else {
			fmt.Println("Initialized: no (run 'passctl init')")
		}
		return nil
	},
}

// addCmd creates a new entry
var addCmd = &cobra.Command{
	Use:   "add <site>",
	Short: "Add a new entry to the vault",
	Long: `Add a new credential entry to the vault.

Examples:
  # Add an entry, prompting for the password
  passctl add github.com -u alice

  # Add an entry with URL and TOTP secret
  passctl add github.com -u alice --url https://github.com --totp JBSWY3DPEHPK3PXP

  # Add an entry with custom fields
  passctl add bank.example.com -u alice --field pin=1234 --field "branch=Main St"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		customFields, err := parseCustomFields(addFields)
		if err != nil {
			return err
		}

		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		password := addPassword
		if password == "" {
			password, err = readPassword("Enter entry password: ")
			if err != nil {
				return err
			}
		}

		entry, err := eng.CreateEntry(cmd.Context(), token, engine.CreateEntryRequest{
			SiteName:     args[0],
			URL:          addURL,
			Username:     addUsername,
			Password:     password,
			Notes:        addNotes,
			TOTPSecret:   addTOTP,
			CustomFields: customFields,
			Favorite:     addFavorite,
		}, engine.Meta{})
		if err != nil {
			return fmt.Errorf("failed to add entry: %w", err)
		}

		fmt.Printf("Entry '%s' added successfully (id: %s)\n", entry.SiteName, entry.ID)
		return nil
	},
}

// listCmd lists vault entries
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List vault entries",
	Long: `List vault entries, optionally filtered by site name.

Examples:
  # List all entries
  passctl list

  # List entries whose site name matches a glob
  passctl list --filter "git*"

  # Show full details, including passwords
  passctl list --filter github.com --reveal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := cli.NewSiteFilter(listFilter)
		if err != nil {
			return err
		}

		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		entries, err := eng.ListEntries(cmd.Context(), token, engine.Meta{})
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		var matched []*engine.EntryView
		for _, entry := range entries {
			if filter.Match(entry.SiteName) {
				matched = append(matched, entry)
			}
		}

		if len(matched) == 0 {
			fmt.Println("No entries found")
			return nil
		}

		if listReveal {
			for i, entry := range matched {
				if i > 0 {
					fmt.Println()
				}
				printEntry(entry)
			}
			return nil
		}

		fmt.Printf("%-36s  %-28s  %-24s %s\n", "ID", "SITE", "USERNAME", "FLAGS")
		for _, entry := range matched {
			fmt.Printf("%-36s  %-28s  %-24s %s\n", entry.ID, entry.SiteName, entry.Username, entryFlags(entry))
		}
		fmt.Printf("\nTotal: %d entries\n", len(matched))
		return nil
	},
}

// updateCmd modifies an existing entry
var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an existing entry",
	Long: `Update fields of an existing entry. Only the flags you pass change;
everything else is left untouched. Passing an empty value clears an
optional field, e.g. --notes "" or --totp "".

Examples:
  # Rotate a password, prompting for the new value
  passctl update 4f9c21aa-0000-0000-0000-000000000000 --prompt-password

  # Change the username and mark as favorite
  passctl update 4f9c21aa-0000-0000-0000-000000000000 -u bob --favorite

  # Remove the TOTP secret
  passctl update 4f9c21aa-0000-0000-0000-000000000000 --totp ""`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req engine.UpdateEntryRequest

		flags := cmd.Flags()
		if flags.Changed("site") {
			req.SiteName = &updateSite
		}
		if flags.Changed("url") {
			req.URL = &updateURL
		}
		if flags.Changed("username") {
			req.Username = &updateUsername
		}
		if flags.Changed("password") {
			req.Password = &updatePassword
		}
		if flags.Changed("notes") {
			req.Notes = &updateNotes
		}
		if flags.Changed("totp") {
			req.TOTPSecret = &updateTOTP
		}
		if flags.Changed("favorite") {
			req.Favorite = &updateFavorite
		}
		if flags.Changed("field") {
			customFields, err := parseCustomFields(updateFields)
			if err != nil {
				return err
			}
			req.CustomFields = customFields
		}

		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		if updatePromptPassword {
			password, err := readPassword("Enter new entry password: ")
			if err != nil {
				return err
			}
			req.Password = &password
		}

		entry, err := eng.UpdateEntry(cmd.Context(), token, args[0], req, engine.Meta{})
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}

		fmt.Printf("Entry '%s' updated successfully\n", entry.SiteName)
		return nil
	},
}

// deleteCmd removes an entry
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteForce {
			if !confirm(fmt.Sprintf("Delete entry %s? [y/N]: ", args[0])) {
				fmt.Println("Aborted")
				return nil
			}
		}

		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		if err := eng.DeleteEntry(cmd.Context(), token, args[0], engine.Meta{}); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}

		fmt.Printf("Entry %s deleted successfully\n", args[0])
		return nil
	},
}

// totpCmd prints the current TOTP code for an entry
var totpCmd = &cobra.Command{
	Use:   "totp <id>",
	Short: "Print the current TOTP code for an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		code, err := eng.TOTPCode(cmd.Context(), token, args[0], engine.Meta{})
		if err != nil {
			return fmt.Errorf("failed to generate TOTP code: %w", err)
		}

		fmt.Printf("%s (valid for %ds)\n", code.Code, code.RemainingSeconds)
		return nil
	},
}

// auditCmd is the parent command for audit operations
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
}

// auditListCmd lists audit records, newest first
var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log records",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		records, err := eng.AuditLogs(cmd.Context(), token, auditLimit)
		if err != nil {
			return fmt.Errorf("failed to list audit records: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No audit records found")
			return nil
		}

		for _, record := range records {
			line := fmt.Sprintf("%6d  %s  %s", record.Seq, record.Timestamp.Format(time.RFC3339), record.Action)
			if record.EntryID != "" {
				line += fmt.Sprintf(" entry:%s", record.EntryID)
			}
			if !record.Success {
				line += " FAILED"
			}
			if record.Detail != "" {
				line += fmt.Sprintf(" (%s)", record.Detail)
			}
			fmt.Println(line)
		}

		fmt.Printf("\nTotal: %d records\n", len(records))
		return nil
	},
}

// auditVerifyCmd verifies the audit hash chain
var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log hash chain integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		fmt.Println("Verifying audit log integrity...")

		result, err := eng.AuditVerify(cmd.Context(), token)
		if err != nil {
			return fmt.Errorf("failed to verify audit log: %w", err)
		}

		if result.Valid {
			fmt.Printf("✓ Audit log verified: %d records, chain intact\n", result.Records)
			return nil
		}

		fmt.Println("✗ Audit log verification FAILED")
		fmt.Printf("  Records total: %d\n", result.Records)
		fmt.Println("  Errors:")
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
		return fmt.Errorf("audit log integrity check failed")
	},
}

// unlock authenticates the master password and starts a session for this
// invocation. The returned func logs the session out again.
func unlock(cmd *cobra.Command) (string, func(), error) {
	password, err := readPassword("Enter master password: ")
	if err != nil {
		return "", nil, err
	}

	resp, err := eng.Login(cmd.Context(), engine.LoginRequest{MasterPassword: password}, engine.Meta{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to unlock vault: %w", err)
	}

	// Scheduled backups run opportunistically on unlock.
	if report, err := eng.BackupIfDue(cmd.Context()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: scheduled backup failed: %v\n", err)
	} else if report != nil {
		fmt.Fprintf(os.Stderr, "Scheduled backup created: %s\n", report.Name)
	}

	token := resp.Token
	return token, func() { _ = eng.Logout(cmd.Context(), token, engine.Meta{}) }, nil
}

// readPassword prompts for a password without echoing it. When stdin is not
// a terminal the password is read as a plain line instead, which keeps piped
// invocations working.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	if !term.IsTerminal(int(syscall.Stdin)) {
		line, err := readLine()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return line, nil
	}

	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()
	return string(password), nil
}

// stdin is shared so that consecutive prompts do not lose buffered lines.
var stdin = bufio.NewReader(os.Stdin)

// readLine reads one line from stdin.
func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(value, "\r"), nil
}

// confirm prompts for a yes/no answer; anything but y counts as no.
func confirm(prompt string) bool {
	fmt.Print(prompt)
	response, err := readLine()
	if err != nil {
		return false
	}
	return response == "y" || response == "Y"
}

// parseCustomFields parses repeated name=value flags into a map.
func parseCustomFields(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field format %q (expected name=value)", pair)
		}
		fields[name] = value
	}
	return fields, nil
}

// entryFlags renders the short markers shown in list output.
func entryFlags(entry *engine.EntryView) string {
	var flags []string
	if entry.Favorite {
		flags = append(flags, "favorite")
	}
	if entry.HasTOTP {
		flags = append(flags, "totp")
	}
	return strings.Join(flags, ",")
}

// printEntry prints the full detail block for one entry.
func printEntry(entry *engine.EntryView) {
	fmt.Println(entry.SiteName)
	fmt.Printf("  ID:       %s\n", entry.ID)
	if entry.URL != "" {
		fmt.Printf("  URL:      %s\n", entry.URL)
	}
	fmt.Printf("  Username: %s\n", entry.Username)
	fmt.Printf("  Password: %s\n", entry.Password)
	if entry.Notes != "" {
		fmt.Printf("  Notes:    %s\n", entry.Notes)
	}
	for _, name := range cli.MapKeys(entry.CustomFields) {
		fmt.Printf("  %s: %s\n", name, entry.CustomFields[name])
	}
	if entry.HasTOTP {
		fmt.Printf("  TOTP:     configured (run 'passctl totp %s')\n", entry.ID)
	}
	if entry.Favorite {
		fmt.Println("  Favorite: yes")
	}
	fmt.Printf("  Updated:  %s\n", entry.UpdatedAt.Format("2006-01-02 15:04:05"))
}

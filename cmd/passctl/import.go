package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mossfield13/passctl/pkg/engine"
	"github.com/mossfield13/passctl/pkg/importer"
	"github.com/spf13/cobra"
)

var importSource string

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importSource, "source", "s", "",
		fmt.Sprintf("Import source: %s (default: %s)", strings.Join(importer.ValidSources(), ", "), importer.SourceNative))
}

// importCmd replays an export file into the vault
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entries from an export file",
	Long: `Import entries from a passctl export or another password manager's
export file.

Entries that duplicate an existing site name and username are skipped,
as are rows that fail validation. The summary lists everything that was
skipped and why.

Examples:
  # Import a passctl JSON export
  passctl import vault.json

  # Import a Bitwarden unencrypted JSON export
  passctl import bitwarden.json --source bitwarden

  # Import a LastPass CSV export
  passctl import lastpass.csv --source lastpass

  # Import a Chrome password CSV export
  passctl import "Chrome Passwords.csv" --source chrome`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		result, err := eng.ImportEntries(cmd.Context(), token, engine.ImportRequest{
			Source: importSource,
			Data:   data,
		}, engine.Meta{})
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		for _, item := range result.Skipped {
			fmt.Printf("Skipped '%s': %s\n", item.Name, item.Reason)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}

		fmt.Println()
		fmt.Printf("Import summary: %d imported", result.Imported)
		if len(result.Skipped) > 0 {
			fmt.Printf(", %d skipped", len(result.Skipped))
		}
		fmt.Println()
		return nil
	},
}

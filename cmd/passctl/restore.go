package main

import (
	"fmt"

	"github.com/mossfield13/passctl/pkg/engine"
	"github.com/spf13/cobra"
)

var restoreForce bool

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Skip confirmation prompt")
}

// restoreCmd replaces the vault with a backup snapshot
var restoreCmd = &cobra.Command{
	Use:   "restore <backup-name>",
	Short: "Restore the vault from a backup",
	Long: `Restore the vault from a backup snapshot.

The replaced vault file is kept next to the restored one with a
.pre-restore suffix. Restore needs no session: it is the recovery path
for a vault whose master password no longer verifies because the file
is corrupted.

Examples:
  # List available backups first
  passctl backup list

  # Restore a snapshot
  passctl restore passctl-backup-2026-08-25_10-30-00.db`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !restoreForce {
			fmt.Println("This will replace the current vault with the backup.")
			if !confirm("Continue? [y/N]: ") {
				fmt.Println("Restore cancelled")
				return nil
			}
		}

		result, err := eng.RestoreBackup(cmd.Context(), args[0], engine.Meta{})
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Println("Restore complete!")
		fmt.Printf("  Restored from:          %s\n", result.Backup)
		fmt.Printf("  Previous vault kept at: %s\n", result.PreRestore)
		return nil
	},
}

package main

import (
	"fmt"

	"github.com/mossfield13/passctl/pkg/engine"
	"github.com/mossfield13/passctl/pkg/vault"
	"github.com/spf13/cobra"
)

// Backup settings flags
var (
	backupEnabled   bool
	backupFrequency string
	backupKeep      int
)

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.AddCommand(backupRunCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupSettingsCmd)

	backupSettingsCmd.Flags().BoolVar(&backupEnabled, "enabled", false, "Enable or disable scheduled backups")
	backupSettingsCmd.Flags().StringVar(&backupFrequency, "frequency", "", "Backup frequency: daily, weekly, manual")
	backupSettingsCmd.Flags().IntVar(&backupKeep, "keep", 0, "Number of snapshots to keep")
}

// backupCmd is the parent command for backup operations
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Vault backup operations",
}

// backupRunCmd takes a snapshot now
var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Create a backup of the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		report, err := eng.RunBackup(cmd.Context(), token, engine.Meta{})
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backup created successfully: %s (%d bytes)\n", report.Path, report.Size)
		if report.Pruned > 0 {
			fmt.Printf("Pruned %d old snapshots\n", report.Pruned)
		}
		return nil
	},
}

// backupListCmd lists the snapshots on disk
var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		backups, err := eng.ListBackups()
		if err != nil {
			return fmt.Errorf("failed to list backups: %w", err)
		}

		if len(backups) == 0 {
			fmt.Println("No backups found")
			return nil
		}

		for _, info := range backups {
			fmt.Printf("%s  %10d bytes  %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"), info.Size, info.Name)
		}
		fmt.Printf("\nTotal: %d backups\n", len(backups))
		return nil
	},
}

// backupSettingsCmd shows or changes the backup schedule
var backupSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change backup settings",
	Long: `Show or change the scheduled backup settings.

Without flags the current settings are printed. Any flag you pass
changes that setting; the rest stay as they are.

Examples:
  # Show current settings
  passctl backup settings

  # Enable daily backups keeping the last 7 snapshots
  passctl backup settings --enabled --frequency daily --keep 7

  # Disable scheduled backups
  passctl backup settings --enabled=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		settings, err := eng.BackupSettings(cmd.Context(), token)
		if err != nil {
			return fmt.Errorf("failed to read backup settings: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("enabled") || flags.Changed("frequency") || flags.Changed("keep") {
			req := engine.BackupSettingsRequest{
				Enabled:   settings.Enabled,
				Frequency: settings.Frequency,
				KeepCount: settings.KeepCount,
			}
			if flags.Changed("enabled") {
				req.Enabled = backupEnabled
			}
			if flags.Changed("frequency") {
				req.Frequency = backupFrequency
			}
			if flags.Changed("keep") {
				req.KeepCount = backupKeep
			}

			settings, err = eng.UpdateBackupSettings(cmd.Context(), token, req)
			if err != nil {
				return fmt.Errorf("failed to update backup settings: %w", err)
			}
			fmt.Println("Backup settings updated")
			fmt.Println()
		}

		printBackupSettings(settings)
		return nil
	},
}

// printBackupSettings renders the schedule.
func printBackupSettings(settings *vault.BackupSettings) {
	enabled := "no"
	if settings.Enabled {
		enabled = "yes"
	}
	fmt.Printf("Enabled:     %s\n", enabled)
	fmt.Printf("Frequency:   %s\n", settings.Frequency)
	fmt.Printf("Keep count:  %d\n", settings.KeepCount)
	if settings.LastBackupAt != nil {
		fmt.Printf("Last backup: %s\n", settings.LastBackupAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last backup: never")
	}
	fmt.Printf("Directory:   %s\n", cfg.BackupDir)
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mossfield13/passctl/pkg/engine"
	"github.com/spf13/cobra"
)

// Export command flags
var (
	exportFormat string
	exportOutput string
	exportForce  bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", engine.ExportFormatJSON, "Output format: json, csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Overwrite existing file")
}

// exportCmd writes every entry to a portable file
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entries to JSON or CSV",
	Long: `Export all entries to JSON or CSV.

The output contains plaintext passwords and TOTP secrets. Store it
carefully and delete it when done.

Examples:
  # Export as JSON to stdout
  passctl export

  # Export as CSV to a file
  passctl export -f csv -o vault.csv

  # Overwrite an existing file
  passctl export -o vault.json --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(exportFormat)

		token, done, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer done()

		data, err := eng.ExportEntries(cmd.Context(), token, format, engine.Meta{})
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput == "" {
			fmt.Fprintln(os.Stderr, "WARNING: this output contains plaintext secrets")
			fmt.Print(string(data))
			return nil
		}

		if err := writeSecureFile(exportOutput, data, exportForce); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported vault to %s\n", exportOutput)
		return nil
	},
}

// writeSecureFile writes content with 0600 permissions. It refuses to
// follow symlinks and will not overwrite an existing file without force.
func writeSecureFile(path string, content []byte, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to write to symlink: %s", absPath)
		}
		if !force {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", absPath)
		}
	}

	// O_EXCL closes the race between the Lstat above and the open.
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(absPath, flags, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", absPath)
		}
		return fmt.Errorf("failed to create file: %w", err)
	}

	_, writeErr := f.Write(content)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write file: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	return nil
}

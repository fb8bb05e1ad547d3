package main

import (
	"errors"
	"fmt"

	"github.com/mossfield13/passctl/pkg/engine"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(passwdCmd)
}

// passwdCmd changes the master password.
var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the master password",
	Long: `Change the master password by re-encrypting the vault under new keys.

This operation:
  1. Verifies the current password
  2. Re-encrypts every entry under keys derived from the new password
  3. Invalidates all sessions

The change is atomic: either it fully succeeds or the vault is unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Changing master password...")
		fmt.Println()

		// 1. Prompt for current password and unlock with it
		currentPassword, err := readPassword("Enter current password: ")
		if err != nil {
			return err
		}

		resp, err := eng.Login(cmd.Context(), engine.LoginRequest{MasterPassword: currentPassword}, engine.Meta{})
		if err != nil {
			return fmt.Errorf("failed to unlock vault: %w", err)
		}
		token := resp.Token
		defer func() { _ = eng.Logout(cmd.Context(), token, engine.Meta{}) }()

		// 2. Prompt for new password
		newPassword1, err := readPassword("Enter new password: ")
		if err != nil {
			return err
		}

		// 3. Confirm new password
		newPassword2, err := readPassword("Confirm new password: ")
		if err != nil {
			return err
		}

		// 4. Check new passwords match
		if newPassword1 != newPassword2 {
			return errors.New("new passwords do not match")
		}

		// 5. Execute password change (strength policy is enforced by the
		// engine)
		if err := eng.ChangeMasterPassword(cmd.Context(), token, engine.ChangePasswordRequest{
			CurrentPassword: currentPassword,
			NewPassword:     newPassword1,
		}, engine.Meta{}); err != nil {
			return fmt.Errorf("failed to change password: %w", err)
		}

		fmt.Println()
		fmt.Println("Password changed successfully!")
		return nil
	},
}

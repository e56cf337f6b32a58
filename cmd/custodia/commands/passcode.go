package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func passcodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passcode",
		Short: "Manage the device passcode",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Set or change the device passcode",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exists, err := wire.Passcode.Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				// Changing the passcode requires the current one.
				if err := requireUnlocked(ctx); err != nil {
					return err
				}
			}
			code, err := readNewPasscode()
			if err != nil {
				return err
			}
			if err := wire.Passcode.Set(ctx, code); err != nil {
				return err
			}
			fmt.Println("Device passcode set.")
			return nil
		},
	})
	return cmd
}

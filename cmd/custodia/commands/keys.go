package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"custodia/internal/domain"
	"custodia/internal/gate"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the device signing key",
	}
	cmd.AddCommand(keysInitCmd(), keysShowCmd())
	return cmd
}

func keysInitCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the signing key and register it with the wallet API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if offline {
				exists, err := wire.Keys.HasExistingKeys(ctx)
				if err != nil {
					return err
				}
				if exists {
					fmt.Println("Signing key already present.")
					return nil
				}
				if _, err := wire.Keys.GenerateAndStoreKeys(ctx); err != nil {
					return err
				}
			} else {
				_, created, err := wire.Keys.EnsureRegistered(ctx, wire.API)
				if err != nil {
					return errors.New(domain.UserMessage(err))
				}
				if created {
					fmt.Println("Signing key created.")
				}
				fmt.Println("Public key registered.")
			}
			fp, err := wire.Keys.Fingerprint(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", fp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "create the key without registering it")
	return gated(cmd)
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the public key and fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ok, err := gate.PermissiveCheck(ctx, wire.Auth, "Show signing key")
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("confirmation declined")
			}
			pub, found, err := wire.Keys.GetPublicKey(ctx)
			if err != nil {
				return err
			}
			if !found {
				return domain.ErrKeyAbsent
			}
			fp, err := wire.Keys.Fingerprint(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Public key:  %s\nFingerprint: %s\n", pub, fp)
			return nil
		},
	}
}

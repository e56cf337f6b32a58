package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"custodia/internal/domain"
	"custodia/internal/services/provision"
)

func provisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the wallet and its first account",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := wire.Provision.Run(cmd.Context())
			if err != nil {
				wire.Log.Debug("provisioning failed", "err", err)
				return errors.New(domain.UserMessage(err))
			}
			fmt.Printf("Wallet:  %s (%s)\n", res.Wallet.ID, res.Wallet.Name)
			fmt.Printf("Account: %s %s\n", res.Account.ID, res.Account.Address)
			return nil
		},
	}
	return gated(cmd)
}

func printProvisionStep(stage provision.Stage, step provision.Step) {
	fmt.Fprintf(os.Stderr, "%-8s %s\n", stage, step)
}

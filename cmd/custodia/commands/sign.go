package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"custodia/internal/domain"
	"custodia/internal/signer"
)

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [payload]",
		Short: "Sign a payload with the device key and print the stamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kp, err := wire.Keys.LoadKeyPair(ctx)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			stamp, ok, err := wire.Signer.Sign(ctx, signer.Params{
				Payload:    args[0],
				PublicKey:  kp.PublicKey,
				PrivateKey: kp.PrivateKey,
			})
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			if !ok {
				return errors.New("nothing to sign")
			}
			fmt.Println(stamp)
			return nil
		},
	}
	return gated(cmd)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"custodia/internal/gate"
)

func unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Authenticate with the device passcode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUnlocked(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Unlocked.")
			return nil
		},
	}
}

// requireUnlocked drives the mandatory gate until it opens or cannot open
// without user action outside the CLI.
func requireUnlocked(ctx context.Context) error {
	res := wire.Gate.Mount(ctx)
	for {
		switch res.Status {
		case gate.StatusAuthenticated:
			return nil
		case gate.StatusLockedOut:
			return errors.New(res.Message)
		case gate.StatusSecurityRequired:
			return fmt.Errorf("%s Run `custodia passcode set` first.", res.Message)
		case gate.StatusAuthenticating:
			// fallback requested; the passcode is the only factor
		case gate.StatusAwaitingRetry:
			if res.Message == "" {
				return errors.New("authentication interrupted")
			}
			if res.Cancelled {
				return errors.New(res.Message)
			}
			if res.RemainingAttempts > 0 {
				fmt.Fprintf(os.Stderr, "%s %d attempt(s) left before lockout.\n", res.Message, res.RemainingAttempts)
			} else {
				fmt.Fprintln(os.Stderr, res.Message)
			}
		default:
			return fmt.Errorf("unexpected gate state %s", res.Status)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res = wire.Gate.Authenticate(ctx)
	}
}

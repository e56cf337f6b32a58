package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"custodia/internal/lockout"
)

func lockoutCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "lockout",
		Short: "Show failed attempts and any active lockout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st := wire.Lockout.Load(ctx)
			now := wire.Lockout.Now()

			rem, locked := wire.Lockout.RemainingTime(ctx, now)
			fmt.Printf("Level:    %d\n", st.Level)
			fmt.Printf("Attempts: %d of %d\n", st.Attempts, lockout.Threshold)
			if !locked {
				fmt.Println("Status:   unlocked")
				return nil
			}
			fmt.Printf("Status:   locked out for %s\n", lockout.FormatDuration(rem))
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			err := wire.Gate.WatchLockout(ctx, ticker.C, func(d time.Duration) {
				fmt.Printf("\rRetry in %-12s", lockout.FormatDuration(d))
			})
			fmt.Println()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println("Lockout elapsed. Run `custodia unlock` to retry.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "count down until the lockout elapses")
	return cmd
}

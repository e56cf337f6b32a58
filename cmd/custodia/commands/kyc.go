package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"custodia/internal/domain"
)

func kycCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kyc",
		Short: "Manage the identity verification link state",
	}

	var in domain.KYCLinkState
	save := &cobra.Command{
		Use:   "save",
		Short: "Store the verification inquiry and link token",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.UpdatedAt = time.Now().UTC()
			if err := wire.KYC.Save(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Println("Verification link saved.")
			return nil
		},
	}
	save.Flags().StringVar(&in.InquiryID, "inquiry", "", "inquiry id")
	save.Flags().StringVar(&in.LinkToken, "link-token", "", "link token")
	save.Flags().StringVar(&in.Status, "status", "pending", "verification status")
	_ = save.MarkFlagRequired("inquiry")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored verification link state",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok, err := wire.KYC.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("No verification in progress.")
				return nil
			}
			fmt.Printf("Inquiry: %s\nStatus:  %s\nUpdated: %s\n", st.InquiryID, st.Status, st.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored verification link state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.KYC.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Verification link cleared.")
			return nil
		},
	}

	cmd.AddCommand(gated(save), gated(show), gated(clearCmd))
	return cmd
}

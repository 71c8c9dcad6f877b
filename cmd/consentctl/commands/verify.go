package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pharmatrace/internal/consent/models"
)

func verifyCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <wallet>",
		Short: "Look up the consent record for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := models.ParsePublicKey(args[0])
			if err != nil {
				return fmt.Errorf("wallet: %w", err)
			}
			sess, err := o.session(nil)
			if err != nil {
				return err
			}
			lookup, err := o.client(cmd).VerifyConsent(cmd.Context(), sess, identity)
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address:  %s\n", lookup.Address.Address)
			att, ok := lookup.Attestation()
			if !ok {
				fmt.Fprintln(out, "status:   no consent record")
				return nil
			}
			fmt.Fprintln(out, "status:   signed")
			fmt.Fprintf(out, "owner:    %s\n", att.Owner)
			fmt.Fprintf(out, "digest:   %s\n", att.Digest.Hex())
			fmt.Fprintf(out, "verified: %t\n", att.Verified)
			return nil
		},
	}
}

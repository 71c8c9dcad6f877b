package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pharmatrace/internal/consent/models"
	"pharmatrace/internal/consent/pda"
)

func deriveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <wallet>",
		Short: "Print the consent record address for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := models.ParsePublicKey(args[0])
			if err != nil {
				return fmt.Errorf("wallet: %w", err)
			}
			programID, err := o.program()
			if err != nil {
				return err
			}
			addr, err := pda.DeriveConsentAddress(identity, programID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nbump:    %d\n", addr.Address, addr.Bump)
			return nil
		},
	}
}

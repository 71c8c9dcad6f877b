package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"pharmatrace/internal/consent/service"
)

func balanceCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet's SOL balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kp, err := o.loadWallet()
			if err != nil {
				return err
			}
			sess, err := o.session(kp)
			if err != nil {
				return err
			}
			bal := o.client(cmd).CheckBalance(cmd.Context(), sess)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wallet:  %s\n", kp.Address())
			if !bal.Known {
				fmt.Fprintln(out, "balance: unknown")
				return nil
			}
			fmt.Fprintf(out, "balance: %s SOL\n", bal.SOL())
			if bal.Low {
				fmt.Fprintf(out, "warning: balance is low; fund the wallet (devnet faucet: %s)\n", service.FaucetURL)
			}
			return nil
		},
	}
}

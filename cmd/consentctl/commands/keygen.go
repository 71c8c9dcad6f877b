package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pharmatrace/internal/wallet"
)

func keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen <path>",
		Short: "Create a new wallet keypair file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", args[0])
			}
			kp, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := kp.SaveFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wallet: %s\n", kp.Address())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

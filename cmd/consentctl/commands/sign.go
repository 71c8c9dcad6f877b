package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pharmatrace/internal/consent/hasher"
	"pharmatrace/internal/wallet"
)

func signCmd(o *options) *cobra.Command {
	var (
		file string
		yes  bool
	)
	cmd := &cobra.Command{
		Use:   "sign [document]",
		Short: "Commit a consent document's digest under your wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args, file)
			if err != nil {
				return err
			}

			var approver wallet.Approver
			if !yes {
				approver = promptApprover(cmd, hasher.Hash(doc).Hex())
			}
			kp, err := o.loadWallet(wallet.WithApprover(approver))
			if err != nil {
				return err
			}
			sess, err := o.session(kp)
			if err != nil {
				return err
			}

			res, err := o.client(cmd).SignConsent(cmd.Context(), sess, doc)
			if err != nil {
				return describe(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "signature: %s\n", res.Signature)
			fmt.Fprintf(out, "address:   %s\n", res.Address.Address)
			fmt.Fprintf(out, "digest:    %s\n", res.Digest.Hex())
			fmt.Fprintf(out, "explorer:  %s\n", res.Signature.ExplorerURL(o.cluster))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file (- for stdin)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "sign without asking for confirmation")
	return cmd
}

// promptApprover asks on the command's stdin before each signature.
func promptApprover(cmd *cobra.Command, digest string) wallet.Approver {
	return func(ctx context.Context, _ []byte) (bool, error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Sign consent for digest %s? [y/N] ", digest)
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", ctx.Err()
	}
}

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pharmatrace/internal/consent/hasher"
)

func hashCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "hash [document]",
		Short: "Print the SHA-256 digest a document commits to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args, file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hasher.Hash(doc).Hex())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file (- for stdin)")
	return cmd
}

// readDocument takes the document from the first argument or --file. File
// contents are used byte for byte.
func readDocument(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("pass the document as an argument or with --file, not both")
	case file == "-":
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(raw), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("a document is required")
	}
}

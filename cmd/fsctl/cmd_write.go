package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var argFrom string

var writeCmd = &cobra.Command{
	Use:   "write <path> [content]",
	Short: "replace a file's content with the argument, --from file, or stdin",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := writeContent(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openTree(ctx)
		if err != nil {
			return err
		}
		if err := s.WriteFile(ctx, args[0], content); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(content), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().StringVar(&argFrom, "from", "", "read content from this local file ('-' for stdin)")
}

func writeContent(stdin io.Reader, args []string) (string, error) {
	switch {
	case len(args) == 2 && argFrom != "":
		return "", fmt.Errorf("content given both as argument and --from")
	case len(args) == 2:
		return args[1], nil
	case argFrom == "" || argFrom == "-":
		b, err := io.ReadAll(stdin)
		return string(b), err
	default:
		b, err := os.ReadFile(argFrom)
		return string(b), err
	}
}

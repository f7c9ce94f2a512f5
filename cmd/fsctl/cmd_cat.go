package main

import (
	"io"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "print a file's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openTree(ctx)
		if err != nil {
			return err
		}
		content, err := s.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), content)
		return err
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}

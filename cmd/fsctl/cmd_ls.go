package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/synctree"
)

var argLong bool

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "list one folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := synctree.RootPath
		if len(args) == 1 {
			target = args[0]
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if argProject == "" {
			return fmt.Errorf("no project: use --project or VFS_PROJECT")
		}
		nodes, err := c.ListFiles(cmd.Context(), argProject, target)
		if err != nil {
			return err
		}
		printListing(cmd.OutOrStdout(), nodes, argLong)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolVarP(&argLong, "long", "l", false, "show size and modification time")
}

func printListing(w io.Writer, nodes []*models.TreeNode, long bool) {
	for _, n := range nodes {
		name := n.Name
		if n.IsFolder() {
			name += "/"
		}
		if !long {
			fmt.Fprintln(w, name)
			continue
		}
		fmt.Fprintf(w, "%-6s %10d  %-29s  %s\n", n.Type, n.Size, n.LastModified, name)
	}
}

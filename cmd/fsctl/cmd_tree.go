package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/synctree"
	"github.com/sorenbs/ai-chatbot-full/internal/tree"
)

var argDepth int

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "print the project tree, expanding folders down to --depth",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openTree(ctx)
		if err != nil {
			return err
		}
		t := expandTo(ctx, s, argDepth)
		fmt.Fprintln(cmd.OutOrStdout(), argProject)
		printTree(cmd.OutOrStdout(), t.Nodes, "")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().IntVarP(&argDepth, "depth", "d", 1, "number of folder levels to load (1 is the root listing only)")
}

// expandTo loads folders breadth first until depth levels are present.
// Folders whose fetch fails stay collapsed.
func expandTo(ctx context.Context, s *synctree.Synchronizer, depth int) *models.Tree {
	t := s.Tree()
	level := t.Nodes
	for d := 1; d < depth; d++ {
		var next []string
		for _, n := range level {
			if n.IsFolder() {
				next = append(next, n.Path)
			}
		}
		if len(next) == 0 {
			break
		}
		for _, p := range next {
			t, _ = s.Expand(ctx, p)
		}
		level = level[:0:0]
		for _, p := range next {
			if n := tree.FindByPath(t.Nodes, p); n != nil && n.Loaded {
				level = append(level, n.Children...)
			}
		}
	}
	return t
}

func printTree(w io.Writer, nodes []*models.TreeNode, prefix string) {
	for i, n := range nodes {
		branch, indent := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, indent = "└── ", "    "
		}
		name := n.Name
		if n.IsFolder() {
			name += "/"
			if !n.Loaded {
				name += " …"
			}
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, branch, name)
		if n.IsFolder() && n.Loaded {
			printTree(w, n.Children, prefix+indent)
		}
	}
}

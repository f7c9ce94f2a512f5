// Package tree builds sorted tree nodes from directory listings and provides
// lookup and copy-on-write merge over partially loaded trees.
package tree

import (
	"strings"

	"github.com/sorenbs/ai-chatbot-full/internal/models"
)

// FindByPath returns the first node whose path matches exactly (recursive).
func FindByPath(nodes []*models.TreeNode, path string) *models.TreeNode {
	for _, n := range nodes {
		if n.Path == path {
			return n
		}
		if found := FindByPath(n.Children, path); found != nil {
			return found
		}
	}
	return nil
}

// ReplaceChildren returns a tree in which the folder at path has the given
// children and is marked loaded. Only the ancestors of that folder are
// copied; every other subtree is shared with the input, which is left
// untouched. When no folder has that path the input is returned with false.
func ReplaceChildren(nodes []*models.TreeNode, path string, children []*models.TreeNode) ([]*models.TreeNode, bool) {
	for i, n := range nodes {
		if n.Path == path {
			if !n.IsFolder() {
				return nodes, false
			}
			repl := *n
			repl.Children = children
			if repl.Children == nil {
				repl.Children = []*models.TreeNode{}
			}
			repl.Loaded = true
			return withReplaced(nodes, i, &repl), true
		}

		if len(n.Children) == 0 {
			continue
		}
		sub, ok := ReplaceChildren(n.Children, path, children)
		if !ok {
			continue
		}
		repl := *n
		repl.Children = sub
		return withReplaced(nodes, i, &repl), true
	}
	return nodes, false
}

func withReplaced(nodes []*models.TreeNode, i int, n *models.TreeNode) []*models.TreeNode {
	out := make([]*models.TreeNode, len(nodes))
	copy(out, nodes)
	out[i] = n
	return out
}

// CountNodes counts all nodes in a forest.
func CountNodes(nodes []*models.TreeNode) int {
	count := 0
	for _, n := range nodes {
		count += 1 + CountNodes(n.Children)
	}
	return count
}

// BuildChildPath joins a folder path and an entry name. The root may be
// given as "" or "/".
func BuildChildPath(parentPath, name string) string {
	if parentPath == "" || parentPath == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(parentPath, "/") + "/" + name
}

// Package models contains the data types shared by the gateway, the HTTP
// boundary and the tree synchronizer.
package models

import (
	"encoding/json"
	"fmt"
)

// NodeType distinguishes files from folders.
type NodeType string

const (
	TypeFile   NodeType = "file"
	TypeFolder NodeType = "folder"
)

// ChildState describes how much of a folder's content is known.
type ChildState int

const (
	// NotLoaded means the folder has never been listed.
	NotLoaded ChildState = iota
	// LoadedEmpty means the folder was listed and has no entries.
	LoadedEmpty
	// LoadedNonEmpty means the folder was listed and has entries.
	LoadedNonEmpty
)

func (s ChildState) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case LoadedEmpty:
		return "loaded_empty"
	case LoadedNonEmpty:
		return "loaded"
	default:
		return fmt.Sprintf("ChildState(%d)", int(s))
	}
}

// TreeNode represents one file or folder in a tenant's virtual tree.
//
// Path is the only identity: within one tree no two nodes share it. Children
// is meaningful for folders only and is trusted only when Loaded is set.
type TreeNode struct {
	Name         string
	Type         NodeType
	Path         string
	Children     []*TreeNode
	Loaded       bool
	Size         int64
	LastModified string
}

// IsFolder reports whether the node is a folder.
func (n *TreeNode) IsFolder() bool {
	return n.Type == TypeFolder
}

// State returns the children state of a folder. Files always report
// NotLoaded.
func (n *TreeNode) State() ChildState {
	if !n.IsFolder() || !n.Loaded {
		return NotLoaded
	}
	if len(n.Children) == 0 {
		return LoadedEmpty
	}
	return LoadedNonEmpty
}

// Clone returns a shallow copy: the children slice is copied, the child
// nodes themselves are shared.
func (n *TreeNode) Clone() *TreeNode {
	c := *n
	if n.Children != nil {
		c.Children = make([]*TreeNode, len(n.Children))
		copy(c.Children, n.Children)
	}
	return &c
}

type treeNodeJSON struct {
	Name         string       `json:"name"`
	Type         NodeType     `json:"type"`
	Path         string       `json:"path"`
	Children     *[]*TreeNode `json:"children,omitempty"`
	Loaded       *bool        `json:"loaded,omitempty"`
	Size         int64        `json:"size,omitempty"`
	LastModified string       `json:"lastModified,omitempty"`
}

// MarshalJSON emits children (possibly empty) and loaded for folders and
// neither for files.
func (n *TreeNode) MarshalJSON() ([]byte, error) {
	out := treeNodeJSON{
		Name:         n.Name,
		Type:         n.Type,
		Path:         n.Path,
		Size:         n.Size,
		LastModified: n.LastModified,
	}
	if n.IsFolder() {
		children := n.Children
		if children == nil {
			children = []*TreeNode{}
		}
		loaded := n.Loaded
		out.Children = &children
		out.Loaded = &loaded
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts nodes with or without the loaded field. Without it,
// a folder counts as loaded only when it carries children.
func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var in treeNodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = TreeNode{
		Name:         in.Name,
		Type:         in.Type,
		Path:         in.Path,
		Size:         in.Size,
		LastModified: in.LastModified,
	}
	if n.IsFolder() {
		n.Children = []*TreeNode{}
		if in.Children != nil && *in.Children != nil {
			n.Children = *in.Children
		}
		if in.Loaded != nil {
			n.Loaded = *in.Loaded
		} else {
			n.Loaded = len(n.Children) > 0
		}
	}
	return nil
}

// Tree is an immutable snapshot of one tenant's partially loaded tree.
// Consumers must not modify nodes reachable from it.
type Tree struct {
	Tenant     string      `json:"tenant"`
	Generation uint64      `json:"generation"`
	Nodes      []*TreeNode `json:"nodes"`
}

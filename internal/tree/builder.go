package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
)

// MalformedEntryError reports a listing entry missing a required field. The
// whole listing is rejected when one is found.
type MalformedEntryError struct {
	Index int
	Field string
	Value string
}

func (e *MalformedEntryError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("malformed listing entry %d: invalid %s %q", e.Index, e.Field, e.Value)
	}
	return fmt.Sprintf("malformed listing entry %d: missing %s", e.Index, e.Field)
}

// Build converts a raw directory listing into sorted tree nodes.
//
// Folders get an empty, not loaded children slice: the listing says nothing
// about their content. Two entries with the same fullPath reject the
// listing, since a path identifies exactly one node.
func Build(entries []models.RawEntry) ([]*models.TreeNode, error) {
	nodes := make([]*models.TreeNode, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if err := validate(i, e); err != nil {
			metrics.RecordListing(len(entries), false)
			return nil, err
		}
		if _, dup := seen[e.FullPath]; dup {
			metrics.RecordListing(len(entries), false)
			return nil, &MalformedEntryError{Index: i, Field: "fullPath", Value: e.FullPath}
		}
		seen[e.FullPath] = struct{}{}

		node := &models.TreeNode{
			Name:         e.Filename,
			Type:         models.TypeFile,
			Path:         e.FullPath,
			Size:         e.Size,
			LastModified: e.LastMod,
		}
		if e.Type == models.EntryDirectory {
			node.Type = models.TypeFolder
			node.Children = []*models.TreeNode{}
		}
		nodes = append(nodes, node)
	}

	Sort(nodes)
	metrics.RecordListing(len(nodes), true)
	return nodes, nil
}

func validate(i int, e models.RawEntry) error {
	switch {
	case e.Filename == "":
		return &MalformedEntryError{Index: i, Field: "filename"}
	case e.FullPath == "":
		return &MalformedEntryError{Index: i, Field: "fullPath"}
	case e.Type == "":
		return &MalformedEntryError{Index: i, Field: "type"}
	case e.Type != models.EntryFile && e.Type != models.EntryDirectory:
		return &MalformedEntryError{Index: i, Field: "type", Value: e.Type}
	}
	return nil
}

// Sort orders nodes in place: folders first, then files, each group by name.
func Sort(nodes []*models.TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return Less(nodes[i], nodes[j])
	})
}

// Less is the sort policy used for every loaded children slice.
func Less(a, b *models.TreeNode) bool {
	if a.IsFolder() != b.IsFolder() {
		return a.IsFolder()
	}
	return strings.Compare(a.Name, b.Name) < 0
}

// IsSorted reports whether nodes follow the sort policy.
func IsSorted(nodes []*models.TreeNode) bool {
	return sort.SliceIsSorted(nodes, func(i, j int) bool {
		return Less(nodes[i], nodes[j])
	})
}

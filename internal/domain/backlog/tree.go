package backlog

import (
	"sort"
	"strings"

	"github.com/scrumix/scrumix/internal/domain"
)

// PathSeparator joins ancestor IDs in a materialized path.
const PathSeparator = "/"

// Place sets the derived hierarchy fields of item for the given parent.
// A nil parent makes the item a root.
func Place(item *Item, parent *Item) error {
	if parent == nil {
		item.ParentID = nil
		item.Level = 0
		item.RootID = item.ID
		item.Path = item.ID
		return nil
	}
	if parent.ProjectID != item.ProjectID {
		return domain.Invalid("parent item belongs to another project")
	}
	pid := parent.ID
	item.ParentID = &pid
	item.Level = parent.Level + 1
	item.RootID = parent.RootID
	item.Path = parent.Path + PathSeparator + item.ID
	return nil
}

// AncestorIDs returns the IDs on path above its last segment, root first.
func AncestorIDs(path string) []string {
	segs := strings.Split(path, PathSeparator)
	if len(segs) <= 1 {
		return nil
	}
	return segs[:len(segs)-1]
}

// IsDescendantPath reports whether path lies strictly below ancestorPath.
func IsDescendantPath(path, ancestorPath string) bool {
	return strings.HasPrefix(path, ancestorPath+PathSeparator)
}

// Rebase describes the rewrite of a moved subtree's descendants.
type Rebase struct {
	ProjectID  string
	OldPath    string
	NewPath    string
	LevelDelta int
	RootID     string
}

// Apply rewrites a descendant's path, level and root.
func (rb *Rebase) Apply(desc *Item) {
	desc.Path = rb.NewPath + strings.TrimPrefix(desc.Path, rb.OldPath)
	desc.Level += rb.LevelDelta
	desc.RootID = rb.RootID
}

// Reparent moves item under newParent (nil for root) and returns the rewrite
// its descendants need. It rejects the item itself or any of its descendants
// as the new parent.
func Reparent(item *Item, newParent *Item) (*Rebase, error) {
	if newParent != nil {
		if newParent.ID == item.ID {
			return nil, domain.Invalid("an item cannot be its own parent")
		}
		if IsDescendantPath(newParent.Path, item.Path) {
			return nil, domain.Invalid("an item cannot be moved below its own descendant")
		}
	}
	oldPath, oldLevel := item.Path, item.Level
	if err := Place(item, newParent); err != nil {
		return nil, err
	}
	return &Rebase{
		ProjectID:  item.ProjectID,
		OldPath:    oldPath,
		NewPath:    item.Path,
		LevelDelta: item.Level - oldLevel,
		RootID:     item.RootID,
	}, nil
}

// Node is an item with its nested children.
type Node struct {
	Item
	Children []*Node `json:"children"`
}

// SortItems orders items by level, then priority, then creation time.
func SortItems(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		x, y := items[a], items[b]
		if x.Level != y.Level {
			return x.Level < y.Level
		}
		if x.Priority.Rank() != y.Priority.Rank() {
			return x.Priority.Rank() < y.Priority.Rank()
		}
		return x.CreatedAt.Before(y.CreatedAt)
	})
}

// BuildTree nests a flat list of items. Items whose parent is absent from
// the list are returned as roots.
func BuildTree(items []Item) []*Node {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	SortItems(sorted)

	nodes := make(map[string]*Node, len(sorted))
	for i := range sorted {
		nodes[sorted[i].ID] = &Node{Item: sorted[i], Children: []*Node{}}
	}
	roots := []*Node{}
	for i := range sorted {
		n := nodes[sorted[i].ID]
		if parent, ok := nodes[sorted[i].Parent()]; ok {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}
	return roots
}

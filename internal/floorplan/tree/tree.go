package tree

import (
	"net/url"
	"strconv"
	"strings"

	"floorplan/internal/floorplan/models"
)

// ============================================================
// Navigation tree
// ============================================================

// Node is one entry of the navigation list. Top-level nodes are linked to
// the diagram and can be activated; nested nodes only show a name.
type Node struct {
	Key      string
	Item     *models.Item
	Linked   bool
	Hidden   bool
	Children []*Node
}

// Tree is the rendered navigation list, keyed separately from the items.
type Tree struct {
	Roots []*Node
	index map[string]*Node
}

// Predicate decides whether an item matches the current filter.
type Predicate func(*models.Item) bool

// Render builds one node per item, recursing into contents.
//
// A top-level key is the item's path-escaped id, so it never holds a '/';
// nested keys append "/<index>" to their parent's key. Items without an id
// are keyed "#<position>", which no escaped id can spell.
func Render(items []*models.Item) *Tree {
	t := &Tree{index: make(map[string]*Node)}
	for i, it := range items {
		key := RootKey(it.UniqueID)
		if it.UniqueID == "" {
			key = "#" + strconv.Itoa(i)
		}
		t.Roots = append(t.Roots, t.build(it, key, true))
	}
	return t
}

// RootKey is the navigation key of a top-level item id.
func RootKey(id string) string {
	return url.PathEscape(id)
}

func (t *Tree) build(it *models.Item, key string, linked bool) *Node {
	n := &Node{Key: key, Item: it, Linked: linked}
	t.index[key] = n
	for i, child := range it.Contents {
		n.Children = append(n.Children, t.build(child, key+"/"+strconv.Itoa(i), false))
	}
	return n
}

func (t *Tree) Lookup(key string) *Node {
	return t.index[key]
}

// Filter recomputes visibility: a node is visible iff it or any
// descendant matches. A nil predicate shows everything. Returns the number
// of visible nodes.
func (t *Tree) Filter(pred Predicate) int {
	visible := 0
	var visit func(*Node) bool
	visit = func(n *Node) bool {
		shown := pred == nil || pred(n.Item)
		for _, c := range n.Children {
			if visit(c) {
				shown = true
			}
		}
		n.Hidden = !shown
		if shown {
			visible++
		}
		return shown
	}
	for _, root := range t.Roots {
		visit(root)
	}
	return visible
}

// NameContains matches names containing s, ignoring case.
func NameContains(s string) Predicate {
	needle := strings.ToLower(s)
	return func(it *models.Item) bool {
		return strings.Contains(strings.ToLower(it.Name), needle)
	}
}

// Visible returns the tree with hidden nodes pruned.
func (t *Tree) Visible() []*Node {
	var prune func([]*Node) []*Node
	prune = func(nodes []*Node) []*Node {
		var out []*Node
		for _, n := range nodes {
			if n.Hidden {
				continue
			}
			cp := *n
			cp.Children = prune(n.Children)
			out = append(out, &cp)
		}
		return out
	}
	return prune(t.Roots)
}

// File: internal/hierarchy/compact.go
package hierarchy

import (
	"fmt"
	"strings"
)

// systemChromeDenylist matches resource ids of OS chrome that is never part
// of the application under test.
var systemChromeDenylist = []string{
	"com.android.systemui",
	"android:id/statusBarBackground",
	"android:id/navigationBarBackground",
}

// Optimized is the compacted view of one hierarchy snapshot: the pruned tree,
// the flattened indexed element list, and the AI-legible rendering.
type Optimized struct {
	Tree     *Node
	Elements *ElementList
	Text     string
}

// Optimize compacts a raw hierarchy snapshot. The algorithm is post-order:
// out-of-bounds and denylisted children are dropped, contentless nodes are
// collapsed (one surviving child) or flattened (children promoted), and
// contentless leaves are removed. The root is always kept.
func Optimize(snap *Snapshot) *Optimized {
	root := &Node{
		Attrs:  snap.Raw.Attrs,
		Bounds: snap.Raw.Bounds,
	}
	for _, child := range snap.Raw.Children {
		root.Children = append(root.Children, compact(child, snap.DeviceBounds)...)
	}
	elements := NewElementList(root)
	return &Optimized{
		Tree:     root,
		Elements: elements,
		Text:     renderTree(root, elements),
	}
}

// compact returns the surviving replacement nodes for n: the node itself
// (with compacted children), its promoted children, or nothing.
func compact(n *Node, deviceBounds Rect) []*Node {
	if denied(n) || outsideBounds(n, deviceBounds) {
		return nil
	}

	var kept []*Node
	for _, child := range n.Children {
		kept = append(kept, compact(child, deviceBounds)...)
	}

	if n.HasContent() {
		return []*Node{{Attrs: n.Attrs, Bounds: n.Bounds, Children: kept}}
	}
	// Contentless: zero children drops the node, one child replaces it, and
	// several children are promoted to the parent.
	return kept
}

func denied(n *Node) bool {
	id := n.Attrs[attrResourceID]
	if id == "" {
		return false
	}
	for _, prefix := range systemChromeDenylist {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func outsideBounds(n *Node, deviceBounds Rect) bool {
	// Trees without geometry (e.g. parsed HTML) skip the visibility filter.
	if n.Bounds.IsZero() || deviceBounds.IsZero() {
		return false
	}
	return !n.Bounds.Intersects(deviceBounds)
}

// renderTree produces the indented, indexed rendering shown to the model.
// Indexes match the element list so the model can address elements directly.
func renderTree(root *Node, elements *ElementList) string {
	indexOf := make(map[*Node]int, elements.Len())
	for _, e := range elements.All() {
		indexOf[e.Node] = e.Index
	}

	var b strings.Builder
	var render func(n *Node, depth int)
	render = func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		if idx, ok := indexOf[n]; ok {
			fmt.Fprintf(&b, "[%d] ", idx)
		}
		b.WriteString(describeNode(n))
		b.WriteByte('\n')
		for _, c := range n.Children {
			render(c, depth+1)
		}
	}
	render(root, 0)
	return b.String()
}

func describeNode(n *Node) string {
	parts := []string{shortClass(n.Attrs[attrClass])}
	if t := strings.TrimSpace(n.Attrs[attrText]); t != "" {
		parts = append(parts, fmt.Sprintf("%q", t))
	}
	if d := strings.TrimSpace(n.Attrs[attrLabel]); d != "" {
		parts = append(parts, "desc="+d)
	}
	if h := strings.TrimSpace(n.Attrs[attrHint]); h != "" {
		parts = append(parts, "hint="+h)
	}
	for _, flag := range flagAttrs {
		if n.Attrs[flag] == "true" {
			parts = append(parts, flag)
		}
	}
	return strings.Join(parts, " ")
}

func shortClass(class string) string {
	if class == "" {
		return "View"
	}
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}

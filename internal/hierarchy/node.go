// File: internal/hierarchy/node.go
package hierarchy

import (
	"fmt"
	"sort"
	"strings"
)

// Rect is a bounding box in screen coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Rect) Width() int   { return r.Right - r.Left }
func (r Rect) Height() int  { return r.Bottom - r.Top }
func (r Rect) CenterX() int { return (r.Left + r.Right) / 2 }
func (r Rect) CenterY() int { return (r.Top + r.Bottom) / 2 }

// IsZero reports whether the rect carries no geometry at all.
func (r Rect) IsZero() bool {
	return r.Left == 0 && r.Top == 0 && r.Right == 0 && r.Bottom == 0
}

// OverlapsX reports whether the horizontal extents of the two rects overlap.
func (r Rect) OverlapsX(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right
}

// OverlapsY reports whether the vertical extents of the two rects overlap.
func (r Rect) OverlapsY(o Rect) bool {
	return r.Top < o.Bottom && o.Top < r.Bottom
}

// Intersects reports whether the rects overlap on both axes.
func (r Rect) Intersects(o Rect) bool {
	return r.OverlapsX(o) && r.OverlapsY(o)
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Node is one node of a captured UI tree. The attribute map holds the raw
// accessibility attributes; Bounds is kept separately because it is both
// volatile and needed for geometry.
type Node struct {
	Attrs    map[string]string `json:"attrs"`
	Bounds   Rect              `json:"bounds"`
	Children []*Node           `json:"children,omitempty"`
}

// Attribute names treated as content signals.
const (
	attrText       = "text"
	attrLabel      = "content-desc"
	attrHint       = "hint"
	attrClass      = "class"
	attrResourceID = "resource-id"
)

// flagAttrs are boolean attributes that make an otherwise empty node worth
// keeping: the user can interact with it or it reflects interaction state.
var flagAttrs = []string{"clickable", "checked", "selected", "focusable"}

// volatileAttrs are excluded from the stable identifier fingerprint. They
// change as focus and selection move even though the logical element is the
// same.
var volatileAttrs = map[string]bool{
	"bounds":   true,
	"focused":  true,
	"selected": true,
	"checked":  true,
}

// HasContent reports whether the node itself carries meaningful content:
// non-blank text, label or hint, or a set interaction flag.
func (n *Node) HasContent() bool {
	for _, key := range []string{attrText, attrLabel, attrHint} {
		if strings.TrimSpace(n.Attrs[key]) != "" {
			return true
		}
	}
	for _, key := range flagAttrs {
		if n.Attrs[key] == "true" {
			return true
		}
	}
	return false
}

// Fingerprint returns the sorted non-volatile attribute string used for
// stable re-identification across hierarchy snapshots.
func (n *Node) Fingerprint() string {
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		if !volatileAttrs[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(n.Attrs[k])
	}
	return b.String()
}

// Walk visits the node and all descendants in depth-first order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Snapshot is one raw hierarchy capture together with the device bounds it
// was taken against.
type Snapshot struct {
	Raw          *Node
	DeviceBounds Rect
}

// File: internal/hierarchy/uiautomator.go
package hierarchy

import (
	"fmt"

	"github.com/beevik/etree"
)

// ParseUIAutomatorXML parses an Android uiautomator dump into a raw node
// tree. Mobile and TV device adapters produce these dumps.
func ParseUIAutomatorXML(data []byte) (*Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse uiautomator xml: %w", err)
	}

	root := doc.SelectElement("hierarchy")
	if root == nil {
		return nil, fmt.Errorf("uiautomator xml has no <hierarchy> root")
	}

	node := &Node{Attrs: map[string]string{attrClass: "hierarchy"}}
	for _, child := range root.SelectElements("node") {
		node.Children = append(node.Children, convertElement(child))
	}
	return node, nil
}

func convertElement(el *etree.Element) *Node {
	n := &Node{Attrs: make(map[string]string, len(el.Attr))}
	for _, attr := range el.Attr {
		if attr.Key == "bounds" {
			if r, err := ParseBounds(attr.Value); err == nil {
				n.Bounds = r
			}
			continue
		}
		n.Attrs[attr.Key] = attr.Value
	}
	for _, child := range el.SelectElements("node") {
		n.Children = append(n.Children, convertElement(child))
	}
	return n
}

// ParseBounds parses the uiautomator bounds notation "[l,t][r,b]".
func ParseBounds(s string) (Rect, error) {
	var r Rect
	if _, err := fmt.Sscanf(s, "[%d,%d][%d,%d]", &r.Left, &r.Top, &r.Right, &r.Bottom); err != nil {
		return Rect{}, fmt.Errorf("invalid bounds %q: %w", s, err)
	}
	return r, nil
}

// File: internal/hierarchy/html.go
package hierarchy

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// interactiveTags are HTML elements treated as clickable for compaction.
var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true, "textarea": true,
}

// skippedTags never contribute to the hierarchy.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true, "meta": true,
	"link": true, "title": true,
}

// ParseHTML converts a captured HTML document into a raw node tree. Web
// adapters have no accessibility geometry, so bounds stay zero and the
// compactor skips the visibility filter.
func ParseHTML(data []byte) (*Node, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	root := convertHTMLNode(doc)
	if root == nil {
		root = &Node{Attrs: map[string]string{attrClass: "html"}}
	}
	return root, nil
}

func convertHTMLNode(hn *html.Node) *Node {
	switch hn.Type {
	case html.DocumentNode:
		n := &Node{Attrs: map[string]string{attrClass: "html"}}
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			if child := convertHTMLNode(c); child != nil {
				n.Children = append(n.Children, child)
			}
		}
		return n
	case html.ElementNode:
		if skippedTags[hn.Data] {
			return nil
		}
		n := &Node{Attrs: map[string]string{attrClass: hn.Data}}
		for _, attr := range hn.Attr {
			switch attr.Key {
			case "id":
				n.Attrs[attrResourceID] = attr.Val
			case "aria-label", "alt":
				n.Attrs[attrLabel] = attr.Val
			case "placeholder":
				n.Attrs[attrHint] = attr.Val
			case "href", "name", "type", "value", "role":
				n.Attrs[attr.Key] = attr.Val
			}
		}
		if interactiveTags[hn.Data] || hasClickRole(hn) {
			n.Attrs["clickable"] = "true"
		}
		if text := directText(hn); text != "" {
			n.Attrs[attrText] = text
		}
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			if child := convertHTMLNode(c); child != nil {
				n.Children = append(n.Children, child)
			}
		}
		return n
	default:
		return nil
	}
}

func hasClickRole(hn *html.Node) bool {
	for _, attr := range hn.Attr {
		if attr.Key == "role" && (attr.Val == "button" || attr.Val == "link") {
			return true
		}
		if attr.Key == "onclick" {
			return true
		}
	}
	return false
}

// directText collects the immediate text children of an element, ignoring
// nested elements so text is attributed to the node that owns it.
func directText(hn *html.Node) string {
	var parts []string
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

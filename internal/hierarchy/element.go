// File: internal/hierarchy/element.go
package hierarchy

// Identifier is the stable address of a logical element across hierarchy
// snapshots: the non-volatile attribute fingerprint plus the element's
// occurrence index among nodes sharing that fingerprint.
type Identifier struct {
	Fingerprint string `json:"fingerprint"`
	Occurrence  int    `json:"occurrence"`
}

// Element is one entry of the flattened optimized tree.
type Element struct {
	Index int
	Node  *Node
	ID    Identifier
}

// ElementList is the indexed, flattened view of an optimized tree. "Find
// again" after a re-capture is a lookup by fingerprint and occurrence, not a
// retained object reference.
type ElementList struct {
	elems         []Element
	byFingerprint map[string][]int
}

// NewElementList flattens the tree in depth-first order, assigning each node
// an index and a stable identifier.
func NewElementList(root *Node) *ElementList {
	l := &ElementList{byFingerprint: make(map[string][]int)}
	root.Walk(func(n *Node) {
		fp := n.Fingerprint()
		occurrence := len(l.byFingerprint[fp])
		idx := len(l.elems)
		l.elems = append(l.elems, Element{
			Index: idx,
			Node:  n,
			ID:    Identifier{Fingerprint: fp, Occurrence: occurrence},
		})
		l.byFingerprint[fp] = append(l.byFingerprint[fp], idx)
	})
	return l
}

// Len returns the number of elements.
func (l *ElementList) Len() int { return len(l.elems) }

// All returns the elements in index order.
func (l *ElementList) All() []Element { return l.elems }

// At returns the element with the given index.
func (l *ElementList) At(index int) (Element, bool) {
	if index < 0 || index >= len(l.elems) {
		return Element{}, false
	}
	return l.elems[index], true
}

// Find re-resolves an identifier captured from an earlier snapshot against
// this list.
func (l *ElementList) Find(id Identifier) (Element, bool) {
	indexes, ok := l.byFingerprint[id.Fingerprint]
	if !ok || id.Occurrence < 0 || id.Occurrence >= len(indexes) {
		return Element{}, false
	}
	return l.elems[indexes[id.Occurrence]], true
}

// FindFocused returns the element whose node currently carries focus.
func (l *ElementList) FindFocused() (Element, bool) {
	for _, e := range l.elems {
		if e.Node.Attrs["focused"] == "true" {
			return e, true
		}
	}
	return Element{}, false
}

package html

import (
	"image"
	"sort"
	"strings"

	"lantern/pkg/invalidation"
)

// NodeType distinguishes the two document node variants.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Animation advances a property value one frame at a time. Animate returns
// the value for the next frame, or ok=false once the configured frame count
// is exhausted and the animation should be dropped.
type Animation interface {
	Animate() (value string, ok bool)
}

// Node is a document tree node: either an element or a run of text.
//
// Style maps each CSS property to a dependency field holding the node's
// resolved value; the cascade writes these and layout reads them, so a style
// change invalidates exactly the geometry that depends on it.
type Node struct {
	Type       NodeType
	TagName    string
	Attributes map[string]string
	Text       string
	Children   []*Node
	Parent     *Node

	Style      map[string]*invalidation.Field[string]
	Animations map[string]Animation
	IsFocused  bool

	// LayoutObject is the layout node currently representing this document
	// node, set during layout and cleared on navigation. It is stored
	// untyped so this package stays below layout in the import graph;
	// consumers type-assert against layout's interfaces.
	LayoutObject any

	// Frame is the embedded document owner for iframe elements, untyped for
	// the same reason as LayoutObject.
	Frame any

	// BlendOp is the node's blend effect from the last paint, untyped like
	// LayoutObject. The compositor swaps animated values in through it
	// without repainting.
	BlendOp any

	// Image is the decoded image for img elements, nil until loaded.
	Image image.Image
}

// NewElement creates an element node attached under parent (which may be nil
// for the root).
func NewElement(tag string, attributes map[string]string, parent *Node) *Node {
	if attributes == nil {
		attributes = make(map[string]string)
	}
	return &Node{
		Type:       ElementNode,
		TagName:    tag,
		Attributes: attributes,
		Parent:     parent,
		Animations: make(map[string]Animation),
	}
}

// NewText creates a text node attached under parent.
func NewText(text string, parent *Node) *Node {
	return &Node{
		Type:       TextNode,
		Text:       text,
		Parent:     parent,
		Animations: make(map[string]Animation),
	}
}

// GetAttribute returns an attribute value and whether it was present.
func (n *Node) GetAttribute(name string) (string, bool) {
	if n.Attributes == nil {
		return "", false
	}
	val, ok := n.Attributes[name]
	return val, ok
}

// Attr returns an attribute value, or the empty string if absent.
func (n *Node) Attr(name string) string {
	val, _ := n.GetAttribute(name)
	return val
}

// AddChild appends a child node and sets its parent pointer.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// StyleValue returns the resolved value of a CSS property without recording
// a dependency edge. It panics if the cascade has not run for this node.
func (n *Node) StyleValue(property string) string {
	return n.Style[property].Get()
}

// TreeToList appends n and all its descendants to list in pre-order.
func TreeToList(n *Node, list []*Node) []*Node {
	list = append(list, n)
	for _, child := range n.Children {
		list = TreeToList(child, list)
	}
	return list
}

// Serialize returns the outer HTML of the node, with attributes in sorted
// order for deterministic output.
func (n *Node) Serialize() string {
	var sb strings.Builder
	serializeNode(&sb, n)
	return sb.String()
}

func serializeNode(sb *strings.Builder, n *Node) {
	if n.Type == TextNode {
		sb.WriteString(n.Text)
		return
	}
	sb.WriteByte('<')
	sb.WriteString(n.TagName)
	if len(n.Attributes) > 0 {
		keys := make([]string, 0, len(n.Attributes))
		for k := range n.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteByte(' ')
			sb.WriteString(k)
			if n.Attributes[k] != "" {
				sb.WriteString(`="`)
				sb.WriteString(n.Attributes[k])
				sb.WriteByte('"')
			}
		}
	}
	sb.WriteByte('>')
	for _, child := range n.Children {
		serializeNode(sb, child)
	}
	if !IsVoidElement(n.TagName) {
		sb.WriteString("</")
		sb.WriteString(n.TagName)
		sb.WriteByte('>')
	}
}

// IsVoidElement reports whether a tag never has children or an end tag.
func IsVoidElement(tag string) bool {
	switch tag {
	case "br", "hr", "img", "input", "meta", "link", "area", "base",
		"col", "embed", "param", "source", "track", "wbr":
		return true
	}
	return false
}

// IsFocusable reports whether a node participates in tab-order focus.
func IsFocusable(n *Node) bool {
	if n.Type != ElementNode {
		return false
	}
	if TabIndex(n) < 0 {
		return false
	}
	if _, ok := n.GetAttribute("tabindex"); ok {
		return true
	}
	switch n.TagName {
	case "input", "button", "a":
		return true
	}
	return false
}

// TabIndex returns the node's effective tab index; elements without an
// explicit tabindex (or with tabindex=0) sort last.
func TabIndex(n *Node) int {
	const last = 9999999
	val, ok := n.GetAttribute("tabindex")
	if !ok {
		return last
	}
	val = strings.TrimSpace(val)
	neg := strings.HasPrefix(val, "-")
	idx := 0
	for _, c := range strings.TrimPrefix(val, "-") {
		if c < '0' || c > '9' {
			return last
		}
		idx = idx*10 + int(c-'0')
	}
	if neg {
		return -idx
	}
	if idx == 0 {
		return last
	}
	return idx
}

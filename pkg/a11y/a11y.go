// Package a11y derives the accessibility tree from the document: roles,
// readable text, and screen bounds for hit testing.
package a11y

import (
	"lantern/pkg/html"
	"lantern/pkg/layout"
	"lantern/pkg/render"
)

// Node is one entry in the accessibility tree. Elements whose role is
// "none" do not appear; their children attach to the nearest ancestor.
type Node struct {
	DOMNode  *html.Node
	Role     string
	Text     string
	Bounds   render.Rect
	Parent   *Node
	Children []*Node
}

// Role maps a document node to its accessibility role.
func Role(n *html.Node) string {
	if n.Type == html.TextNode {
		if n.Parent != nil && html.IsFocusable(n.Parent) {
			return "focusable text"
		}
		return "StaticText"
	}
	if role, ok := n.GetAttribute("role"); ok {
		return role
	}
	switch n.TagName {
	case "a":
		return "link"
	case "input":
		return "textbox"
	case "button":
		return "button"
	case "html":
		return "document"
	case "iframe":
		return "iframe"
	}
	if html.IsFocusable(n) {
		return "focusable"
	}
	return "none"
}

// Build constructs the accessibility tree for a document root.
func Build(root *html.Node) *Node {
	tree := newNode(root, nil)
	buildChildren(root, tree)
	return tree
}

func newNode(n *html.Node, parent *Node) *Node {
	an := &Node{DOMNode: n, Role: Role(n), Parent: parent}
	an.Bounds = nodeBounds(n)
	an.Text = describe(an)
	return an
}

func buildChildren(n *html.Node, attach *Node) {
	for _, child := range n.Children {
		if Role(child) == "none" {
			buildChildren(child, attach)
			continue
		}
		an := newNode(child, attach)
		attach.Children = append(attach.Children, an)
		buildChildren(child, an)
	}
}

func nodeBounds(n *html.Node) render.Rect {
	obj, ok := n.LayoutObject.(layout.Node)
	if !ok || obj == nil {
		return render.Rect{}
	}
	return layout.AbsoluteBounds(obj)
}

// describe builds the spoken text for a node.
func describe(an *Node) string {
	n := an.DOMNode
	var text string
	switch an.Role {
	case "StaticText":
		return n.Text
	case "focusable text":
		return "Focusable text: " + n.Text
	case "document":
		text = "Document"
	case "link":
		text = "Link"
	case "textbox":
		text = "Input box: " + n.Attr("value")
	case "button":
		text = "Button"
	case "iframe":
		text = "Child document"
	case "focusable":
		text = "Focusable element"
	default:
		text = an.Role
	}
	if n.Type == html.ElementNode && n.IsFocused {
		text += " is focused"
	}
	return text
}

// Contains reports whether the point falls inside the node's bounds.
func (an *Node) Contains(x, y float64) bool {
	return an.Bounds.Contains(x, y)
}

// HitTest returns the deepest node containing the point, or nil.
func (an *Node) HitTest(x, y float64) *Node {
	var hit *Node
	if an.Contains(x, y) {
		hit = an
	}
	for _, child := range an.Children {
		if deeper := child.HitTest(x, y); deeper != nil {
			hit = deeper
		}
	}
	return hit
}

// Flatten lists the tree in preorder, the order a screen reader announces.
func (an *Node) Flatten() []*Node {
	list := []*Node{an}
	for _, child := range an.Children {
		list = append(list, child.Flatten()...)
	}
	return list
}

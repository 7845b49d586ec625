package a11y

import (
	"testing"

	"lantern/pkg/html"
)

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	root, err := html.Parse(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func TestRoles(t *testing.T) {
	root := parse(t, `<p>hi <a href=x>link</a> <input> <button>go</button></p>`)
	tree := Build(root)

	roles := make(map[string]bool)
	for _, n := range tree.Flatten() {
		roles[n.Role] = true
	}
	for _, want := range []string{"document", "link", "textbox", "button", "StaticText"} {
		if !roles[want] {
			t.Errorf("missing role %q in %v", want, roles)
		}
	}
	if tree.Role != "document" {
		t.Errorf("root role = %q", tree.Role)
	}
}

func TestRoleAttributeOverrides(t *testing.T) {
	root := parse(t, `<div role=alert>careful</div>`)
	tree := Build(root)
	found := false
	for _, n := range tree.Flatten() {
		if n.Role == "alert" {
			found = true
		}
	}
	if !found {
		t.Errorf("explicit role attribute ignored")
	}
}

func TestNoneRoleLiftsChildren(t *testing.T) {
	root := parse(t, `<div><a href=x>inside</a></div>`)
	tree := Build(root)

	// div and p-level wrappers have no role, so the link hangs directly
	// off the document.
	var link *Node
	for _, n := range tree.Flatten() {
		if n.Role == "link" {
			link = n
		}
	}
	if link == nil {
		t.Fatal("no link node")
	}
	if link.Parent != tree {
		t.Errorf("link parent role = %q, want document root", link.Parent.Role)
	}
}

func TestLinkTextIsFocusable(t *testing.T) {
	root := parse(t, `<a href=x>click me</a>`)
	tree := Build(root)
	found := false
	for _, n := range tree.Flatten() {
		if n.Role == "focusable text" && n.Text == "Focusable text: click me" {
			found = true
		}
	}
	if !found {
		t.Errorf("link text should be announced as focusable")
	}
}

func TestFocusedSuffix(t *testing.T) {
	root := parse(t, `<input>`)
	input := findTag(root, "input")
	input.IsFocused = true
	tree := Build(root)
	found := false
	for _, n := range tree.Flatten() {
		if n.Role == "textbox" && n.Text == "Input box:  is focused" {
			found = true
		}
	}
	if !found {
		var texts []string
		for _, n := range tree.Flatten() {
			texts = append(texts, n.Text)
		}
		t.Errorf("focused input not announced; texts = %q", texts)
	}
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.TagName == tag {
		return n
	}
	for _, c := range n.Children {
		if m := findTag(c, tag); m != nil {
			return m
		}
	}
	return nil
}

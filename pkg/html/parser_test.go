package html

import "testing"

func findFirst(n *Node, tag string) *Node {
	for _, node := range TreeToList(n, nil) {
		if node.Type == ElementNode && node.TagName == tag {
			return node
		}
	}
	return nil
}

func TestParseSimpleDocument(t *testing.T) {
	root, err := Parse(`<html><body><p>Hello</p></body></html>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if root.TagName != "html" {
		t.Fatalf("root = <%s>, want <html>", root.TagName)
	}
	p := findFirst(root, "p")
	if p == nil {
		t.Fatal("no <p> element found")
	}
	if len(p.Children) != 1 || p.Children[0].Type != TextNode || p.Children[0].Text != "Hello" {
		t.Errorf("unexpected <p> children: %v", p.Children)
	}
}

func TestParseImplicitTags(t *testing.T) {
	root, err := Parse(`<p>bare text</p>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if root.TagName != "html" {
		t.Fatalf("root = <%s>, want synthesized <html>", root.TagName)
	}
	body := findFirst(root, "body")
	if body == nil {
		t.Fatal("body not synthesized")
	}
	if p := findFirst(body, "p"); p == nil {
		t.Error("<p> not placed under body")
	}
}

func TestParseHeadContent(t *testing.T) {
	root, err := Parse(`<title>x</title><p>y</p>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	head := findFirst(root, "head")
	if head == nil || findFirst(head, "title") == nil {
		t.Error("<title> not placed under synthesized <head>")
	}
	body := findFirst(root, "body")
	if body == nil || findFirst(body, "p") == nil {
		t.Error("<p> not placed under synthesized <body>")
	}
}

func TestParseAttributes(t *testing.T) {
	root, err := Parse(`<div id="main" class='big' disabled>x</div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	div := findFirst(root, "div")
	if got := div.Attr("id"); got != "main" {
		t.Errorf("id = %q, want main", got)
	}
	if got := div.Attr("class"); got != "big" {
		t.Errorf("class = %q, want big", got)
	}
	if _, ok := div.GetAttribute("disabled"); !ok {
		t.Error("valueless attribute lost")
	}
}

func TestParseScriptBodyIsRawText(t *testing.T) {
	root, err := Parse(`<script>if (a < b) { f(); }</script>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	script := findFirst(root, "script")
	if script == nil {
		t.Fatal("no <script> element")
	}
	if len(script.Children) != 1 || script.Children[0].Text != "if (a < b) { f(); }" {
		t.Errorf("script body mangled: %v", script.Children)
	}
}

func TestParseVoidElements(t *testing.T) {
	root, err := Parse(`<p>a<br>b<input value="x">c</p>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := findFirst(root, "p")
	if len(p.Children) != 5 {
		t.Fatalf("got %d children of <p>, want 5", len(p.Children))
	}
	if p.Children[1].TagName != "br" || len(p.Children[1].Children) != 0 {
		t.Errorf("<br> should be empty, got %v", p.Children[1])
	}
}

func TestParseCommentsAndDoctype(t *testing.T) {
	root, err := Parse(`<!DOCTYPE html><!-- note --><p>x</p>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if findFirst(root, "p") == nil {
		t.Error("content after doctype/comment lost")
	}
}

func TestNormalizeWhitespacePreservesBoundaries(t *testing.T) {
	root, err := Parse("<p>one\n   two <b>three</b> four</p>")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := findFirst(root, "p")
	if p.Children[0].Text != "one two " {
		t.Errorf("leading text = %q", p.Children[0].Text)
	}
	if p.Children[2].Text != " four" {
		t.Errorf("trailing text = %q", p.Children[2].Text)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	root, err := Parse(`<html><body><div id="a">x<br></div></body></html>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := `<html><body><div id="a">x<br></div></body></html>`
	if got := root.Serialize(); got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestTabIndex(t *testing.T) {
	cases := []struct {
		attrs     map[string]string
		tag       string
		focusable bool
	}{
		{nil, "div", false},
		{nil, "a", true},
		{nil, "input", true},
		{map[string]string{"tabindex": "2"}, "div", true},
		{map[string]string{"tabindex": "-1"}, "a", false},
	}
	for _, c := range cases {
		n := NewElement(c.tag, c.attrs, nil)
		if got := IsFocusable(n); got != c.focusable {
			t.Errorf("IsFocusable(<%s %v>) = %v, want %v", c.tag, c.attrs, got, c.focusable)
		}
	}
}

package layout

import (
	"testing"

	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/render"
)

type fakeEnv struct{}

func (fakeEnv) DarkMode() bool  { return false }
func (fakeEnv) SetNeedsRender() {}

func layoutDocument(t *testing.T, markup, sheet string, width, zoom float64) (*html.Node, *DocumentLayout) {
	t.Helper()
	root, err := html.Parse(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	css.InitStyleTree(root)
	rules := css.ParseStylesheet(sheet)
	css.SortRules(rules)
	css.Style(root, rules, fakeEnv{})

	document := NewDocumentLayout(root, nil)
	document.SetViewport(width, zoom)
	document.Layout()
	return root, document
}

// restyleAndLayout re-resolves every node against a new rule list, the way
// the browser dirties all style when the stylesheet set changes.
func restyleAndLayout(t *testing.T, root *html.Node, document *DocumentLayout, sheet string) {
	t.Helper()
	for _, n := range html.TreeToList(root, nil) {
		css.DirtyStyle(n)
	}
	rules := css.ParseStylesheet(sheet)
	css.SortRules(rules)
	css.Style(root, rules, fakeEnv{})
	document.Layout()
}

func findLayout(n Node, tag string) Node {
	if n.DOMNode() != nil && n.DOMNode().TagName == tag {
		if _, isLine := n.(*LineLayout); !isLine {
			return n
		}
	}
	for _, c := range n.Children() {
		if m := findLayout(c, tag); m != nil {
			return m
		}
	}
	return nil
}

func collectLines(n Node) []*LineLayout {
	var lines []*LineLayout
	if l, ok := n.(*LineLayout); ok {
		lines = append(lines, l)
	}
	for _, c := range n.Children() {
		lines = append(lines, collectLines(c)...)
	}
	return lines
}

func collectWords(n Node) []*TextLayout {
	var words []*TextLayout
	if w, ok := n.(*TextLayout); ok {
		words = append(words, w)
	}
	for _, c := range n.Children() {
		words = append(words, collectWords(c)...)
	}
	return words
}

func TestDocumentGeometry(t *testing.T) {
	_, document := layoutDocument(t, "<p>hi</p>", "", 800, 1)
	if got := document.Width(); got != 800-2*HStep {
		t.Errorf("document width = %v, want %v", got, 800-2*HStep)
	}
	if document.X() != HStep || document.Y() != VStep {
		t.Errorf("document origin = (%v, %v)", document.X(), document.Y())
	}
	if document.Height() <= 0 {
		t.Errorf("document height = %v, want positive", document.Height())
	}
}

func TestZoomScalesGeometry(t *testing.T) {
	_, document := layoutDocument(t, "<p>hi</p>", "", 800, 2)
	if document.X() != 2*HStep || document.Y() != 2*VStep {
		t.Errorf("zoomed origin = (%v, %v)", document.X(), document.Y())
	}
	if got := document.Width(); got != 800-4*HStep {
		t.Errorf("zoomed width = %v", got)
	}
}

func TestBlocksStackVertically(t *testing.T) {
	root, document := layoutDocument(t, "<p>one</p><p>two</p>", "", 800, 1)
	_ = root
	body := findLayout(document, "body").(*BlockLayout)
	kids := body.Children()
	if len(kids) != 2 {
		t.Fatalf("body has %d children, want 2", len(kids))
	}
	first, second := kids[0], kids[1]
	if got := second.Y(); got != first.Y()+first.Height() {
		t.Errorf("second block y = %v, want %v", got, first.Y()+first.Height())
	}
	if body.Height() != first.Height()+second.Height() {
		t.Errorf("body height = %v, want children sum %v",
			body.Height(), first.Height()+second.Height())
	}
}

func TestInlineWrapping(t *testing.T) {
	markup := "<p>aaaa bbbb cccc dddd eeee ffff</p>"
	_, document := layoutDocument(t, markup, "", 200, 1)
	p := findLayout(document, "p").(*BlockLayout)
	lines := collectLines(p)
	if len(lines) < 2 {
		t.Fatalf("narrow viewport should wrap, got %d lines", len(lines))
	}
	right := p.X() + p.Width()
	for _, word := range collectWords(p) {
		if word.X() < p.X() {
			t.Errorf("word %q starts before the content edge", word.word)
		}
		if word.X() >= right {
			t.Errorf("word %q starts past the content edge", word.word)
		}
	}
	// Lines stack like blocks.
	for i := 1; i < len(lines); i++ {
		want := lines[i-1].Y() + lines[i-1].Height()
		if lines[i].Y() != want {
			t.Errorf("line %d y = %v, want %v", i, lines[i].Y(), want)
		}
	}
}

func TestSharedBaseline(t *testing.T) {
	sheet := "b { font-size: 32px; }"
	_, document := layoutDocument(t, "<p>small <b>big</b></p>", sheet, 800, 1)
	p := findLayout(document, "p").(*BlockLayout)
	lines := collectLines(p)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	line := lines[0]
	words := collectWords(p)
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	small, big := words[0], words[1]

	if line.ascent.Get() != big.ascent.Get() {
		t.Errorf("line ascent %v should come from the big word %v",
			line.ascent.Get(), big.ascent.Get())
	}
	baseline := line.Y() + line.ascent.Get()
	for _, w := range []*TextLayout{small, big} {
		want := baseline - w.ascent.Get()/1.25
		if w.Y() != want {
			t.Errorf("word %q y = %v, want %v", w.word, w.Y(), want)
		}
	}
	if line.Height() != line.ascent.Get()+line.descent.Get() {
		t.Errorf("line height = %v", line.Height())
	}
}

func TestEmptyLineTakesNoSpace(t *testing.T) {
	_, document := layoutDocument(t, "<p>word<br></p>", "", 800, 1)
	p := findLayout(document, "p").(*BlockLayout)
	lines := collectLines(p)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if h := lines[1].Height(); h != 0 {
		t.Errorf("trailing empty line height = %v, want 0", h)
	}
}

func TestInputFixedWidth(t *testing.T) {
	_, document := layoutDocument(t, `<p><input value=x></p>`, "", 800, 2)
	input := findLayout(document, "input").(*InputLayout)
	if got := input.Width(); got != 2*InputWidthPx {
		t.Errorf("input width = %v, want %v", got, 2*InputWidthPx)
	}
	if input.ascent.Get() != input.Height() || input.descent.Get() != 0 {
		t.Errorf("replaced box baseline: ascent=%v descent=%v height=%v",
			input.ascent.Get(), input.descent.Get(), input.Height())
	}
}

func TestIframeDefaultSizeAndWrapping(t *testing.T) {
	markup := "<div><iframe src=a></iframe><iframe src=b></iframe></div>"
	_, document := layoutDocument(t, markup, "", 400, 1)
	div := findLayout(document, "div").(*BlockLayout)
	lines := collectLines(div)
	if len(lines) != 2 {
		t.Fatalf("two default iframes in a 400px viewport should occupy two lines, got %d", len(lines))
	}
	iframe := findLayout(document, "iframe").(*IframeLayout)
	if got := iframe.Width(); got != IframeWidthPx+2 {
		t.Errorf("iframe width = %v, want %v", got, IframeWidthPx+2)
	}
	if got := iframe.Height(); got != IframeHeightPx+2 {
		t.Errorf("iframe height = %v, want %v", got, IframeHeightPx+2)
	}
}

func TestRelayoutIsIncremental(t *testing.T) {
	root, document := layoutDocument(t, "<p>one</p><p>two</p>", "", 800, 1)

	// A clean tree does not need another pass.
	if document.layoutNeeded() {
		t.Fatalf("document still dirty after layout")
	}

	// Growing one paragraph's font reflows it and everything below.
	heightBefore := document.Height()
	restyleAndLayout(t, root, document, "p { font-size: 32px; }")
	if document.Height() <= heightBefore {
		t.Errorf("height %v should grow past %v after font-size bump",
			document.Height(), heightBefore)
	}
	if document.layoutNeeded() {
		t.Errorf("tree dirty after relayout")
	}
}

func TestStyleChangeMarksAncestors(t *testing.T) {
	root, document := layoutDocument(t, "<div><p>deep</p></div>", "", 800, 1)

	p := findTag(root, "p")
	css.DirtyStyle(p)
	rules := css.ParseStylesheet("p { font-size: 40px; }")
	css.SortRules(rules)
	css.Style(root, rules, fakeEnv{})

	if !document.hasDirtyDescendants {
		t.Errorf("style change below the root should set the root's descendant bit")
	}
	document.Layout()
	if document.hasDirtyDescendants {
		t.Errorf("descendant bit survives layout")
	}
}

func TestMarkChildrenDirtyAfterDOMSplice(t *testing.T) {
	root, document := layoutDocument(t, "<p>one</p>", "", 800, 1)
	p := findTag(root, "p")
	heightBefore := document.Height()

	for i := 0; i < 20; i++ {
		p.AddChild(html.NewText("added-word", p))
	}
	for _, child := range p.Children {
		if child.Style == nil {
			css.InitStyleTree(child)
		}
	}
	MarkChildrenDirty(p)
	restyleAndLayout(t, root, document, "")

	words := collectWords(document)
	if len(words) != 21 {
		t.Fatalf("got %d words, want 21", len(words))
	}
	if document.Height() <= heightBefore {
		t.Errorf("document should grow after splicing in words")
	}
}

func TestButtonWithNonTextChildPaintsEmpty(t *testing.T) {
	_, document := layoutDocument(t, "<p><button><b>x</b></button></p>", "", 800, 1)
	button := findLayout(document, "button").(*InputLayout)
	for _, cmd := range button.Paint() {
		if _, ok := cmd.(*render.DrawText); ok {
			t.Errorf("button with element child should not paint text")
		}
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

package layout

import (
	"lantern/pkg/html"
	"lantern/pkg/invalidation"
	"lantern/pkg/render"
)

// BlockLayout lays out one element box. In block mode its children are
// further blocks; in inline mode it rebuilds a list of line boxes from the
// element's text and replaced content whenever the children field dirties.
type BlockLayout struct {
	geom
	dirtyBits
	node     *html.Node
	parent   Node
	previous Node
	frame    Frame

	children *invalidation.Field[[]Node]

	// Inline rebuild state, live only while the children field recomputes.
	tempChildren []Node
	cursorX      float64
	previousWord Node
}

func NewBlockLayout(node *html.Node, parent, previous Node, frame Frame) *BlockLayout {
	b := &BlockLayout{node: node, parent: parent, previous: previous, frame: frame}
	b.geom = newGeom(b)
	b.children = invalidation.NewAny[[]Node]("children", b)
	node.LayoutObject = b
	return b
}

func (b *BlockLayout) layoutNeeded() bool {
	return b.hasDirtyDescendants || b.geom.dirty() || b.children.Dirty()
}

func (b *BlockLayout) Layout() {
	if !b.layoutNeeded() {
		return
	}
	b.zoom.Copy(geomOf(b.parent).zoom)
	b.width.Copy(geomOf(b.parent).width)
	b.x.Copy(geomOf(b.parent).x)
	if b.previous != nil {
		prevY := geomOf(b.previous).y.Read(b.y)
		prevHeight := geomOf(b.previous).height.Read(b.y)
		b.y.Set(prevY + prevHeight)
	} else {
		b.y.Copy(geomOf(b.parent).y)
	}

	if b.children.Dirty() {
		if layoutMode(b.node) == "block" {
			var children []Node
			var previous Node
			for _, child := range b.node.Children {
				block := NewBlockLayout(child, b, previous, b.frame)
				children = append(children, block)
				previous = block
			}
			b.children.Set(children)
		} else {
			b.tempChildren = nil
			b.previousWord = nil
			b.newLine()
			b.recurse(b.node)
			b.children.Set(b.tempChildren)
			b.tempChildren = nil
		}
	}
	for _, child := range b.children.Get() {
		child.Layout()
	}

	children := b.children.Read(b.height)
	total := 0.0
	for _, child := range children {
		total += geomOf(child).height.Read(b.height)
	}
	b.height.Set(total)
	b.hasDirtyDescendants = false
}

// newLine opens a fresh line box and resets the inline cursor.
func (b *BlockLayout) newLine() {
	b.previousWord = nil
	b.cursorX = b.x.Read(b.children)
	var last Node
	if len(b.tempChildren) > 0 {
		last = b.tempChildren[len(b.tempChildren)-1]
	}
	b.tempChildren = append(b.tempChildren, NewLineLayout(b.node, b, last))
}

func (b *BlockLayout) recurse(node *html.Node) {
	if node.Type == html.TextNode {
		for _, word := range splitWords(node.Text) {
			b.word(node, word)
		}
		return
	}
	switch node.TagName {
	case "br":
		b.newLine()
	case "input", "button":
		b.input(node)
	case "img":
		b.image(node)
	case "iframe":
		b.iframe(node)
	default:
		for _, child := range node.Children {
			b.recurse(child)
		}
	}
}

func (b *BlockLayout) word(node *html.Node, word string) {
	zoom := b.zoom.Read(b.children)
	font := styleFont(node, zoom, b.children)
	w := font.MeasureText(word)
	b.addInlineChild(node, w, func(line *LineLayout, previous Node) Node {
		return NewTextLayout(node, line, previous, word)
	})
	b.cursorX += w + font.MeasureText(" ")
}

func (b *BlockLayout) input(node *html.Node) {
	zoom := b.zoom.Read(b.children)
	w := DPX(InputWidthPx, zoom)
	font := styleFont(node, zoom, b.children)
	b.addInlineChild(node, w, func(line *LineLayout, previous Node) Node {
		return NewInputLayout(node, line, previous, b.frame)
	})
	b.cursorX += w + font.MeasureText(" ")
}

func (b *BlockLayout) image(node *html.Node) {
	zoom := b.zoom.Read(b.children)
	var w float64
	if attr, ok := attrPx(node, "width"); ok {
		w = DPX(attr, zoom)
	} else {
		w = DPX(intrinsicWidth(node), zoom)
	}
	font := styleFont(node, zoom, b.children)
	b.addInlineChild(node, w, func(line *LineLayout, previous Node) Node {
		return NewImageLayout(node, line, previous, b.frame)
	})
	b.cursorX += w + font.MeasureText(" ")
}

func (b *BlockLayout) iframe(node *html.Node) {
	zoom := b.zoom.Read(b.children)
	var w float64
	if attr, ok := attrPx(node, "width"); ok {
		w = DPX(attr+2, zoom)
	} else {
		w = DPX(IframeWidthPx+2, zoom)
	}
	font := styleFont(node, zoom, b.children)
	b.addInlineChild(node, w, func(line *LineLayout, previous Node) Node {
		return NewIframeLayout(node, line, previous, b.frame)
	})
	b.cursorX += w + font.MeasureText(" ")
}

// addInlineChild appends a word or replaced box to the current line, opening
// a new one first when the child would overflow the available width.
func (b *BlockLayout) addInlineChild(node *html.Node, w float64, build func(line *LineLayout, previous Node) Node) {
	right := b.x.Read(b.children) + b.width.Read(b.children)
	if b.cursorX+w > right {
		b.newLine()
	}
	line := b.tempChildren[len(b.tempChildren)-1].(*LineLayout)
	child := build(line, b.previousWord)
	line.append(child)
	b.previousWord = child
}

// ShouldPaint is false for replaced elements: their dedicated layout objects
// paint them instead of the wrapping block.
func (b *BlockLayout) ShouldPaint() bool {
	if b.node.Type == html.TextNode {
		return true
	}
	switch b.node.TagName {
	case "input", "button", "img", "iframe":
		return false
	}
	return true
}

func (b *BlockLayout) Paint() []render.Item {
	return paintBackground(b.node, nil, selfRect(b), b.zoom.Get())
}

func (b *BlockLayout) PaintEffects(cmds []render.Item) []render.Item {
	cmds = paintOutline(b.node, cmds, selfRect(b), b.zoom.Get())
	return render.PaintVisualEffects(b.node, cmds, selfRect(b))
}

func (b *BlockLayout) Children() []Node    { return b.children.Get() }
func (b *BlockLayout) DOMNode() *html.Node { return b.node }

func (b *BlockLayout) parentNode() Node    { return b.parent }
func (b *BlockLayout) MarkAncestorsDirty() { markAncestors(b) }

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

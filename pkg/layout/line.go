package layout

import (
	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/invalidation"
	"lantern/pkg/render"
	"lantern/pkg/text"
)

// inlineChild is a word or replaced box sitting on a line. The line aligns
// children on a shared baseline through these fields.
type inlineChild interface {
	Node
	geomHolder
	fontField() *invalidation.Field[*text.Font]
	ascentField() *invalidation.Field[float64]
	descentField() *invalidation.Field[float64]
}

// LineLayout is one line box. Its children are rebuilt wholesale by the
// owning block, so they live in a plain slice rather than a field.
type LineLayout struct {
	geom
	dirtyBits
	node     *html.Node
	parent   Node
	previous Node
	children []Node

	ascent  *invalidation.Field[float64]
	descent *invalidation.Field[float64]
}

func NewLineLayout(node *html.Node, parent, previous Node) *LineLayout {
	l := &LineLayout{node: node, parent: parent, previous: previous}
	l.geom = newGeom(l)
	l.ascent = invalidation.New[float64]("ascent", l)
	l.descent = invalidation.New[float64]("descent", l)
	return l
}

func (l *LineLayout) append(child Node) {
	l.children = append(l.children, child)
}

func (l *LineLayout) layoutNeeded() bool {
	return l.hasDirtyDescendants || l.geom.dirty() ||
		fieldsDirty(l.ascent, l.descent)
}

func (l *LineLayout) Layout() {
	if !l.layoutNeeded() {
		return
	}
	l.zoom.Copy(geomOf(l.parent).zoom)
	l.width.Copy(geomOf(l.parent).width)
	l.x.Copy(geomOf(l.parent).x)
	if l.previous != nil {
		prevY := geomOf(l.previous).y.Read(l.y)
		prevHeight := geomOf(l.previous).height.Read(l.y)
		l.y.Set(prevY + prevHeight)
	} else {
		l.y.Copy(geomOf(l.parent).y)
	}

	for _, child := range l.children {
		child.Layout()
	}
	// An empty line (a <br> with nothing after it, say) takes no space.
	if len(l.children) == 0 {
		l.ascent.Set(0)
		l.descent.Set(0)
		l.height.Set(0)
		l.hasDirtyDescendants = false
		return
	}

	maxAscent, maxDescent := 0.0, 0.0
	for _, c := range l.children {
		child := c.(inlineChild)
		if a := child.ascentField().Read(l.ascent); a > maxAscent {
			maxAscent = a
		}
		if d := child.descentField().Read(l.descent); d > maxDescent {
			maxDescent = d
		}
	}
	l.ascent.Set(maxAscent)
	l.descent.Set(maxDescent)

	// Words hang from the shared baseline; replaced content sits on it.
	for _, c := range l.children {
		child := c.(inlineChild)
		childY := child.geomFields().y
		baseline := l.y.Read(childY) + l.ascent.Read(childY)
		ascent := child.ascentField().Read(childY)
		if _, isText := c.(*TextLayout); isText {
			childY.Set(baseline - ascent/1.25)
		} else {
			childY.Set(baseline - ascent)
		}
	}

	l.height.Set(l.ascent.Read(l.height) + l.descent.Read(l.height))
	l.hasDirtyDescendants = false
}

func (l *LineLayout) ShouldPaint() bool    { return true }
func (l *LineLayout) Paint() []render.Item { return nil }

// PaintEffects draws one outline around all this line's children that share
// an outlined parent, so a focused multi-word link gets a single ring.
func (l *LineLayout) PaintEffects(cmds []render.Item) []render.Item {
	var outlineRect render.Rect
	var outlineNode *html.Node
	for _, child := range l.children {
		parent := child.DOMNode().Parent
		if parent == nil {
			continue
		}
		if _, ok := css.ParseOutline(parent.StyleValue("outline")); ok {
			outlineRect = outlineRect.Union(selfRect(child))
			outlineNode = parent
		}
	}
	if outlineNode != nil {
		cmds = paintOutline(outlineNode, cmds, outlineRect, l.zoom.Get())
	}
	return cmds
}

func (l *LineLayout) Children() []Node    { return l.children }
func (l *LineLayout) DOMNode() *html.Node { return l.node }

func (l *LineLayout) parentNode() Node    { return l.parent }
func (l *LineLayout) MarkAncestorsDirty() { markAncestors(l) }

// TextLayout is a single word on a line.
type TextLayout struct {
	geom
	dirtyBits
	node     *html.Node
	parent   *LineLayout
	previous Node
	word     string

	font    *invalidation.Field[*text.Font]
	ascent  *invalidation.Field[float64]
	descent *invalidation.Field[float64]
}

func NewTextLayout(node *html.Node, parent *LineLayout, previous Node, word string) *TextLayout {
	t := &TextLayout{node: node, parent: parent, previous: previous, word: word}
	t.geom = newGeom(t)
	t.font = invalidation.NewAny[*text.Font]("font", t)
	t.ascent = invalidation.New[float64]("ascent", t)
	t.descent = invalidation.New[float64]("descent", t)
	node.LayoutObject = t
	return t
}

func (t *TextLayout) Word() string { return t.word }

func (t *TextLayout) layoutNeeded() bool {
	return t.hasDirtyDescendants || t.geom.dirty() ||
		fieldsDirty(t.font, t.ascent, t.descent)
}

func (t *TextLayout) Layout() {
	if !t.layoutNeeded() {
		return
	}
	t.zoom.Copy(geomOf(t.parent).zoom)
	if t.font.Dirty() {
		zoom := t.zoom.Read(t.font)
		t.font.Set(styleFont(t.node, zoom, t.font))
	}
	f := t.font.Read(t.width)
	t.width.Set(f.MeasureText(t.word))
	f = t.font.Read(t.ascent)
	t.ascent.Set(f.Ascent() * 1.25)
	f = t.font.Read(t.descent)
	t.descent.Set(f.Descent() * 1.25)
	f = t.font.Read(t.height)
	t.height.Set(f.Linespace() * 1.25)

	if t.previous != nil {
		prev := t.previous.(inlineChild)
		prevX := prev.geomFields().x.Read(t.x)
		prevWidth := prev.geomFields().width.Read(t.x)
		space := prev.fontField().Read(t.x).MeasureText(" ")
		t.x.Set(prevX + prevWidth + space)
	} else {
		t.x.Copy(geomOf(t.parent).x)
	}
	// y is assigned by the line once every child's ascent is known.
	t.hasDirtyDescendants = false
}

func (t *TextLayout) ShouldPaint() bool { return true }

func (t *TextLayout) Paint() []render.Item {
	color := t.node.StyleValue("color")
	return []render.Item{
		render.NewDrawText(t.x.Get(), t.y.Get(), t.word, t.font.Get(), color),
	}
}

func (t *TextLayout) PaintEffects(cmds []render.Item) []render.Item { return cmds }

func (t *TextLayout) Children() []Node    { return nil }
func (t *TextLayout) DOMNode() *html.Node { return t.node }

func (t *TextLayout) fontField() *invalidation.Field[*text.Font] { return t.font }
func (t *TextLayout) ascentField() *invalidation.Field[float64]  { return t.ascent }
func (t *TextLayout) descentField() *invalidation.Field[float64] { return t.descent }

func (t *TextLayout) parentNode() Node    { return t.parent }
func (t *TextLayout) MarkAncestorsDirty() { markAncestors(t) }

// Package layout builds and incrementally maintains the layout tree. Every
// geometry value lives in a dependency field, so each pass recomputes only
// the fields a style or DOM change actually invalidated; subtrees with no
// dirty descendants are skipped outright.
package layout

import (
	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/invalidation"
	"lantern/pkg/render"
	"lantern/pkg/text"
)

// Device-independent layout constants, in CSS pixels.
const (
	HStep = 13
	VStep = 18

	InputWidthPx   = 200
	IframeWidthPx  = 300
	IframeHeightPx = 150
)

// DPX converts CSS pixels to device pixels at the given zoom.
func DPX(cssPx, zoom float64) float64 {
	return cssPx * zoom
}

// Node is one object in the layout tree.
type Node interface {
	// Layout recomputes the node's dirty geometry fields and recurses. It
	// is a no-op when nothing below the node is dirty.
	Layout()
	// ShouldPaint reports whether the node paints its own commands (replaced
	// elements are painted by their dedicated layout objects, not by the
	// block that wraps them).
	ShouldPaint() bool
	Paint() []render.Item
	// PaintEffects wraps already-painted commands in the node's visual
	// effects.
	PaintEffects(cmds []render.Item) []render.Item
	Children() []Node
	DOMNode() *html.Node

	X() float64
	Y() float64
	Width() float64
	Height() float64

	// MarkAncestorsDirty sets the has-dirty-descendants bit up the parent
	// chain so Layout descends to this node next pass.
	MarkAncestorsDirty()
}

// Frame is the embedded-document hook an iframe layout drives. The concrete
// type lives above this package and is found by type-asserting the DOM
// node's Frame handle.
type Frame interface {
	Loaded() bool
	SetViewport(width, height float64)
	Scroll() float64
	DocumentLayout() Node
}

// BlockElements are the tags that force block layout mode on their parent.
var BlockElements = map[string]bool{
	"html": true, "body": true, "article": true, "section": true,
	"nav": true, "aside": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "hgroup": true, "header": true,
	"footer": true, "address": true, "p": true, "hr": true, "pre": true,
	"blockquote": true, "ol": true, "ul": true, "menu": true, "li": true,
	"dl": true, "dt": true, "dd": true, "figure": true, "figcaption": true,
	"main": true, "div": true, "table": true, "form": true, "fieldset": true,
	"legend": true, "details": true, "summary": true,
}

// layoutMode decides between block and inline layout for a node's children.
func layoutMode(node *html.Node) string {
	if node.Type == html.TextNode {
		return "inline"
	}
	if len(node.Children) > 0 {
		for _, child := range node.Children {
			if child.Type == html.ElementNode && BlockElements[child.TagName] {
				return "block"
			}
		}
		return "inline"
	}
	if node.TagName == "input" || node.TagName == "img" || node.TagName == "iframe" {
		return "inline"
	}
	return "block"
}

// styleFont resolves a node's font from its style fields, recording notify
// as a dependent of each field read.
func styleFont(node *html.Node, zoom float64, notify invalidation.Dependent) *text.Font {
	weight := node.Style["font-weight"].Read(notify)
	style := node.Style["font-style"].Read(notify)
	size := css.MustParsePx(node.Style["font-size"].Read(notify)) * zoom
	return text.Get(size, weight, style)
}

// paintOutline appends the node's outline stroke, if it declares one.
func paintOutline(node *html.Node, cmds []render.Item, rect render.Rect, zoom float64) []render.Item {
	outline, ok := css.ParseOutline(node.StyleValue("outline"))
	if !ok {
		return cmds
	}
	return append(cmds, render.NewDrawOutline(rect, outline.Color, DPX(outline.Thickness, zoom)))
}

// paintBackground appends the node's background rect, rounded when a border
// radius is set.
func paintBackground(node *html.Node, cmds []render.Item, rect render.Rect, zoom float64) []render.Item {
	bgcolor := node.StyleValue("background-color")
	if bgcolor == "transparent" || bgcolor == "" {
		return cmds
	}
	radius := DPX(css.MustParsePx(node.StyleValue("border-radius")), zoom)
	if radius > 0 {
		return append(cmds, render.NewDrawRRect(rect, radius, bgcolor))
	}
	return append(cmds, render.NewDrawRect(rect, bgcolor))
}

// PaintTree walks the layout tree post-order: a node's commands come first,
// children append theirs, then the node's effects wrap the lot. The roots
// land in displayList.
func PaintTree(object Node, displayList *[]render.Item) {
	var cmds []render.Item
	if object.ShouldPaint() {
		cmds = object.Paint()
	}
	if iframe, ok := object.(*IframeLayout); ok {
		if frame := iframe.frame(); frame != nil && frame.Loaded() {
			PaintTree(frame.DocumentLayout(), &cmds)
		}
	} else {
		for _, child := range object.Children() {
			PaintTree(child, &cmds)
		}
	}
	if object.ShouldPaint() {
		cmds = object.PaintEffects(cmds)
	}
	*displayList = append(*displayList, cmds...)
}

// selfRect is a node's border box in device pixels.
func selfRect(n Node) render.Rect {
	return render.MakeRectXYWH(n.X(), n.Y(), n.Width(), n.Height())
}

// SelfRect is a layout node's border box in device pixels.
func SelfRect(n Node) render.Rect { return selfRect(n) }

// AbsoluteBounds is a node's border box with every ancestor element's
// transform applied, for hit testing and compositing overlap checks.
func AbsoluteBounds(n Node) render.Rect {
	rect := selfRect(n)
	for cur := n.DOMNode(); cur != nil; cur = cur.Parent {
		if tr, ok := css.ParseTransform(cur.StyleValue("transform")); ok {
			rect = rect.Offset(tr.X, tr.Y)
		}
	}
	return rect
}

// MarkChildrenDirty dirties the children field of the block enclosing a DOM
// node, forcing its layout list to rebuild. Used when scripts splice the
// document under an already-laid-out element.
func MarkChildrenDirty(node *html.Node) {
	var obj Node
	for n := node; n != nil; n = n.Parent {
		if lo, ok := n.LayoutObject.(Node); ok && lo != nil {
			obj = lo
			break
		}
	}
	for obj != nil {
		switch v := obj.(type) {
		case *BlockLayout:
			v.children.Mark()
			return
		case *DocumentLayout:
			v.children.Mark()
			return
		}
		c, ok := obj.(container)
		if !ok {
			return
		}
		obj = c.parentNode()
	}
}

// dirtyBits is the shared subtree-pruning state embedded in every layout
// object.
type dirtyBits struct {
	hasDirtyDescendants bool
}

func (d *dirtyBits) bits() *dirtyBits { return d }

// container is the internal view of a layout object the pruning walk needs.
type container interface {
	bits() *dirtyBits
	parentNode() Node
}

func markAncestors(n container) {
	p := n.parentNode()
	for p != nil {
		c, ok := p.(container)
		if !ok {
			return
		}
		if c.bits().hasDirtyDescendants {
			return
		}
		c.bits().hasDirtyDescendants = true
		p = c.parentNode()
	}
}

// fieldsDirty reports whether any of the fields still needs recomputing.
func fieldsDirty(fields ...interface{ Dirty() bool }) bool {
	for _, f := range fields {
		if f.Dirty() {
			return true
		}
	}
	return false
}

// geom is the dependency-field geometry every layout object carries.
type geom struct {
	zoom   *invalidation.Field[float64]
	width  *invalidation.Field[float64]
	height *invalidation.Field[float64]
	x      *invalidation.Field[float64]
	y      *invalidation.Field[float64]
}

func newGeom(owner invalidation.Owner) geom {
	return geom{
		zoom:   invalidation.New[float64]("zoom", owner),
		width:  invalidation.New[float64]("width", owner),
		height: invalidation.New[float64]("height", owner),
		x:      invalidation.New[float64]("x", owner),
		y:      invalidation.New[float64]("y", owner),
	}
}

func (g *geom) X() float64      { return g.x.Get() }
func (g *geom) Y() float64      { return g.y.Get() }
func (g *geom) Width() float64  { return g.width.Get() }
func (g *geom) Height() float64 { return g.height.Get() }

func (g *geom) geomFields() *geom { return g }

func (g *geom) dirty() bool {
	return fieldsDirty(g.zoom, g.width, g.height, g.x, g.y)
}

// geomHolder exposes a node's geometry fields inside the package, so
// siblings and children can record dependency edges against them.
type geomHolder interface {
	geomFields() *geom
}

func geomOf(n Node) *geom {
	return n.(geomHolder).geomFields()
}

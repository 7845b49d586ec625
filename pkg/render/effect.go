package render

import (
	"github.com/fogleman/gg"

	"lantern/pkg/css"
	"lantern/pkg/html"
)

// Effect is a paint-tree item that wraps children and maps rectangles
// between its local space and its parent's space. Clone rebuilds the effect
// with a different child list but identical parameters, which is how the
// compositor swaps animated values into an existing draw list.
type Effect interface {
	Item
	Map(r Rect) Rect
	Unmap(r Rect) Rect
	NeedsCompositing() bool
	Node() *html.Node
	Clone(children []Item) Effect
	AppendChild(child Item)
}

// Blend applies opacity and a blend mode to its children. When it isolates
// (opacity below 1 or an explicit mode) the children render to an offscreen
// surface that is composed back pixel-wise; otherwise it is a structural
// no-op kept as a stable attachment point for animated updates.
type Blend struct {
	base
	Opacity    float64
	BlendMode  string
	node       *html.Node
	children   []Item
	shouldSave bool
}

func NewBlend(opacity float64, blendMode string, node *html.Node, children []Item) *Blend {
	b := &Blend{
		Opacity:    opacity,
		BlendMode:  blendMode,
		node:       node,
		children:   children,
		shouldSave: blendMode != "" || opacity < 1.0,
	}
	for _, c := range children {
		b.rect = b.rect.Union(c.Bounds())
		c.SetParent(b)
	}
	return b
}

func (b *Blend) Children() []Item { return b.children }
func (b *Blend) Node() *html.Node { return b.node }

// Map clips to the blend's own bounds when isolating: nothing a child draws
// outside survives the offscreen compose.
func (b *Blend) Map(r Rect) Rect {
	if !b.shouldSave {
		return r
	}
	if !r.Intersects(b.rect) {
		return Rect{}
	}
	return MakeRect(
		max(r.Left, b.rect.Left), max(r.Top, b.rect.Top),
		min(r.Right, b.rect.Right), min(r.Bottom, b.rect.Bottom),
	)
}

func (b *Blend) Unmap(r Rect) Rect { return r }

func (b *Blend) NeedsCompositing() bool {
	if b.shouldSave {
		return true
	}
	for _, c := range b.children {
		if e, ok := c.(Effect); ok && e.NeedsCompositing() {
			return true
		}
	}
	return false
}

func (b *Blend) Clone(children []Item) Effect {
	return NewBlend(b.Opacity, b.BlendMode, b.node, children)
}

// AppendChild adds a child after construction, growing the bounds to cover
// it. The compositor uses this when several layers share a cloned ancestor.
func (b *Blend) AppendChild(child Item) {
	child.SetParent(b)
	b.children = append(b.children, child)
	b.rect = b.rect.Union(child.Bounds())
}

func (b *Blend) Execute(ctx *gg.Context, dx, dy float64) {
	if !b.shouldSave {
		for _, c := range b.children {
			c.Execute(ctx, dx, dy)
		}
		return
	}
	layer := gg.NewContext(ctx.Width(), ctx.Height())
	for _, c := range b.children {
		c.Execute(layer, dx, dy)
	}
	composeLayer(ctx, layer, b.Opacity, b.BlendMode)
}

// Transform translates its children. Only translate() is supported, so the
// mapping is a rect offset in both directions.
type Transform struct {
	base
	Translation css.Translation
	node        *html.Node
	children    []Item
}

func NewTransform(translation css.Translation, rect Rect, node *html.Node, children []Item) *Transform {
	t := &Transform{Translation: translation, node: node, children: children}
	t.rect = rect
	for _, c := range children {
		c.SetParent(t)
	}
	return t
}

func (t *Transform) Children() []Item { return t.children }
func (t *Transform) Node() *html.Node { return t.node }

func (t *Transform) Map(r Rect) Rect {
	return r.Offset(t.Translation.X, t.Translation.Y)
}

func (t *Transform) Unmap(r Rect) Rect {
	return r.Offset(-t.Translation.X, -t.Translation.Y)
}

func (t *Transform) NeedsCompositing() bool {
	for _, c := range t.children {
		if e, ok := c.(Effect); ok && e.NeedsCompositing() {
			return true
		}
	}
	return false
}

func (t *Transform) Clone(children []Item) Effect {
	return NewTransform(t.Translation, t.rect, t.node, children)
}

func (t *Transform) AppendChild(child Item) {
	child.SetParent(t)
	t.children = append(t.children, child)
}

func (t *Transform) Execute(ctx *gg.Context, dx, dy float64) {
	for _, c := range t.children {
		c.Execute(ctx, dx+t.Translation.X, dy+t.Translation.Y)
	}
}

// PaintVisualEffects wraps a node's painted commands in its visual effects:
// an optional rounded-rect clip mask for overflow:clip, then a blend (always
// present, even as a no-op, so animated updates have a stable node to attach
// to), then the node's transform. The blend is remembered on the node.
func PaintVisualEffects(node *html.Node, cmds []Item, rect Rect) []Item {
	opacity := mustStyleFloat(node, "opacity")
	blendMode := node.StyleValue("mix-blend-mode")
	translation, _ := css.ParseTransform(node.StyleValue("transform"))

	if node.StyleValue("overflow") == "clip" {
		radius := css.MustParsePx(node.StyleValue("border-radius"))
		if blendMode == "" {
			blendMode = "source-over"
		}
		cmds = append(cmds, NewBlend(1.0, "destination-in", nil,
			[]Item{NewDrawRRect(rect, radius, "white")}))
	}

	blend := NewBlend(opacity, blendMode, node, cmds)
	node.BlendOp = blend
	return []Item{NewTransform(translation, rect, node, []Item{blend})}
}

// AddParentPointers fixes up parent links over a whole display list. Paint
// builds the tree bottom-up, so the roots get their nil parents here.
func AddParentPointers(items []Item, parent Item) {
	for _, item := range items {
		item.SetParent(parent)
		AddParentPointers(item.Children(), item)
	}
}

// LocalToAbsolute maps a rect from an item's local space to root space by
// applying every ancestor effect's mapping, innermost first.
func LocalToAbsolute(item Item, rect Rect) Rect {
	for p := item.Parent(); p != nil; p = p.Parent() {
		if e, ok := p.(Effect); ok {
			rect = e.Map(rect)
		}
	}
	return rect
}

// AbsoluteToLocal maps a root-space rect into an item's local space by
// unmapping ancestor effects outermost first.
func AbsoluteToLocal(item Item, rect Rect) Rect {
	var chain []Effect
	for p := item.Parent(); p != nil; p = p.Parent() {
		if e, ok := p.(Effect); ok {
			chain = append(chain, e)
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		rect = chain[i].Unmap(rect)
	}
	return rect
}

// AbsoluteBounds is the item's bounds in root space.
func AbsoluteBounds(item Item) Rect {
	return LocalToAbsolute(item, item.Bounds())
}

func mustStyleFloat(node *html.Node, property string) float64 {
	return css.MustParseNumber(node.StyleValue(property))
}

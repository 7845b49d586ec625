package layout

import (
	"lantern/pkg/html"
	"lantern/pkg/invalidation"
	"lantern/pkg/render"
)

// DocumentLayout is the layout root for one frame's document. The viewport
// size and zoom arrive from the owning frame; everything below flows from
// the dependency fields.
type DocumentLayout struct {
	geom
	dirtyBits
	node  *html.Node
	owner Frame

	viewportWidth float64
	viewportZoom  float64

	children *invalidation.Field[[]Node]
}

func NewDocumentLayout(node *html.Node, owner Frame) *DocumentLayout {
	d := &DocumentLayout{node: node, owner: owner}
	d.geom = newGeom(d)
	d.children = invalidation.NewAny[[]Node]("children", d)
	node.LayoutObject = d
	return d
}

// SetViewport records the frame's viewport, dirtying the document when the
// size or zoom actually changed so the next Layout call reflows.
func (d *DocumentLayout) SetViewport(width, zoom float64) {
	if width != d.viewportWidth {
		d.viewportWidth = width
		d.width.Mark()
	}
	if zoom != d.viewportZoom {
		d.viewportZoom = zoom
		d.zoom.Mark()
	}
}

func (d *DocumentLayout) layoutNeeded() bool {
	return d.hasDirtyDescendants || d.geom.dirty() || d.children.Dirty()
}

func (d *DocumentLayout) Layout() {
	if !d.layoutNeeded() {
		return
	}
	d.zoom.Set(d.viewportZoom)
	d.width.Set(d.viewportWidth - 2*DPX(HStep, d.viewportZoom))
	d.x.Set(DPX(HStep, d.viewportZoom))
	d.y.Set(DPX(VStep, d.viewportZoom))

	var child Node
	if d.children.Dirty() {
		child = NewBlockLayout(d.node, d, nil, d.owner)
		d.children.Set([]Node{child})
	} else {
		child = d.children.Get()[0]
	}
	child.Layout()

	children := d.children.Read(d.height)
	d.height.Set(geomOf(children[0]).height.Read(d.height))
	d.hasDirtyDescendants = false
}

func (d *DocumentLayout) ShouldPaint() bool    { return true }
func (d *DocumentLayout) Paint() []render.Item { return nil }

func (d *DocumentLayout) PaintEffects(cmds []render.Item) []render.Item { return cmds }

func (d *DocumentLayout) Children() []Node    { return d.children.Get() }
func (d *DocumentLayout) DOMNode() *html.Node { return d.node }

func (d *DocumentLayout) parentNode() Node    { return nil }
func (d *DocumentLayout) MarkAncestorsDirty() { markAncestors(d) }

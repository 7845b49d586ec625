// Package composite splits a display list into independently rastered
// layers, so animating a visual effect re-draws cached surfaces instead of
// re-painting the document.
package composite

import (
	"github.com/fogleman/gg"

	"lantern/pkg/html"
	"lantern/pkg/render"
)

// Layer is a group of paint items rastered together onto one cached
// surface. All items in a layer hang off the same effect parent.
type Layer struct {
	items   []render.Item
	surface *gg.Context
}

func NewLayer(item render.Item) *Layer {
	return &Layer{items: []render.Item{item}}
}

// CanMerge reports whether the item shares this layer's effect parent, the
// condition under which drawing them together is order-safe.
func (l *Layer) CanMerge(item render.Item) bool {
	return item.Parent() == l.items[0].Parent()
}

func (l *Layer) Add(item render.Item) {
	l.items = append(l.items, item)
}

func (l *Layer) Items() []render.Item { return l.items }

// CompositedBounds is the union of the items' absolute bounds, outset by a
// pixel so antialiased edges survive the raster crop.
func (l *Layer) CompositedBounds() render.Rect {
	var rect render.Rect
	for _, item := range l.items {
		rect = rect.Union(render.LocalToAbsolute(item, item.Bounds()))
	}
	return rect.Outset(1)
}

// AbsoluteBounds is where the layer lands on screen, used for the overlap
// check that keeps paint order correct across layers. Unlike the raster
// bounds it carries no outset, so adjacent layers still merge.
func (l *Layer) AbsoluteBounds() render.Rect {
	var rect render.Rect
	for _, item := range l.items {
		rect = rect.Union(render.AbsoluteBounds(item))
	}
	return rect
}

// Raster draws the layer's items onto its cached surface. The surface is
// allocated lazily and recreated only when the rounded-out size changes.
func (l *Layer) Raster() {
	bounds := l.CompositedBounds()
	if bounds.Empty() {
		return
	}
	irect := bounds.RoundOut()
	w, h := int(irect.Width()), int(irect.Height())
	if l.surface == nil || l.surface.Width() != w || l.surface.Height() != h {
		l.surface = gg.NewContext(w, h)
	} else {
		l.surface.SetRGBA(0, 0, 0, 0)
		l.surface.Clear()
	}
	for _, item := range l.items {
		item.Execute(l.surface, -bounds.Left, -bounds.Top)
	}
}

// DrawCompositedLayer is the display-list command that blits a layer's
// cached surface. Draw lists are rebuilt every frame from these plus cloned
// effect spines.
type DrawCompositedLayer struct {
	layer  *Layer
	rect   render.Rect
	parent render.Item
}

func NewDrawCompositedLayer(layer *Layer) *DrawCompositedLayer {
	return &DrawCompositedLayer{layer: layer, rect: layer.CompositedBounds()}
}

func (d *DrawCompositedLayer) Bounds() render.Rect     { return d.rect }
func (d *DrawCompositedLayer) Parent() render.Item     { return d.parent }
func (d *DrawCompositedLayer) SetParent(p render.Item) { d.parent = p }
func (d *DrawCompositedLayer) Children() []render.Item { return nil }

func (d *DrawCompositedLayer) Execute(ctx *gg.Context, dx, dy float64) {
	if d.layer.surface == nil {
		return
	}
	src := d.layer.surface.Image()
	bounds := d.layer.CompositedBounds()
	ctx.DrawImage(src, int(bounds.Left+dx), int(bounds.Top+dy))
}

// Composite splits a display list into layers. A layer leaf is either a
// plain paint command or a non-compositing effect sitting directly under a
// compositing one. The backward scan merges a leaf into the most recent
// compatible layer unless an intervening layer overlaps it on screen, in
// which case drawing order forces a fresh layer.
func Composite(displayList []render.Item) []*Layer {
	render.AddParentPointers(displayList, nil)

	var all []render.Item
	var collect func(item render.Item)
	collect = func(item render.Item) {
		all = append(all, item)
		for _, child := range item.Children() {
			collect(child)
		}
	}
	for _, item := range displayList {
		collect(item)
	}

	var leaves []render.Item
	for _, item := range all {
		if !isLeaf(item) {
			continue
		}
		if item.Parent() != nil && !needsCompositing(item.Parent()) {
			continue
		}
		leaves = append(leaves, item)
	}

	var layers []*Layer
	for _, leaf := range leaves {
		placed := false
		leafBounds := render.AbsoluteBounds(leaf)
	scan:
		for i := len(layers) - 1; i >= 0; i-- {
			layer := layers[i]
			switch {
			case layer.CanMerge(leaf):
				layer.Add(leaf)
				placed = true
				break scan
			case layer.AbsoluteBounds().Intersects(leafBounds):
				layers = append(layers, NewLayer(leaf))
				placed = true
				break scan
			}
		}
		if !placed {
			layers = append(layers, NewLayer(leaf))
		}
	}
	return layers
}

func isLeaf(item render.Item) bool {
	effect, ok := item.(render.Effect)
	if !ok {
		return true
	}
	return !effect.NeedsCompositing()
}

func needsCompositing(item render.Item) bool {
	effect, ok := item.(render.Effect)
	return ok && effect.NeedsCompositing()
}

// PaintDrawList rebuilds the frame's draw list: one surface blit per layer,
// wrapped in path-copies of its ancestor effect chain. Ancestors whose node
// appears in updates are swapped for the node's latest blend, which is what
// makes composited animations cheap.
func PaintDrawList(layers []*Layer, updates map[*html.Node]render.Effect) []render.Item {
	cloned := make(map[render.Effect]render.Effect)
	var drawList []render.Item
	for _, layer := range layers {
		if len(layer.Items()) == 0 {
			continue
		}
		var current render.Item = NewDrawCompositedLayer(layer)
		parent, _ := layer.Items()[0].Parent().(render.Effect)
		for parent != nil {
			latest := latestEffect(parent, updates)
			if shared, ok := cloned[latest]; ok {
				shared.AppendChild(current)
				current = nil
				break
			}
			clone := latest.Clone([]render.Item{current})
			cloned[latest] = clone
			current = clone
			parent, _ = parent.Parent().(render.Effect)
		}
		if current != nil {
			drawList = append(drawList, current)
		}
	}
	return drawList
}

// latestEffect substitutes a blend whose node has a newer animated value.
func latestEffect(effect render.Effect, updates map[*html.Node]render.Effect) render.Effect {
	node := effect.Node()
	if node == nil {
		return effect
	}
	if _, isBlend := effect.(*render.Blend); !isBlend {
		return effect
	}
	if latest, ok := updates[node]; ok {
		return latest
	}
	return effect
}

// RasterLayers rasters every layer surface.
func RasterLayers(layers []*Layer) {
	for _, layer := range layers {
		layer.Raster()
	}
}

// DrawLayers executes a draw list onto the root surface, shifted up by the
// viewport scroll.
func DrawLayers(drawList []render.Item, ctx *gg.Context, scroll float64) {
	for _, item := range drawList {
		item.Execute(ctx, 0, -scroll)
	}
}

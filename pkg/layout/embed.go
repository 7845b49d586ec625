package layout

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/invalidation"
	"lantern/pkg/render"
	"lantern/pkg/text"
)

var log = zap.NewNop()

// SetLogger installs the package logger, used for layout diagnostics.
func SetLogger(l *zap.Logger) { log = l }

// embed is the shared core of the replaced-content layouts: zoom and font
// resolution plus inline x positioning after the previous child.
type embed struct {
	geom
	dirtyBits
	node     *html.Node
	parent   *LineLayout
	previous Node
	owner    Frame

	font    *invalidation.Field[*text.Font]
	ascent  *invalidation.Field[float64]
	descent *invalidation.Field[float64]
}

func (e *embed) init(self invalidation.Owner, node *html.Node, parent *LineLayout, previous Node, owner Frame) {
	e.node = node
	e.parent = parent
	e.previous = previous
	e.owner = owner
	e.geom = newGeom(self)
	e.font = invalidation.NewAny[*text.Font]("font", self)
	e.ascent = invalidation.New[float64]("ascent", self)
	e.descent = invalidation.New[float64]("descent", self)
	node.LayoutObject = self
}

func (e *embed) layoutNeeded() bool {
	return e.hasDirtyDescendants || e.geom.dirty() ||
		fieldsDirty(e.font, e.ascent, e.descent)
}

// layoutCommon resolves zoom, font, and x; width and height are up to the
// concrete type.
func (e *embed) layoutCommon() {
	e.zoom.Copy(geomOf(e.parent).zoom)
	if e.font.Dirty() {
		zoom := e.zoom.Read(e.font)
		e.font.Set(styleFont(e.node, zoom, e.font))
	}
	if e.previous != nil {
		prev := e.previous.(inlineChild)
		prevX := prev.geomFields().x.Read(e.x)
		prevWidth := prev.geomFields().width.Read(e.x)
		space := prev.fontField().Read(e.x).MeasureText(" ")
		e.x.Set(prevX + prevWidth + space)
	} else {
		e.x.Copy(geomOf(e.parent).x)
	}
}

// Replaced boxes sit on the baseline: the whole box is ascent, nothing
// descends below.
func (e *embed) setBaseline() {
	e.ascent.Set(e.height.Read(e.ascent))
	e.descent.Set(0)
}

func (e *embed) ShouldPaint() bool   { return true }
func (e *embed) Children() []Node    { return nil }
func (e *embed) DOMNode() *html.Node { return e.node }

func (e *embed) fontField() *invalidation.Field[*text.Font] { return e.font }
func (e *embed) ascentField() *invalidation.Field[float64]  { return e.ascent }
func (e *embed) descentField() *invalidation.Field[float64] { return e.descent }

func (e *embed) parentNode() Node { return e.parent }

// InputLayout lays out text inputs and buttons at a fixed width.
type InputLayout struct {
	embed
}

func NewInputLayout(node *html.Node, parent *LineLayout, previous Node, owner Frame) *InputLayout {
	i := &InputLayout{}
	i.init(i, node, parent, previous, owner)
	return i
}

func (i *InputLayout) Layout() {
	if !i.layoutNeeded() {
		return
	}
	i.layoutCommon()
	zoom := i.zoom.Read(i.width)
	i.width.Set(DPX(InputWidthPx, zoom))
	f := i.font.Read(i.height)
	i.height.Set(f.Linespace())
	i.setBaseline()
	i.hasDirtyDescendants = false
}

func (i *InputLayout) Paint() []render.Item {
	rect := selfRect(i)
	cmds := paintBackground(i.node, nil, rect, i.zoom.Get())

	var content string
	if i.node.TagName == "input" {
		content = i.node.Attr("value")
	} else if len(i.node.Children) == 1 && i.node.Children[0].Type == html.TextNode {
		content = i.node.Children[0].Text
	} else if len(i.node.Children) > 0 {
		log.Info("ignoring non-text contents inside button",
			zap.String("tag", i.node.TagName))
	}

	font := i.font.Get()
	if content != "" {
		color := i.node.StyleValue("color")
		cmds = append(cmds, render.NewDrawText(i.x.Get(), i.y.Get(), content, font, color))
	}
	if i.node.IsFocused && i.node.TagName == "input" {
		cx := i.x.Get() + font.MeasureText(content)
		cmds = append(cmds, render.NewDrawLine(
			cx, i.y.Get(), cx, i.y.Get()+i.height.Get(), "black", 1))
	}
	return cmds
}

func (i *InputLayout) PaintEffects(cmds []render.Item) []render.Item {
	cmds = paintOutline(i.node, cmds, selfRect(i), i.zoom.Get())
	return render.PaintVisualEffects(i.node, cmds, selfRect(i))
}

func (i *InputLayout) MarkAncestorsDirty() { markAncestors(i) }

// ImageLayout sizes an image box from its attributes, falling back to the
// decoded image's intrinsic size and preserving aspect ratio when only one
// dimension is given.
type ImageLayout struct {
	embed
}

func NewImageLayout(node *html.Node, parent *LineLayout, previous Node, owner Frame) *ImageLayout {
	i := &ImageLayout{}
	i.init(i, node, parent, previous, owner)
	return i
}

func (i *ImageLayout) Layout() {
	if !i.layoutNeeded() {
		return
	}
	i.layoutCommon()
	zoom := i.zoom.Read(i.width)

	imgWidth := intrinsicWidth(i.node)
	imgHeight := intrinsicHeight(i.node)
	aspect := 1.0
	if imgHeight > 0 {
		aspect = imgWidth / imgHeight
	}

	widthAttr, hasWidth := attrPx(i.node, "width")
	heightAttr, hasHeight := attrPx(i.node, "height")
	var w, h float64
	switch {
	case hasWidth && hasHeight:
		w, h = DPX(widthAttr, zoom), DPX(heightAttr, zoom)
	case hasWidth:
		w = DPX(widthAttr, zoom)
		h = w / aspect
	case hasHeight:
		h = DPX(heightAttr, zoom)
		w = h * aspect
	default:
		w, h = DPX(imgWidth, zoom), DPX(imgHeight, zoom)
	}
	i.width.Set(w)
	i.height.Set(h)
	i.setBaseline()
	i.hasDirtyDescendants = false
}

func (i *ImageLayout) Paint() []render.Item {
	if i.node.Image == nil {
		return nil
	}
	quality := i.node.StyleValue("image-rendering")
	return []render.Item{render.NewDrawImage(i.node.Image, selfRect(i), quality)}
}

func (i *ImageLayout) PaintEffects(cmds []render.Item) []render.Item {
	return render.PaintVisualEffects(i.node, cmds, selfRect(i))
}

func (i *ImageLayout) MarkAncestorsDirty() { markAncestors(i) }

// IframeLayout reserves a box for an embedded document and keeps that
// document's viewport in sync, marking it for reflow when the box resizes.
type IframeLayout struct {
	embed
}

func NewIframeLayout(node *html.Node, parent *LineLayout, previous Node, owner Frame) *IframeLayout {
	i := &IframeLayout{}
	i.init(i, node, parent, previous, owner)
	return i
}

// frame is the embedded document's frame, nil before the iframe loads.
func (i *IframeLayout) frame() Frame {
	f, _ := i.node.Frame.(Frame)
	return f
}

func (i *IframeLayout) Layout() {
	if !i.layoutNeeded() {
		return
	}
	i.layoutCommon()
	zoom := i.zoom.Read(i.width)

	if attr, ok := attrPx(i.node, "width"); ok {
		i.width.Set(DPX(attr+2, zoom))
	} else {
		i.width.Set(DPX(IframeWidthPx+2, zoom))
	}
	if attr, ok := attrPx(i.node, "height"); ok {
		i.height.Set(DPX(attr+2, zoom))
	} else {
		i.height.Set(DPX(IframeHeightPx+2, zoom))
	}
	i.setBaseline()

	if frame := i.frame(); frame != nil && frame.Loaded() {
		frame.SetViewport(
			i.width.Get()-DPX(2, zoom),
			i.height.Get()-DPX(2, zoom))
	}
	i.hasDirtyDescendants = false
}

func (i *IframeLayout) Paint() []render.Item {
	rect := selfRect(i)
	return paintBackground(i.node, nil, rect, i.zoom.Get())
}

// PaintEffects shifts the embedded document's commands into the iframe's
// border box (minus its scroll offset) and clips them to it.
func (i *IframeLayout) PaintEffects(cmds []render.Item) []render.Item {
	zoom := i.zoom.Get()
	inset := DPX(1, zoom)
	rect := selfRect(i)
	innerRect := render.MakeRect(
		rect.Left+inset, rect.Top+inset, rect.Right-inset, rect.Bottom-inset)

	var scroll float64
	if frame := i.frame(); frame != nil {
		scroll = frame.Scroll()
	}
	offset := css.Translation{X: rect.Left + inset, Y: rect.Top + inset - scroll}
	cmds = []render.Item{render.NewTransform(offset, rect, i.node, cmds)}
	cmds = append(cmds, render.NewBlend(1.0, "destination-in", nil,
		[]render.Item{render.NewDrawRRect(innerRect, 0, "white")}))
	cmds = []render.Item{render.NewBlend(1.0, "source-over", i.node, cmds)}

	cmds = paintOutline(i.node, cmds, rect, zoom)
	return render.PaintVisualEffects(i.node, cmds, rect)
}

func (i *IframeLayout) MarkAncestorsDirty() { markAncestors(i) }

// attrPx reads a numeric element attribute in CSS pixels. Malformed values
// count as absent.
func attrPx(node *html.Node, name string) (float64, bool) {
	attr, ok := node.GetAttribute(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(attr), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intrinsicWidth(node *html.Node) float64 {
	if node.Image == nil {
		return 0
	}
	return float64(node.Image.Bounds().Dx())
}

func intrinsicHeight(node *html.Node) float64 {
	if node.Image == nil {
		return 0
	}
	return float64(node.Image.Bounds().Dy())
}

// Package render holds the paint tree: drawing commands produced by layout
// plus the visual effects (blends and transforms) that wrap them, and the
// software rasterizer that executes both onto gg contexts.
package render

import (
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"lantern/pkg/css"
	"lantern/pkg/text"
)

// Item is one node of the paint tree: either a drawing command (a leaf) or
// a visual effect wrapping child items. Bounds are fixed at construction.
//
// Execute draws the item onto ctx with everything shifted by (dx, dy); the
// only transform in the engine is translation, so effects compose offsets
// additively instead of carrying a matrix.
type Item interface {
	Bounds() Rect
	Parent() Item
	SetParent(Item)
	Children() []Item
	Execute(ctx *gg.Context, dx, dy float64)
}

type base struct {
	rect   Rect
	parent Item
}

func (b *base) Bounds() Rect     { return b.rect }
func (b *base) Parent() Item     { return b.parent }
func (b *base) SetParent(p Item) { b.parent = p }
func (b *base) Children() []Item { return nil }

// DrawRect fills a rectangle with a solid color.
type DrawRect struct {
	base
	Color string
}

func NewDrawRect(rect Rect, color string) *DrawRect {
	return &DrawRect{base: base{rect: rect}, Color: color}
}

func (d *DrawRect) Execute(ctx *gg.Context, dx, dy float64) {
	r := d.rect.Offset(dx, dy)
	ctx.SetColor(css.ParseColor(d.Color))
	ctx.DrawRectangle(r.Left, r.Top, r.Width(), r.Height())
	ctx.Fill()
}

// DrawRRect fills a rounded rectangle; it doubles as the clip mask for
// overflow:clip via a destination-in blend.
type DrawRRect struct {
	base
	Radius float64
	Color  string
}

func NewDrawRRect(rect Rect, radius float64, color string) *DrawRRect {
	return &DrawRRect{base: base{rect: rect}, Radius: radius, Color: color}
}

func (d *DrawRRect) Execute(ctx *gg.Context, dx, dy float64) {
	r := d.rect.Offset(dx, dy)
	ctx.SetColor(css.ParseColor(d.Color))
	ctx.DrawRoundedRectangle(r.Left, r.Top, r.Width(), r.Height(), d.Radius)
	ctx.Fill()
}

// DrawLine strokes a line segment.
type DrawLine struct {
	base
	X1, Y1, X2, Y2 float64
	Color          string
	Thickness      float64
}

func NewDrawLine(x1, y1, x2, y2 float64, color string, thickness float64) *DrawLine {
	return &DrawLine{
		base: base{rect: MakeRect(x1, y1, x2, y2)},
		X1:   x1, Y1: y1, X2: x2, Y2: y2,
		Color: color, Thickness: thickness,
	}
}

func (d *DrawLine) Execute(ctx *gg.Context, dx, dy float64) {
	ctx.SetColor(css.ParseColor(d.Color))
	ctx.SetLineWidth(d.Thickness)
	ctx.DrawLine(d.X1+dx, d.Y1+dy, d.X2+dx, d.Y2+dy)
	ctx.Stroke()
}

// DrawText draws a run of text; bounds cover the run's measured box.
type DrawText struct {
	base
	X, Y  float64
	Text  string
	Font  *text.Font
	Color string
}

func NewDrawText(x, y float64, s string, font *text.Font, color string) *DrawText {
	return &DrawText{
		base: base{rect: MakeRect(x, y, x+font.MeasureText(s), y+font.Linespace())},
		X:    x, Y: y,
		Text: s, Font: font, Color: color,
	}
}

func (d *DrawText) Execute(ctx *gg.Context, dx, dy float64) {
	ctx.SetColor(css.ParseColor(d.Color))
	ctx.SetFontFace(d.Font.Face())
	ctx.DrawString(d.Text, d.X+dx, d.Y+dy+d.Font.Ascent())
}

// DrawImage scales a decoded image into a destination rect. Quality follows
// the image-rendering property: "pixelated" picks nearest-neighbor, anything
// else bilinear.
type DrawImage struct {
	base
	Image   image.Image
	Quality string
}

func NewDrawImage(img image.Image, rect Rect, quality string) *DrawImage {
	return &DrawImage{base: base{rect: rect}, Image: img, Quality: quality}
}

func (d *DrawImage) Execute(ctx *gg.Context, dx, dy float64) {
	dst, ok := ctx.Image().(*image.RGBA)
	if !ok {
		return
	}
	r := d.rect.Offset(dx, dy)
	target := image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom))
	var scaler draw.Scaler = draw.BiLinear
	if d.Quality == "pixelated" {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, target, d.Image, d.Image.Bounds(), draw.Over, nil)
}

// DrawOutline strokes a rectangle border, used for focus rings and CSS
// outlines.
type DrawOutline struct {
	base
	Color     string
	Thickness float64
}

func NewDrawOutline(rect Rect, color string, thickness float64) *DrawOutline {
	return &DrawOutline{base: base{rect: rect}, Color: color, Thickness: thickness}
}

func (d *DrawOutline) Execute(ctx *gg.Context, dx, dy float64) {
	r := d.rect.Offset(dx, dy)
	ctx.SetColor(css.ParseColor(d.Color))
	ctx.SetLineWidth(d.Thickness)
	ctx.DrawRectangle(r.Left, r.Top, r.Width(), r.Height())
	ctx.Stroke()
}

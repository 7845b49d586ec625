package render

import (
	"image"

	"github.com/fogleman/gg"
)

// composeLayer merges an offscreen layer into dst, applying opacity and the
// blend mode pixel by pixel. Both contexts share the same coordinate space.
//
// destination-in keeps the destination where the layer has coverage, which
// is how rounded-corner clip masks cut content.
func composeLayer(dst *gg.Context, layer *gg.Context, opacity float64, blendMode string) {
	dstImg, ok := dst.Image().(*image.RGBA)
	if !ok {
		return
	}
	srcImg, ok := layer.Image().(*image.RGBA)
	if !ok {
		return
	}
	bounds := dstImg.Bounds().Intersect(srcImg.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		di := dstImg.PixOffset(bounds.Min.X, y)
		si := srcImg.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			d := dstImg.Pix[di : di+4 : di+4]
			s := srcImg.Pix[si : si+4 : si+4]
			blendPixel(d, s, opacity, blendMode)
			di += 4
			si += 4
		}
	}
}

func blendPixel(d, s []uint8, opacity float64, blendMode string) {
	sa := float64(s[3]) / 255 * opacity
	if blendMode == "destination-in" {
		for i := 0; i < 4; i++ {
			d[i] = uint8(float64(d[i])*sa + 0.5)
		}
		return
	}

	da := float64(d[3]) / 255
	// Unpremultiply to straight color for the separable blend functions.
	sc := straight(s)
	dc := straight(d)

	var bc [3]float64
	switch blendMode {
	case "multiply":
		for i := 0; i < 3; i++ {
			bc[i] = sc[i] * dc[i]
		}
	case "difference":
		for i := 0; i < 3; i++ {
			bc[i] = abs(sc[i] - dc[i])
		}
	default: // source-over
		bc = sc
	}

	// Blend result applies only where the destination has coverage.
	for i := 0; i < 3; i++ {
		bc[i] = (1-da)*sc[i] + da*bc[i]
	}

	oa := sa + da*(1-sa)
	for i := 0; i < 3; i++ {
		co := sa*bc[i] + (1-sa)*da*dc[i]
		d[i] = uint8(co*255 + 0.5)
	}
	d[3] = uint8(oa*255 + 0.5)
}

func straight(p []uint8) [3]float64 {
	a := float64(p[3])
	if a == 0 {
		return [3]float64{}
	}
	var c [3]float64
	for i := 0; i < 3; i++ {
		c[i] = float64(p[i]) / a
	}
	return c
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package css

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// NamedColors are the color keywords the engine understands; everything
// else falls back to black.
var NamedColors = map[string]string{
	"black":      "#000000",
	"gray":       "#808080",
	"white":      "#ffffff",
	"red":        "#ff0000",
	"green":      "#00ff00",
	"blue":       "#0000ff",
	"lightblue":  "#add8e6",
	"lightgreen": "#90ee90",
	"orange":     "#ffa500",
	"orangered":  "#ff4500",
}

// ParseColor parses #rrggbb, #rrggbbaa, or a named color. Unknown colors
// resolve to opaque black, matching the reference behavior of rendering
// something rather than failing.
func ParseColor(s string) color.RGBA {
	s = strings.TrimSpace(strings.ToLower(s))
	if hex, ok := NamedColors[s]; ok {
		s = hex
	}
	if strings.HasPrefix(s, "#") && (len(s) == 7 || len(s) == 9) {
		r, err1 := strconv.ParseUint(s[1:3], 16, 8)
		g, err2 := strconv.ParseUint(s[3:5], 16, 8)
		b, err3 := strconv.ParseUint(s[5:7], 16, 8)
		a := uint64(255)
		var err4 error
		if len(s) == 9 {
			a, err4 = strconv.ParseUint(s[7:9], 16, 8)
		}
		if err1 == nil && err2 == nil && err3 == nil && err4 == nil {
			return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: uint8(a)}
		}
	}
	return color.RGBA{A: 255}
}

// Translation is a parsed 2D translate() transform.
type Translation struct {
	X float64
	Y float64
}

// ParseTransform extracts the translation from a transform value. Only
// translate(Xpx, Ypx) is supported; anything else returns ok=false.
func ParseTransform(s string) (Translation, bool) {
	if !strings.Contains(s, "translate(") {
		return Translation{}, false
	}
	lparen := strings.IndexByte(s, '(')
	rparen := strings.IndexByte(s, ')')
	if lparen < 0 || rparen < lparen {
		return Translation{}, false
	}
	parts := strings.Split(s[lparen+1:rparen], ",")
	if len(parts) != 2 {
		return Translation{}, false
	}
	x, err1 := ParsePx(parts[0])
	y, err2 := ParsePx(parts[1])
	if err1 != nil || err2 != nil {
		return Translation{}, false
	}
	return Translation{X: x, Y: y}, true
}

// Outline is a parsed outline declaration.
type Outline struct {
	Thickness float64
	Color     string
}

// ParseOutline parses "Npx solid <color>"; other outline forms are ignored.
func ParseOutline(s string) (Outline, bool) {
	values := strings.Fields(s)
	if len(values) != 3 || values[1] != "solid" {
		return Outline{}, false
	}
	thickness, err := ParsePx(values[0])
	if err != nil {
		return Outline{}, false
	}
	return Outline{Thickness: thickness, Color: values[2]}, true
}

// ParsePx parses a "<number>px" length value.
func ParsePx(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "px") {
		return 0, fmt.Errorf("css: not a pixel length: %q", s)
	}
	return strconv.ParseFloat(strings.TrimSuffix(s, "px"), 64)
}

// MustParsePx parses a computed pixel length. Computed values are produced
// by the cascade, so a malformed one is a broken upstream contract: panic
// rather than render from garbage.
func MustParsePx(s string) float64 {
	v, err := ParsePx(s)
	if err != nil {
		panic(fmt.Sprintf("css: malformed computed length %q", s))
	}
	return v
}

// MustParseNumber parses a computed numeric value such as opacity; like
// MustParsePx it panics on garbage because only the cascade produces these.
func MustParseNumber(s string) float64 {
	return mustParseFloat(s)
}

func mustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		panic(fmt.Sprintf("css: malformed computed value %q", s))
	}
	return v
}

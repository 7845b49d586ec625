// Package text provides font loading and measurement for layout and paint.
// Fonts are cached by (weight, style, size); when no font file can be
// loaded the package falls back to estimated metrics so layout stays
// deterministic rather than failing.
package text

import (
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// FontConfig holds paths to the font files used for measurement and drawing.
type FontConfig struct {
	Regular    string
	Bold       string
	Italic     string
	BoldItalic string
}

// DefaultFontConfig locates font files next to the executable or under the
// directory named by LANTERN_FONTS.
func DefaultFontConfig() FontConfig {
	dir := os.Getenv("LANTERN_FONTS")
	if dir == "" {
		if exe, err := os.Executable(); err == nil {
			candidate := filepath.Join(filepath.Dir(exe), "fonts")
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				dir = candidate
			}
		}
	}
	if dir == "" {
		dir = "fonts"
	}
	return FontConfig{
		Regular:    filepath.Join(dir, "Regular.ttf"),
		Bold:       filepath.Join(dir, "Bold.ttf"),
		Italic:     filepath.Join(dir, "Italic.ttf"),
		BoldItalic: filepath.Join(dir, "BoldItalic.ttf"),
	}
}

func (fc FontConfig) path(weight, style string) string {
	bold := weight == "bold"
	italic := style == "italic"
	switch {
	case bold && italic:
		return fc.BoldItalic
	case bold:
		return fc.Bold
	case italic:
		return fc.Italic
	default:
		return fc.Regular
	}
}

// Font is a sized typeface with measurement metrics. All methods are safe
// for concurrent use; document worker threads measure while the compositor
// thread draws.
type Font struct {
	mu     sync.Mutex
	face   font.Face
	size   float64
	weight string
	style  string
}

type fontKey struct {
	weight string
	style  string
	size   float64
}

var (
	cacheMu   sync.Mutex
	fontCache = map[fontKey]*Font{}
	config    = DefaultFontConfig()
)

// Get returns a cached font for the given pixel size, weight ("normal" or
// "bold") and style ("normal" or "italic").
func Get(size float64, weight, style string) *Font {
	key := fontKey{weight: weight, style: style, size: size}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if f, ok := fontCache[key]; ok {
		return f
	}
	f := &Font{size: size, weight: weight, style: style}
	if data, err := os.ReadFile(config.path(weight, style)); err == nil {
		if parsed, err := opentype.Parse(data); err == nil {
			face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
				Size:    size,
				DPI:     72,
				Hinting: font.HintingFull,
			})
			if err == nil {
				f.face = face
			}
		}
	}
	fontCache[key] = f
	return f
}

// MeasureText returns the advance width of s in pixels.
func (f *Font) MeasureText(s string) float64 {
	if f.face == nil {
		// Estimate: roughly the width of an average proportional glyph.
		return float64(len([]rune(s))) * f.size * 0.6
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	adv := font.MeasureString(f.face, s)
	return float64(adv) / 64
}

// Ascent returns the distance from the baseline to the glyph top, in pixels.
func (f *Font) Ascent() float64 {
	if f.face == nil {
		return f.size * 0.8
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(f.face.Metrics().Ascent) / 64
}

// Descent returns the distance from the baseline to the glyph bottom.
func (f *Font) Descent() float64 {
	if f.face == nil {
		return f.size * 0.2
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(f.face.Metrics().Descent) / 64
}

// Linespace is the natural line height of the font.
func (f *Font) Linespace() float64 {
	return f.Ascent() + f.Descent()
}

// Size returns the pixel size the font was created with.
func (f *Font) Size() float64 { return f.size }

// Face returns a face usable for drawing. When no font file was available a
// builtin bitmap face is returned so text still renders.
func (f *Font) Face() font.Face {
	if f.face == nil {
		return basicfont.Face7x13
	}
	return f.face
}

package waterfall

import (
	"image/color"
	"math"
	"strings"
)

// Palette is a named colormap from normalized power in [0,1] to RGB.
// Each palette is piecewise linear over four equal sub-intervals.
type Palette int

const (
	PaletteViridis Palette = iota
	PalettePlasma
	PaletteInferno
	PaletteMagma
	PaletteJet
	PaletteHot
	PaletteGrayscale
	numPalettes
)

// DefaultPalette is used when a palette name is not recognised.
const DefaultPalette = PaletteViridis

// paletteStops holds the five breakpoints (at 0, .25, .5, .75, 1) per palette.
var paletteStops = [numPalettes][5]color.RGBA{
	// "viridis" here is the blue→green→yellow→orange→red ramp operators know
	// from the web viewer, not matplotlib's viridis.
	PaletteViridis:   {{0, 0, 255, 255}, {0, 255, 0, 255}, {255, 255, 0, 255}, {255, 165, 0, 255}, {255, 0, 0, 255}},
	PalettePlasma:    {{13, 8, 135, 255}, {126, 3, 168, 255}, {204, 71, 120, 255}, {248, 149, 64, 255}, {240, 249, 33, 255}},
	PaletteInferno:   {{0, 0, 4, 255}, {87, 16, 110, 255}, {188, 55, 84, 255}, {249, 142, 9, 255}, {252, 255, 164, 255}},
	PaletteMagma:     {{0, 0, 4, 255}, {81, 18, 124, 255}, {183, 55, 121, 255}, {252, 137, 97, 255}, {252, 253, 191, 255}},
	PaletteJet:       {{0, 0, 255, 255}, {0, 255, 255, 255}, {0, 255, 0, 255}, {255, 255, 0, 255}, {255, 0, 0, 255}},
	PaletteHot:       {{0, 0, 0, 255}, {128, 0, 0, 255}, {255, 0, 0, 255}, {255, 255, 0, 255}, {255, 255, 255, 255}},
	PaletteGrayscale: {{0, 0, 0, 255}, {64, 64, 64, 255}, {128, 128, 128, 255}, {191, 191, 191, 255}, {255, 255, 255, 255}},
}

var paletteNames = [numPalettes]string{
	PaletteViridis:   "viridis",
	PalettePlasma:    "plasma",
	PaletteInferno:   "inferno",
	PaletteMagma:     "magma",
	PaletteJet:       "jet",
	PaletteHot:       "hot",
	PaletteGrayscale: "grayscale",
}

// Palettes lists every supported palette in display order.
func Palettes() []Palette {
	out := make([]Palette, numPalettes)
	for i := range out {
		out[i] = Palette(i)
	}
	return out
}

func (p Palette) valid() bool { return p >= 0 && p < numPalettes }

// String returns the palette's name; unknown values report the default's name.
func (p Palette) String() string {
	if !p.valid() {
		return paletteNames[DefaultPalette]
	}
	return paletteNames[p]
}

// MarshalText encodes the palette as its name.
func (p Palette) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a palette name, falling back to the default palette.
func (p *Palette) UnmarshalText(text []byte) error {
	*p = PaletteByName(string(text))
	return nil
}

// ParsePalette resolves a palette by case-insensitive name.
func ParsePalette(name string) (Palette, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range paletteNames {
		if n == name {
			return Palette(i), true
		}
	}
	return DefaultPalette, false
}

// PaletteByName is ParsePalette with the default palette as fallback.
func PaletteByName(name string) Palette {
	p, _ := ParsePalette(name)
	return p
}

// Color maps a normalized value to RGB. Input outside [0,1] is clamped and
// NaN maps to 0, so the function is total.
func (p Palette) Color(v float64) color.RGBA {
	if !p.valid() {
		p = DefaultPalette
	}
	switch {
	case math.IsNaN(v) || v <= 0:
		return paletteStops[p][0]
	case v >= 1:
		return paletteStops[p][4]
	}

	scaled := v * 4
	seg := int(scaled)
	if seg > 3 {
		seg = 3
	}
	t := scaled - float64(seg)
	a, b := paletteStops[p][seg], paletteStops[p][seg+1]
	return color.RGBA{
		R: lerp8(a.R, b.R, t),
		G: lerp8(a.G, b.G, t),
		B: lerp8(a.B, b.B, t),
		A: 255,
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

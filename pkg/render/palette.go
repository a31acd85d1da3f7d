package render

import (
	"slices"
	"sort"
)

// Palette is an ordered list of hex colors assigned to lanes round-robin.
type Palette []string

// DefaultPalette is used when no palette is configured.
const DefaultPalette = "bright"

var palettes = map[string]Palette{
	"bright": {"#e5484d", "#3e63dd", "#30a46c", "#f76b15", "#8e4ec6", "#12a594", "#d6409f", "#ffb224"},
	"muted":  {"#b85c5c", "#5c7ab8", "#5ca37a", "#b8895c", "#8a6bb0", "#5c9ea3"},
	"mono":   {"#888888"},
}

// Color returns the color of lane. Negative lanes wrap like positive ones.
func (p Palette) Color(lane int) string {
	if len(p) == 0 {
		return ""
	}
	i := lane % len(p)
	if i < 0 {
		i += len(p)
	}
	return p[i]
}

// PaletteByName returns the named palette, or the default one for unknown
// names.
func PaletteByName(name string) Palette {
	if p, ok := palettes[name]; ok {
		return slices.Clone(p)
	}
	return slices.Clone(palettes[DefaultPalette])
}

// PaletteNames lists the known palettes in sorted order.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for n := range palettes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidPalette reports whether name is a known palette.
func ValidPalette(name string) bool {
	_, ok := palettes[name]
	return ok
}

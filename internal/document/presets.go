package document

import (
	"fmt"
	"sort"
)

// Preset is a fixed landscape canvas size in logical units.
type Preset struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

const (
	PresetLetter = "letter"
	PresetA4     = "a4"

	DefaultBackground = "#ffffff"
)

var presets = map[string]Preset{
	PresetLetter: {Name: PresetLetter, Width: 1056, Height: 816},
	PresetA4:     {Name: PresetA4, Width: 1123, Height: 794},
}

// LookupPreset returns the named size preset.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown size preset %q", name)
	}
	return p, nil
}

// Presets lists all size presets ordered by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PresetFor finds the preset matching the given dimensions, if any.
func PresetFor(width, height int) (Preset, bool) {
	for _, p := range presets {
		if p.Width == width && p.Height == height {
			return p, true
		}
	}
	return Preset{}, false
}

// Blank creates an empty white document for the preset.
func Blank(p Preset) *Document {
	return &Document{
		Width:           p.Width,
		Height:          p.Height,
		BackgroundColor: DefaultBackground,
		Elements:        Elements{},
	}
}

package colorrange

import "strings"

type preset struct {
	name        string
	description string
	ranges      []Bounds
}

// presets are ordered; NextPreset cycles through them in this order.
var presets = []preset{
	{
		name:        "red",
		description: "Bright red cloth/clothing",
		ranges: []Bounds{
			// Red straddles hue 0, so it needs two intervals.
			{Lower: HSV{0, 120, 70}, Upper: HSV{10, 255, 255}},
			{Lower: HSV{170, 120, 70}, Upper: HSV{179, 255, 255}},
		},
	},
	{
		name:        "blue",
		description: "Blue cloth/clothing",
		ranges:      []Bounds{{Lower: HSV{100, 150, 50}, Upper: HSV{130, 255, 255}}},
	},
	{
		name:        "green",
		description: "Green cloth/clothing",
		ranges:      []Bounds{{Lower: HSV{40, 40, 40}, Upper: HSV{80, 255, 255}}},
	},
	{
		name:        "yellow",
		description: "Yellow cloth/clothing",
		ranges:      []Bounds{{Lower: HSV{20, 100, 100}, Upper: HSV{30, 255, 255}}},
	},
}

// DefaultPreset is the preset used when nothing else is configured.
const DefaultPreset = "red"

// FromPreset returns the model for a named preset. Names are case-insensitive.
func FromPreset(name string) (Model, error) {
	p, ok := lookup(name)
	if !ok {
		return Model{}, &UnknownPresetError{Name: name}
	}
	ranges := make([]Bounds, len(p.ranges))
	copy(ranges, p.ranges)
	return Model{name: p.name, ranges: ranges}, nil
}

// Presets returns the preset names in cycling order.
func Presets() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.name
	}
	return names
}

// Describe returns the human description of a preset, or "" if unknown.
func Describe(name string) string {
	if p, ok := lookup(name); ok {
		return p.description
	}
	return ""
}

// NextPreset returns the preset after name, wrapping at the end. Unknown
// names (including "custom") restart the cycle at the first preset.
func NextPreset(name string) string {
	for i, p := range presets {
		if strings.EqualFold(p.name, name) {
			return presets[(i+1)%len(presets)].name
		}
	}
	return presets[0].name
}

func lookup(name string) (preset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return preset{}, false
}

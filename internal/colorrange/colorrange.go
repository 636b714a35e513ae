// Package colorrange describes the cloak color as one or more HSV intervals.
//
// Channel domains follow OpenCV's 8-bit HSV encoding: hue 0-179, saturation
// and value 0-255. A Model is an immutable value; build one with FromPreset,
// WithBounds or FromSample and replace it wholesale when the color changes.
package colorrange

import (
	"fmt"
	"strings"
)

// Channel limits for 8-bit HSV images.
const (
	MaxHue = 179
	MaxSat = 255
	MaxVal = 255
)

// MaxRanges is the number of bound pairs a Model may hold after hue
// wrap-around normalization.
const MaxRanges = 2

// HSV is a single hue/saturation/value triple.
type HSV struct {
	H int `json:"h" yaml:"h"`
	S int `json:"s" yaml:"s"`
	V int `json:"v" yaml:"v"`
}

func (c HSV) String() string {
	return fmt.Sprintf("[%d,%d,%d]", c.H, c.S, c.V)
}

func (c HSV) valid() bool {
	return c.H >= 0 && c.H <= MaxHue &&
		c.S >= 0 && c.S <= MaxSat &&
		c.V >= 0 && c.V <= MaxVal
}

// Bounds is an inclusive lower/upper pair. A Lower.H greater than Upper.H
// denotes a hue interval that wraps through 0 (red).
type Bounds struct {
	Lower HSV `json:"lower" yaml:"lower"`
	Upper HSV `json:"upper" yaml:"upper"`
}

// Contains reports whether c lies inside b on every channel.
func (b Bounds) Contains(c HSV) bool {
	return c.H >= b.Lower.H && c.H <= b.Upper.H &&
		c.S >= b.Lower.S && c.S <= b.Upper.S &&
		c.V >= b.Lower.V && c.V <= b.Upper.V
}

func (b Bounds) String() string {
	return b.Lower.String() + "-" + b.Upper.String()
}

// Model is a validated set of normalized bound pairs.
type Model struct {
	name   string
	ranges []Bounds
}

// Name returns the preset name, "custom" for tuned bounds, or "sampled".
func (m Model) Name() string {
	return m.name
}

// Ranges returns a copy of the normalized bound pairs.
func (m Model) Ranges() []Bounds {
	out := make([]Bounds, len(m.ranges))
	copy(out, m.ranges)
	return out
}

// IsZero reports whether m was never built by a constructor.
func (m Model) IsZero() bool {
	return len(m.ranges) == 0
}

// Contains reports whether c falls inside any of the model's bound pairs.
func (m Model) Contains(c HSV) bool {
	for _, b := range m.ranges {
		if b.Contains(c) {
			return true
		}
	}
	return false
}

// Equal reports whether two models have the same name and ranges.
func (m Model) Equal(o Model) bool {
	if m.name != o.name || len(m.ranges) != len(o.ranges) {
		return false
	}
	for i := range m.ranges {
		if m.ranges[i] != o.ranges[i] {
			return false
		}
	}
	return true
}

func (m Model) String() string {
	parts := make([]string, len(m.ranges))
	for i, b := range m.ranges {
		parts[i] = b.String()
	}
	return m.name + " " + strings.Join(parts, " ")
}

// WithBounds builds a custom model from tuner-provided pairs.
func WithBounds(pairs ...Bounds) (Model, error) {
	ranges, err := normalize(pairs)
	if err != nil {
		return Model{}, err
	}
	return Model{name: "custom", ranges: ranges}, nil
}

// Named returns a copy of m carrying a different display name.
func (m Model) Named(name string) Model {
	m.ranges = m.Ranges()
	m.name = name
	return m
}

// normalize validates pairs and splits wrapping hue intervals in two.
func normalize(pairs []Bounds) ([]Bounds, error) {
	if len(pairs) == 0 {
		return nil, &InvalidBoundsError{Index: -1, Reason: "no bound pairs"}
	}

	var out []Bounds
	for i, p := range pairs {
		if !p.Lower.valid() || !p.Upper.valid() {
			return nil, &InvalidBoundsError{
				Index:  i,
				Reason: fmt.Sprintf("%s outside H 0-%d, S 0-%d, V 0-%d", p, MaxHue, MaxSat, MaxVal),
			}
		}
		if p.Lower.S > p.Upper.S {
			return nil, &InvalidBoundsError{Index: i, Reason: fmt.Sprintf("saturation %d > %d", p.Lower.S, p.Upper.S)}
		}
		if p.Lower.V > p.Upper.V {
			return nil, &InvalidBoundsError{Index: i, Reason: fmt.Sprintf("value %d > %d", p.Lower.V, p.Upper.V)}
		}

		if p.Lower.H <= p.Upper.H {
			out = append(out, p)
			continue
		}

		// Hue wraps through 0: [lo..179] and [0..hi].
		high := p
		high.Upper.H = MaxHue
		low := p
		low.Lower.H = 0
		out = append(out, low, high)
	}

	if len(out) > MaxRanges {
		return nil, &InvalidBoundsError{
			Index:  -1,
			Reason: fmt.Sprintf("%d ranges after hue wrap normalization, at most %d allowed", len(out), MaxRanges),
		}
	}
	return out, nil
}

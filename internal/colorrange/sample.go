package colorrange

// Tolerance is the half-width of a sampled range on each channel.
type Tolerance struct {
	H, S, V int
}

// DefaultTolerance keeps hue tight and lets saturation and value swing,
// since shadows and folds on cloth mostly move S and V.
func DefaultTolerance() Tolerance {
	return Tolerance{H: 10, S: 60, V: 80}
}

// FromSample builds a model centred on a sampled color. A hue window that
// crosses 0 or 179 wraps around, producing two ranges.
func FromSample(c HSV, tol Tolerance) (Model, error) {
	if !c.valid() {
		return Model{}, &InvalidBoundsError{Index: -1, Reason: "sample " + c.String() + " outside HSV domain"}
	}
	if tol.H < 0 || tol.S < 0 || tol.V < 0 {
		return Model{}, &InvalidBoundsError{Index: -1, Reason: "negative tolerance"}
	}

	b := Bounds{
		Lower: HSV{H: c.H - tol.H, S: clamp(c.S-tol.S, 0, MaxSat), V: clamp(c.V-tol.V, 0, MaxVal)},
		Upper: HSV{H: c.H + tol.H, S: clamp(c.S+tol.S, 0, MaxSat), V: clamp(c.V+tol.V, 0, MaxVal)},
	}

	const hueSpan = MaxHue + 1
	if 2*tol.H+1 >= hueSpan {
		b.Lower.H, b.Upper.H = 0, MaxHue
	} else {
		if b.Lower.H < 0 {
			b.Lower.H += hueSpan
		}
		if b.Upper.H > MaxHue {
			b.Upper.H -= hueSpan
		}
	}

	m, err := WithBounds(b)
	if err != nil {
		return Model{}, err
	}
	m.name = "sampled"
	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

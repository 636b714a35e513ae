package colorrange

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPreset(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Bounds
	}{
		{"red", []Bounds{
			{Lower: HSV{0, 120, 70}, Upper: HSV{10, 255, 255}},
			{Lower: HSV{170, 120, 70}, Upper: HSV{179, 255, 255}},
		}},
		{"blue", []Bounds{{Lower: HSV{100, 150, 50}, Upper: HSV{130, 255, 255}}}},
		{"green", []Bounds{{Lower: HSV{40, 40, 40}, Upper: HSV{80, 255, 255}}}},
		{"yellow", []Bounds{{Lower: HSV{20, 100, 100}, Upper: HSV{30, 255, 255}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromPreset(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, m.Name())
			if diff := cmp.Diff(tt.ranges, m.Ranges()); diff != "" {
				t.Errorf("ranges mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromPresetCaseInsensitive(t *testing.T) {
	m, err := FromPreset(" Blue ")
	require.NoError(t, err)
	assert.Equal(t, "blue", m.Name())
}

func TestFromPresetUnknown(t *testing.T) {
	_, err := FromPreset("purple")
	require.Error(t, err)

	var upe *UnknownPresetError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, "purple", upe.Name)
	assert.Contains(t, err.Error(), "red, blue, green, yellow")
}

func TestRedContainsWrapAround(t *testing.T) {
	red, err := FromPreset("red")
	require.NoError(t, err)

	assert.True(t, red.Contains(HSV{0, 255, 255}))
	assert.True(t, red.Contains(HSV{10, 120, 70}))
	assert.True(t, red.Contains(HSV{179, 200, 200}))
	assert.True(t, red.Contains(HSV{170, 120, 70}))

	assert.False(t, red.Contains(HSV{11, 255, 255}), "just past lower interval")
	assert.False(t, red.Contains(HSV{169, 255, 255}), "just before upper interval")
	assert.False(t, red.Contains(HSV{0, 119, 255}), "washed out")
	assert.False(t, red.Contains(HSV{0, 255, 69}), "too dark")
	assert.False(t, red.Contains(HSV{60, 255, 255}), "green")
}

func TestWithBounds(t *testing.T) {
	m, err := WithBounds(Bounds{Lower: HSV{35, 100, 100}, Upper: HSV{50, 255, 255}})
	require.NoError(t, err)
	assert.Equal(t, "custom", m.Name())
	assert.Len(t, m.Ranges(), 1)
	assert.True(t, m.Contains(HSV{40, 150, 150}))
	assert.False(t, m.Contains(HSV{51, 150, 150}))
}

func TestWithBoundsNormalizesHueWrap(t *testing.T) {
	m, err := WithBounds(Bounds{Lower: HSV{170, 120, 70}, Upper: HSV{10, 255, 255}})
	require.NoError(t, err)

	want := []Bounds{
		{Lower: HSV{0, 120, 70}, Upper: HSV{10, 255, 255}},
		{Lower: HSV{170, 120, 70}, Upper: HSV{179, 255, 255}},
	}
	if diff := cmp.Diff(want, m.Ranges()); diff != "" {
		t.Errorf("normalized ranges mismatch (-want +got):\n%s", diff)
	}

	for _, b := range m.Ranges() {
		assert.LessOrEqual(t, b.Lower.H, b.Upper.H)
		assert.LessOrEqual(t, b.Lower.S, b.Upper.S)
		assert.LessOrEqual(t, b.Lower.V, b.Upper.V)
	}
	assert.True(t, m.Contains(HSV{175, 200, 200}))
	assert.True(t, m.Contains(HSV{5, 200, 200}))
	assert.False(t, m.Contains(HSV{90, 200, 200}))
}

func TestWithBoundsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Bounds
	}{
		{"no pairs", nil},
		{"hue above domain", []Bounds{{Lower: HSV{0, 0, 0}, Upper: HSV{180, 255, 255}}}},
		{"negative value", []Bounds{{Lower: HSV{0, 0, -1}, Upper: HSV{10, 255, 255}}}},
		{"saturation above domain", []Bounds{{Lower: HSV{0, 0, 0}, Upper: HSV{10, 256, 255}}}},
		{"saturation inverted", []Bounds{{Lower: HSV{0, 200, 0}, Upper: HSV{10, 100, 255}}}},
		{"value inverted", []Bounds{{Lower: HSV{0, 0, 200}, Upper: HSV{10, 255, 100}}}},
		{"too many ranges", []Bounds{
			{Lower: HSV{170, 0, 0}, Upper: HSV{10, 255, 255}},
			{Lower: HSV{40, 0, 0}, Upper: HSV{80, 255, 255}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WithBounds(tt.pairs...)
			var ibe *InvalidBoundsError
			require.True(t, errors.As(err, &ibe), "got %v", err)
			assert.NotEmpty(t, ibe.Reason)
		})
	}
}

func TestRangesReturnsCopy(t *testing.T) {
	m, err := FromPreset("blue")
	require.NoError(t, err)

	r := m.Ranges()
	r[0].Lower.H = 0
	assert.Equal(t, 100, m.Ranges()[0].Lower.H)

	again, err := FromPreset("blue")
	require.NoError(t, err)
	assert.True(t, m.Equal(again))
}

func TestNextPreset(t *testing.T) {
	assert.Equal(t, "blue", NextPreset("red"))
	assert.Equal(t, "green", NextPreset("blue"))
	assert.Equal(t, "yellow", NextPreset("green"))
	assert.Equal(t, "red", NextPreset("yellow"))
	assert.Equal(t, "red", NextPreset("custom"))
	assert.Equal(t, []string{"red", "blue", "green", "yellow"}, Presets())
	assert.Equal(t, "Blue cloth/clothing", Describe("blue"))
}

func TestFromSample(t *testing.T) {
	m, err := FromSample(HSV{60, 200, 150}, Tolerance{H: 10, S: 60, V: 80})
	require.NoError(t, err)
	assert.Equal(t, "sampled", m.Name())

	want := []Bounds{{Lower: HSV{50, 140, 70}, Upper: HSV{70, 255, 230}}}
	if diff := cmp.Diff(want, m.Ranges()); diff != "" {
		t.Errorf("sampled ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestFromSampleWrapsHue(t *testing.T) {
	m, err := FromSample(HSV{2, 200, 200}, Tolerance{H: 10, S: 50, V: 50})
	require.NoError(t, err)

	require.Len(t, m.Ranges(), 2)
	assert.True(t, m.Contains(HSV{175, 200, 200}))
	assert.True(t, m.Contains(HSV{12, 200, 200}))
	assert.False(t, m.Contains(HSV{13, 200, 200}))
	assert.False(t, m.Contains(HSV{171, 200, 200}))
}

func TestFromSampleFullHue(t *testing.T) {
	m, err := FromSample(HSV{90, 10, 10}, Tolerance{H: 90})
	require.NoError(t, err)
	require.Len(t, m.Ranges(), 1)
	assert.True(t, m.Contains(HSV{0, 10, 10}))
	assert.True(t, m.Contains(HSV{179, 10, 10}))
}

func TestFromSampleInvalid(t *testing.T) {
	_, err := FromSample(HSV{200, 0, 0}, DefaultTolerance())
	var ibe *InvalidBoundsError
	assert.True(t, errors.As(err, &ibe))

	_, err = FromSample(HSV{10, 10, 10}, Tolerance{H: -1})
	assert.True(t, errors.As(err, &ibe))
}

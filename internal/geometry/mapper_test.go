package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapToPageBox(t *testing.T) {
	box, err := MapToPageBox(600, 800, RelRect{XRel: 0.1, YRel: 0.1, WRel: 0.3, HRel: 0.1})
	require.NoError(t, err)

	assert.InDelta(t, 60, box.X, 1e-9)
	assert.InDelta(t, 180, box.Width, 1e-9)
	assert.InDelta(t, 80, box.Height, 1e-9)
	assert.InDelta(t, 640, box.Y, 1e-9)
	assert.Equal(t, 800-0.1*800, box.Top())
}

func TestMapToPageBox_TopEdgeInvariant(t *testing.T) {
	pages := [][2]float64{{612, 792}, {595.28, 841.89}, {600, 800}, {1e-3, 3.7}, {14400, 14400}}
	rels := []RelRect{
		{XRel: 0, YRel: 0, WRel: 1, HRel: 1},
		{XRel: 0.1, YRel: 0.1, WRel: 0.3, HRel: 0.1},
		{XRel: 0.333, YRel: 0.777, WRel: 0.05, HRel: 0.6},
		{XRel: -0.2, YRel: 1.4, WRel: 2.5, HRel: 0.01},
		{XRel: 0.9, YRel: -0.3, WRel: 0.7, HRel: 3},
	}

	for _, p := range pages {
		for _, r := range rels {
			box, err := MapToPageBox(p[0], p[1], r)
			require.NoError(t, err)
			assert.Equal(t, p[1]-r.YRel*p[1], box.Y+box.Height, "page=%v rect=%+v", p, r)
		}
	}
}

func TestMapToPageBox_Idempotent(t *testing.T) {
	r := RelRect{XRel: 0.12, YRel: 0.34, WRel: 0.56, HRel: 0.078}
	a, errA := MapToPageBox(595.28, 841.89, r)
	b, errB := MapToPageBox(595.28, 841.89, r)

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestMapToPageBox_OffPageAllowed(t *testing.T) {
	box, err := MapToPageBox(100, 100, RelRect{XRel: 0.5, YRel: 0.9, WRel: 1, HRel: 0.5})
	require.NoError(t, err)
	assert.Less(t, box.Y, 0.0)
}

func TestMapToPageBox_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		w, h  float64
		rect  RelRect
		field string
	}{
		{"negative width", 600, 800, RelRect{WRel: -1, HRel: 0.1}, "wRel"},
		{"zero width", 600, 800, RelRect{WRel: 0, HRel: 0.1}, "wRel"},
		{"zero height", 600, 800, RelRect{WRel: 0.1, HRel: 0}, "hRel"},
		{"nan x", 600, 800, RelRect{XRel: math.NaN(), WRel: 0.1, HRel: 0.1}, "xRel"},
		{"inf y", 600, 800, RelRect{YRel: math.Inf(1), WRel: 0.1, HRel: 0.1}, "yRel"},
		{"inf height", 600, 800, RelRect{WRel: 0.1, HRel: math.Inf(-1)}, "hRel"},
		{"empty page", 0, 800, RelRect{WRel: 0.1, HRel: 0.1}, "pageWidth"},
		{"x overflows", 600, 800, RelRect{XRel: 1e308, YRel: 0.1, WRel: 0.3, HRel: 0.05}, "x"},
		{"width overflows", 600, 800, RelRect{XRel: 0.1, YRel: 0.1, WRel: 1e308, HRel: 0.05}, "width"},
		{"y overflows", 600, 800, RelRect{XRel: 0.1, YRel: -1e308, WRel: 0.3, HRel: 0.05}, "y"},
		{"height overflows", 600, 800, RelRect{XRel: 0.1, YRel: 0.1, WRel: 0.3, HRel: 1e308}, "height"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MapToPageBox(tt.w, tt.h, tt.rect)
			require.Error(t, err)

			var geomErr *InvalidGeometryError
			require.True(t, errors.As(err, &geomErr))
			assert.Equal(t, tt.field, geomErr.Field)
		})
	}
}

// Package geometry translates UI-normalized rectangles into page space.
package geometry

import (
	"fmt"
	"math"
)

// RelRect is a rectangle expressed as fractions of the page size with a
// top-left origin, the way the browser client reports field positions.
type RelRect struct {
	XRel float64
	YRel float64
	WRel float64
	HRel float64
}

// Box is an absolute rectangle in page units with a bottom-left origin.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Top returns the y coordinate of the box's top edge.
func (b Box) Top() float64 {
	return b.Y + b.Height
}

// Center returns the center point of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// InvalidGeometryError reports a rectangle that cannot be placed on a page.
type InvalidGeometryError struct {
	Field string
	Value float64
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry: %s=%v", e.Field, e.Value)
}

// MapToPageBox converts a normalized top-left rectangle into a bottom-left
// box on a page of the given size. The top edge of the result is always
// pageHeight - yRel*pageHeight; boxes may extend past the page bounds.
func MapToPageBox(pageWidth, pageHeight float64, r RelRect) (Box, error) {
	checks := []struct {
		name string
		v    float64
	}{
		{"pageWidth", pageWidth},
		{"pageHeight", pageHeight},
		{"xRel", r.XRel},
		{"yRel", r.YRel},
		{"wRel", r.WRel},
		{"hRel", r.HRel},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return Box{}, &InvalidGeometryError{Field: c.name, Value: c.v}
		}
	}
	if pageWidth <= 0 {
		return Box{}, &InvalidGeometryError{Field: "pageWidth", Value: pageWidth}
	}
	if pageHeight <= 0 {
		return Box{}, &InvalidGeometryError{Field: "pageHeight", Value: pageHeight}
	}
	if r.WRel <= 0 {
		return Box{}, &InvalidGeometryError{Field: "wRel", Value: r.WRel}
	}
	if r.HRel <= 0 {
		return Box{}, &InvalidGeometryError{Field: "hRel", Value: r.HRel}
	}

	boxWidth := r.WRel * pageWidth
	boxHeight := r.HRel * pageHeight
	top := pageHeight - r.YRel*pageHeight

	box := Box{
		X:      r.XRel * pageWidth,
		Y:      bottomFor(top, boxHeight),
		Width:  boxWidth,
		Height: boxHeight,
	}

	// Finite inputs can still overflow once scaled by the page size.
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"width", box.Width},
		{"height", box.Height},
		{"x", box.X},
		{"y", box.Y},
		{"top", box.Top()},
	} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return Box{}, &InvalidGeometryError{Field: c.name, Value: c.v}
		}
	}
	return box, nil
}

// bottomFor returns y such that y+height rounds to exactly top.
func bottomFor(top, height float64) float64 {
	y := top - height
	for i := 0; i < 8 && y+height != top; i++ {
		if y+height > top {
			y = math.Nextafter(y, math.Inf(-1))
		} else {
			y = math.Nextafter(y, math.Inf(1))
		}
	}
	return y
}

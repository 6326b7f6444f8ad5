package render

import (
	"math"

	"github.com/jonathan/pdf-signer/internal/canvas"
	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/geometry"
)

type radioRenderer struct{}

// Render draws an outlined ring with a filled dot when the field is checked.
func (radioRenderer) Render(_ *Context, page canvas.Page, f fields.Field, box geometry.Box) error {
	if !f.Checked {
		return nil
	}
	cx, cy := box.Center()
	r := math.Min(box.Width, box.Height) / 4

	ink := canvas.Black
	if err := page.DrawCircle(cx, cy, r, canvas.ShapeStyle{Stroke: &ink, StrokeWidth: 1}); err != nil {
		return err
	}
	return page.DrawCircle(cx, cy, r/2, canvas.ShapeStyle{Fill: &ink})
}

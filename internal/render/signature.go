package render

import (
	"math"

	"github.com/jonathan/pdf-signer/internal/canvas"
	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/geometry"
)

type signatureRenderer struct{}

func (signatureRenderer) Render(ctx *Context, page canvas.Page, _ fields.Field, box geometry.Box) error {
	img, err := ctx.SignatureImage()
	if err != nil {
		return err
	}
	x, y, w, h := ContainedFit(box, img.PixelWidth(), img.PixelHeight(), ctx.Options.ClampUpscale)
	return page.DrawImage(img, x, y, w, h)
}

// ContainedFit scales an image of iw by ih pixels uniformly to fit inside box
// and centers it. With clamp set the scale never exceeds 1. Unknown pixel
// dimensions stretch the image over the whole box.
func ContainedFit(box geometry.Box, iw, ih int, clamp bool) (x, y, w, h float64) {
	if iw <= 0 || ih <= 0 {
		return box.X, box.Y, box.Width, box.Height
	}
	scale := math.Min(box.Width/float64(iw), box.Height/float64(ih))
	if clamp {
		scale = math.Min(scale, 1)
	}
	w = float64(iw) * scale
	h = float64(ih) * scale
	x = box.X + (box.Width-w)/2
	y = box.Y + (box.Height-h)/2
	return x, y, w, h
}

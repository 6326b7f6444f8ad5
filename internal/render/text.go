package render

import (
	"strings"

	"github.com/jonathan/pdf-signer/internal/canvas"
	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/geometry"
)

type textRenderer struct{}

func (textRenderer) Render(ctx *Context, page canvas.Page, f fields.Field, box geometry.Box) error {
	if f.Value == "" {
		return ErrEmptyValue
	}
	return drawLine(ctx, page, f.Value, box)
}

type dateRenderer struct{}

func (dateRenderer) Render(ctx *Context, page canvas.Page, f fields.Field, box geometry.Box) error {
	value := f.Value
	if value == "" {
		value = ctx.Options.now().Format(DateLayout)
	}
	return drawLine(ctx, page, value, box)
}

// drawLine places one line of text at the inset, vertically centered.
func drawLine(ctx *Context, page canvas.Page, text string, box geometry.Box) error {
	font, err := ctx.Font()
	if err != nil {
		return err
	}
	size := ctx.Options.FontSize
	inset := ctx.Options.TextInset

	fitted := Truncate(text, font, size, box.Width-inset)
	if fitted == "" {
		return ErrTextTooNarrow
	}
	x := box.X + inset
	y := box.Y + box.Height/2 - size/2
	return page.DrawText(fitted, x, y, size, font)
}

// Truncate returns the longest prefix of text whose width at size fits in
// maxWidth.
func Truncate(text string, font canvas.Font, size, maxWidth float64) string {
	if maxWidth <= 0 {
		return ""
	}
	if font.TextWidth(text, size) <= maxWidth {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if font.TextWidth(string(runes[:mid]), size) <= maxWidth {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.TrimRight(string(runes[:lo]), " ")
}

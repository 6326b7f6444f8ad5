// Package render draws individual fields onto a page.
package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/pdf-signer/internal/canvas"
	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/geometry"
	"github.com/jonathan/pdf-signer/internal/sigimage"
)

// Renderer errors.
var (
	ErrEmptyValue     = errors.New("field value is empty")
	ErrNoSignature    = errors.New("no signature image available")
	ErrTextTooNarrow  = errors.New("field is too narrow for any text")
	ErrEmbedSignature = errors.New("failed to embed signature image")
)

// DateLayout formats default date values as DD/MM/YYYY.
const DateLayout = "02/01/2006"

// Options tunes the drawing rules.
type Options struct {
	// TextInset is the gap between the box's left edge and the text.
	TextInset float64
	// FontSize is the text and date size in points.
	FontSize float64
	// FontName is a standard font known to the document.
	FontName string
	// ClampUpscale stops signatures from growing past their native size.
	ClampUpscale bool
	// PNGFallback retries a failed signature embed as PNG.
	PNGFallback bool
	// Clock supplies the default date. Nil means time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the standard drawing rules.
func DefaultOptions() Options {
	return Options{
		TextInset:    4,
		FontSize:     10,
		FontName:     "Helvetica",
		ClampUpscale: true,
		PNGFallback:  true,
		Clock:        time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}

// Context holds per-document state shared by renderers. It is not safe for
// concurrent use.
type Context struct {
	Doc     canvas.Document
	Asset   *sigimage.Asset
	Options Options

	image    canvas.Image
	embedErr error
	embedded bool
	font     canvas.Font
}

// NewContext prepares rendering for doc. asset may be nil when the request
// carries no usable signature.
func NewContext(doc canvas.Document, asset *sigimage.Asset, opts Options) *Context {
	return &Context{Doc: doc, Asset: asset, Options: opts}
}

// SignatureImage embeds the shared asset on first use and returns the cached
// handle afterwards. A failed embed is cached too.
func (c *Context) SignatureImage() (canvas.Image, error) {
	if c.embedded {
		return c.image, c.embedErr
	}
	c.embedded = true

	if c.Asset == nil {
		c.embedErr = ErrNoSignature
		return nil, c.embedErr
	}

	img, err := c.Doc.EmbedImage(c.Asset.Data, canvas.ImageFormat(c.Asset.Format))
	if err != nil && c.Options.PNGFallback && c.Asset.Format != sigimage.FormatPNG {
		img, err = c.Doc.EmbedImage(c.Asset.Data, canvas.FormatPNG)
	}
	if err != nil {
		c.embedErr = fmt.Errorf("%w: %v", ErrEmbedSignature, err)
		return nil, c.embedErr
	}
	c.image = img
	return img, nil
}

// Font returns the text font, registering it on first use.
func (c *Context) Font() (canvas.Font, error) {
	if c.font != nil {
		return c.font, nil
	}
	f, err := c.Doc.StandardFont(c.Options.FontName)
	if err != nil {
		return nil, fmt.Errorf("failed to load font %s: %w", c.Options.FontName, err)
	}
	c.font = f
	return f, nil
}

// Renderer draws one field type into its mapped box.
type Renderer interface {
	Render(ctx *Context, page canvas.Page, f fields.Field, box geometry.Box) error
}

// For returns the renderer for t. Unknown types have none.
func For(t fields.Type) (Renderer, bool) {
	switch t {
	case fields.TypeSignature:
		return signatureRenderer{}, true
	case fields.TypeText:
		return textRenderer{}, true
	case fields.TypeDate:
		return dateRenderer{}, true
	case fields.TypeRadio:
		return radioRenderer{}, true
	default:
		return nil, false
	}
}

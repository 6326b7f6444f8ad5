// Package canvastest provides recording implementations of the canvas
// interfaces for tests.
package canvastest

import (
	"errors"
	"fmt"

	"github.com/jonathan/pdf-signer/internal/canvas"
)

// Op is one recorded draw call.
type Op struct {
	Kind  string // image, text, circle, rect
	Page  int
	X, Y  float64
	W, H  float64
	R     float64
	Text  string
	Size  float64
	Font  string
	Style canvas.ShapeStyle
	Image *Image
}

// Image is a fake embedded image.
type Image struct {
	Width  int
	Height int
	Data   []byte
	Format canvas.ImageFormat
}

func (i *Image) PixelWidth() int  { return i.Width }
func (i *Image) PixelHeight() int { return i.Height }

// Font measures every rune as Advance points per unit of size.
type Font struct {
	FontName string
	Advance  float64
}

func (f *Font) Name() string { return f.FontName }

func (f *Font) TextWidth(s string, size float64) float64 {
	return float64(len([]rune(s))) * f.Advance * size
}

// Document records draw calls across its pages.
type Document struct {
	Pages []*Page
	Ops   []Op

	// ImageWidth and ImageHeight are reported by embedded images.
	ImageWidth, ImageHeight int
	// EmbedErr fails embeds whose format matches FailFormat, or all embeds
	// when FailFormat is empty.
	EmbedErr   error
	FailFormat canvas.ImageFormat
	Embeds     []canvas.ImageFormat

	FontErr error
	Saved   []byte
	SaveErr error
}

// NewDocument returns a document with pages of the given sizes.
func NewDocument(sizes ...[2]float64) *Document {
	d := &Document{ImageWidth: 300, ImageHeight: 100}
	for i, s := range sizes {
		d.Pages = append(d.Pages, &Page{doc: d, index: i, Width: s[0], Height: s[1]})
	}
	return d
}

func (d *Document) PageCount() int { return len(d.Pages) }

func (d *Document) Page(i int) (canvas.Page, error) {
	if i < 0 || i >= len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range", i)
	}
	return d.Pages[i], nil
}

func (d *Document) EmbedImage(data []byte, format canvas.ImageFormat) (canvas.Image, error) {
	d.Embeds = append(d.Embeds, format)
	if d.EmbedErr != nil && (d.FailFormat == "" || d.FailFormat == format) {
		return nil, d.EmbedErr
	}
	return &Image{Width: d.ImageWidth, Height: d.ImageHeight, Data: data, Format: format}, nil
}

func (d *Document) StandardFont(name string) (canvas.Font, error) {
	if d.FontErr != nil {
		return nil, d.FontErr
	}
	return &Font{FontName: name, Advance: 0.5}, nil
}

// Save returns Saved, or a summary of the recorded ops when Saved is nil.
func (d *Document) Save() ([]byte, error) {
	if d.SaveErr != nil {
		return nil, d.SaveErr
	}
	if d.Saved != nil {
		return d.Saved, nil
	}
	return []byte(fmt.Sprintf("%d ops", len(d.Ops))), nil
}

// OpsOfKind filters the recorded ops.
func (d *Document) OpsOfKind(kind string) []Op {
	var out []Op
	for _, op := range d.Ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// Page is a fake page.
type Page struct {
	doc    *Document
	index  int
	Width  float64
	Height float64
	// DrawErr fails every draw call.
	DrawErr error
}

func (p *Page) Size() (float64, float64) { return p.Width, p.Height }

func (p *Page) record(op Op) error {
	if p.DrawErr != nil {
		return p.DrawErr
	}
	op.Page = p.index
	p.doc.Ops = append(p.doc.Ops, op)
	return nil
}

func (p *Page) DrawImage(img canvas.Image, x, y, w, h float64) error {
	im, ok := img.(*Image)
	if !ok {
		return errors.New("foreign image")
	}
	return p.record(Op{Kind: "image", X: x, Y: y, W: w, H: h, Image: im})
}

func (p *Page) DrawText(text string, x, y, size float64, font canvas.Font) error {
	return p.record(Op{Kind: "text", X: x, Y: y, Text: text, Size: size, Font: font.Name()})
}

func (p *Page) DrawCircle(cx, cy, r float64, style canvas.ShapeStyle) error {
	return p.record(Op{Kind: "circle", X: cx, Y: cy, R: r, Style: style})
}

func (p *Page) DrawRectangle(x, y, w, h float64, style canvas.ShapeStyle) error {
	return p.record(Op{Kind: "rect", X: x, Y: y, W: w, H: h, Style: style})
}

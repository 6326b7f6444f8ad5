// Package canvas defines the page model the field renderers draw into.
// The PDF layer implements it; tests use recording fakes.
package canvas

// ImageFormat identifies the raster encoding of an embedded image.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// Color is an RGB color with components in [0,1].
type Color struct {
	R, G, B float64
}

// Black is the default ink color.
var Black = Color{}

// ShapeStyle controls how a shape is painted. A nil color disables that paint.
type ShapeStyle struct {
	Fill        *Color
	Stroke      *Color
	StrokeWidth float64
}

// Document is a loaded document that can be drawn on and serialized.
type Document interface {
	PageCount() int
	Page(i int) (Page, error)
	// EmbedImage registers raster bytes with the document and returns a handle
	// that can be drawn on any page.
	EmbedImage(data []byte, format ImageFormat) (Image, error)
	StandardFont(name string) (Font, error)
	Save() ([]byte, error)
}

// Page is a single page in page-native coordinates (bottom-left origin).
type Page interface {
	Size() (width, height float64)
	DrawImage(img Image, x, y, w, h float64) error
	DrawText(text string, x, y, size float64, font Font) error
	DrawCircle(cx, cy, r float64, style ShapeStyle) error
	DrawRectangle(x, y, w, h float64, style ShapeStyle) error
}

// Image is an embedded image handle. Dimensions are in pixels and may be zero
// when the backend cannot determine them.
type Image interface {
	PixelWidth() int
	PixelHeight() int
}

// Font is a font handle usable for drawing and measuring text.
type Font interface {
	Name() string
	TextWidth(s string, size float64) float64
}

package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/jonathan/pdf-signer/internal/canvas"
)

// DefaultMaxImagePixels is the raster budget of a new Document, 4096x4096.
const DefaultMaxImagePixels = 4096 * 4096

// ImageTooLargeError reports a raster whose header declares more pixels than
// the document accepts.
type ImageTooLargeError struct {
	Width  int
	Height int
	Limit  int
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("image of %dx%d pixels exceeds limit of %d", e.Width, e.Height, e.Limit)
}

// Image is an image XObject registered on a document.
type Image struct {
	doc    *Document
	ref    types.IndirectRef
	width  int
	height int
}

// PixelWidth returns the image width in pixels.
func (i *Image) PixelWidth() int { return i.width }

// PixelHeight returns the image height in pixels.
func (i *Image) PixelHeight() int { return i.height }

// EmbedImage adds an image XObject to the document. The header is checked
// against MaxImagePixels before any pixel data is decoded.
func (d *Document) EmbedImage(data []byte, format canvas.ImageFormat) (canvas.Image, error) {
	var cfg image.Config
	var err error
	switch format {
	case canvas.FormatPNG:
		cfg, err = png.DecodeConfig(bytes.NewReader(data))
	case canvas.FormatJPEG:
		cfg, err = jpeg.DecodeConfig(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s header: %w", format, err)
	}
	if err := d.checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	var sd *types.StreamDict
	if format == canvas.FormatPNG {
		sd, err = d.pngXObject(data)
	} else {
		sd, err = jpegXObject(data, cfg)
	}
	if err != nil {
		return nil, err
	}

	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to add image: %w", err)
	}
	return &Image{doc: d, ref: *ref, width: cfg.Width, height: cfg.Height}, nil
}

func (d *Document) checkPixels(w, h int) error {
	limit := d.MaxImagePixels
	if limit <= 0 {
		limit = DefaultMaxImagePixels
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image has zero size")
	}
	if w > limit/h {
		return &ImageTooLargeError{Width: w, Height: h, Limit: limit}
	}
	return nil
}

// pngXObject converts a PNG to an RGB Flate stream, adding a DeviceGray SMask
// when any pixel is not fully opaque.
func (d *Document) pngXObject(data []byte) (*types.StreamDict, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb = append(rgb, c.R, c.G, c.B)
			alpha = append(alpha, c.A)
			if c.A != 0xff {
				opaque = false
			}
		}
	}

	sd, err := flateStream(imageDict(w, h, "DeviceRGB"), rgb)
	if err != nil {
		return nil, err
	}
	if !opaque {
		mask, err := flateStream(imageDict(w, h, "DeviceGray"), alpha)
		if err != nil {
			return nil, err
		}
		maskRef, err := d.ctx.IndRefForNewObject(*mask)
		if err != nil {
			return nil, fmt.Errorf("failed to add soft mask: %w", err)
		}
		sd.Dict["SMask"] = *maskRef
	}
	return sd, nil
}

// jpegXObject embeds the JPEG bytes unchanged behind DCTDecode.
func jpegXObject(data []byte, cfg image.Config) (*types.StreamDict, error) {
	cs := "DeviceRGB"
	switch cfg.ColorModel {
	case color.GrayModel:
		cs = "DeviceGray"
	case color.CMYKModel:
		cs = "DeviceCMYK"
	}

	dict := imageDict(cfg.Width, cfg.Height, cs)
	dict["Filter"] = types.Name(filter.DCT)
	if cs == "DeviceCMYK" {
		// Adobe CMYK JPEGs are stored inverted.
		dict["Decode"] = types.Array{
			types.Integer(1), types.Integer(0), types.Integer(1), types.Integer(0),
			types.Integer(1), types.Integer(0), types.Integer(1), types.Integer(0),
		}
	}

	sd := &types.StreamDict{
		Dict:           dict,
		Content:        data,
		Raw:            data,
		FilterPipeline: []types.PDFFilter{{Name: filter.DCT}},
	}
	setLength(sd)
	return sd, nil
}

func imageDict(w, h int, cs string) types.Dict {
	d := types.NewDict()
	d["Type"] = types.Name("XObject")
	d["Subtype"] = types.Name("Image")
	d["Width"] = types.Integer(w)
	d["Height"] = types.Integer(h)
	d["ColorSpace"] = types.Name(cs)
	d["BitsPerComponent"] = types.Integer(8)
	return d
}

// flateStream builds a FlateDecode stream from content.
func flateStream(dict types.Dict, content []byte) (*types.StreamDict, error) {
	dict["Filter"] = types.Name(filter.Flate)
	sd := &types.StreamDict{
		Dict:           dict,
		Content:        content,
		FilterPipeline: []types.PDFFilter{{Name: filter.Flate}},
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode stream: %w", err)
	}
	setLength(sd)
	return sd, nil
}

func setLength(sd *types.StreamDict) {
	n := int64(len(sd.Raw))
	sd.StreamLength = &n
	sd.Dict["Length"] = types.Integer(n)
}

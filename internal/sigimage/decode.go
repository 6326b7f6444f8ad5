// Package sigimage validates and decodes the data-URL signature images sent
// by the signing client.
package sigimage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"
)

// Format is the raster encoding of a decoded signature.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultMaxBytes is the decoded size ceiling used when none is configured.
const DefaultMaxBytes = 2 * 1024 * 1024

// DefaultMaxPixels bounds the declared raster size, 4096x4096.
const DefaultMaxPixels = 4096 * 4096

var dataURLPattern = regexp.MustCompile(`^data:(image/png|image/jpeg|image/jpg);base64,(.+)$`)

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// Asset is a decoded signature image shared by all signature fields of one request.
type Asset struct {
	Data   []byte
	Format Format
}

// InvalidImageError reports a data URL that is malformed or of an unsupported type.
type InvalidImageError struct {
	Message string
	Cause   error
}

func (e *InvalidImageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid signature image: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid signature image: %s", e.Message)
}

func (e *InvalidImageError) Unwrap() error {
	return e.Cause
}

// TooLargeError reports a decoded image above the configured ceiling.
type TooLargeError struct {
	Size  int
	Limit int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("signature image too large: %d bytes exceeds limit of %d", e.Size, e.Limit)
}

// PixelLimitError reports an image whose header declares more pixels than
// the configured budget.
type PixelLimitError struct {
	Width  int
	Height int
	Limit  int
}

func (e *PixelLimitError) Error() string {
	return fmt.Sprintf("signature image too large: %dx%d pixels exceeds limit of %d", e.Width, e.Height, e.Limit)
}

// Decoder decodes signature data URLs. The zero value uses DefaultMaxBytes
// and DefaultMaxPixels.
type Decoder struct {
	MaxBytes  int
	MaxPixels int
}

// NewDecoder returns a decoder with the given decoded size ceiling.
// A non-positive limit selects DefaultMaxBytes.
func NewDecoder(maxBytes int) *Decoder {
	return &Decoder{MaxBytes: maxBytes}
}

func (d *Decoder) limit() int {
	if d == nil || d.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return d.MaxBytes
}

func (d *Decoder) pixelLimit() int {
	if d == nil || d.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return d.MaxPixels
}

// Decode validates a data URL of the form data:image/(png|jpeg|jpg);base64,...
// and returns the decoded bytes with their declared format.
func (d *Decoder) Decode(dataURL string) (*Asset, error) {
	match := dataURLPattern.FindStringSubmatch(dataURL)
	if match == nil {
		return nil, &InvalidImageError{Message: "expected data:image/png or data:image/jpeg base64 URL"}
	}

	payload := match[2]
	limit := d.limit()
	// Reject obviously oversized payloads before allocating for them.
	if base64.StdEncoding.DecodedLen(len(payload)) > limit+3 {
		return nil, &TooLargeError{Size: base64.StdEncoding.DecodedLen(len(payload)), Limit: limit}
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, &InvalidImageError{Message: "malformed base64 payload", Cause: err}
	}
	if len(data) == 0 {
		return nil, &InvalidImageError{Message: "empty image payload"}
	}
	if len(data) > limit {
		return nil, &TooLargeError{Size: len(data), Limit: limit}
	}

	if err := CheckPixels(data, d.pixelLimit()); err != nil {
		return nil, err
	}

	format := FormatJPEG
	if match[1] == "image/png" {
		format = FormatPNG
	}

	return &Asset{Data: data, Format: format}, nil
}

// CheckPixels reads only the image header and rejects rasters above limit
// pixels. Data whose header cannot be read is left for the embedder to
// reject.
func CheckPixels(data []byte, limit int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return &InvalidImageError{Message: fmt.Sprintf("image declares %dx%d pixels", cfg.Width, cfg.Height)}
	}
	if cfg.Width > limit/cfg.Height {
		return &PixelLimitError{Width: cfg.Width, Height: cfg.Height, Limit: limit}
	}
	return nil
}

// Sniff detects the raster format from magic bytes. It returns an empty
// Format when the data is neither PNG nor JPEG.
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG
	default:
		return ""
	}
}

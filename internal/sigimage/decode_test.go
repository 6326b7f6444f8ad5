package sigimage

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func dataURL(mime string, b []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

func TestDecode_Formats(t *testing.T) {
	pngBytes := testPNG(t, 30, 10)
	jpegBytes := testJPEG(t, 30, 10)

	tests := []struct {
		name   string
		url    string
		want   []byte
		format Format
	}{
		{"png", dataURL("image/png", pngBytes), pngBytes, FormatPNG},
		{"jpeg", dataURL("image/jpeg", jpegBytes), jpegBytes, FormatJPEG},
		{"jpg alias", dataURL("image/jpg", jpegBytes), jpegBytes, FormatJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := NewDecoder(0).Decode(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.format, asset.Format)
			assert.Equal(t, tt.want, asset.Data)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"not a data url", "not-a-data-url"},
		{"gif", "data:image/gif;base64,AAA"},
		{"svg", "data:image/svg+xml;base64,PHN2Zz4="},
		{"missing base64 marker", "data:image/png,AAAA"},
		{"malformed base64", "data:image/png;base64,@@@@"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(0).Decode(tt.url)
			require.Error(t, err)

			var invalid *InvalidImageError
			assert.True(t, errors.As(err, &invalid), "got %T", err)
		})
	}
}

func TestDecode_TooLarge(t *testing.T) {
	big := make([]byte, DefaultMaxBytes+1)
	copy(big, pngMagic)

	_, err := NewDecoder(0).Decode(dataURL("image/png", big))
	require.Error(t, err)

	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge), "got %T", err)
	assert.Equal(t, DefaultMaxBytes, tooLarge.Limit)
}

func TestDecode_ConfigurableLimit(t *testing.T) {
	pngBytes := testPNG(t, 40, 40)

	_, err := NewDecoder(len(pngBytes) - 1).Decode(dataURL("image/png", pngBytes))
	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, len(pngBytes), tooLarge.Size)

	asset, err := NewDecoder(len(pngBytes)).Decode(dataURL("image/png", pngBytes))
	require.NoError(t, err)
	assert.Len(t, asset.Data, len(pngBytes))
}

// pngHeader returns a PNG signature and IHDR chunk with no image data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8
	ihdr[9] = 6
	chunk := append([]byte("IHDR"), ihdr...)

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecode_PixelBudget(t *testing.T) {
	huge := pngHeader(20000, 20000)

	_, err := NewDecoder(0).Decode(dataURL("image/png", huge))
	var pixels *PixelLimitError
	require.True(t, errors.As(err, &pixels), "got %v", err)
	assert.Equal(t, 20000, pixels.Width)
	assert.Equal(t, DefaultMaxPixels, pixels.Limit)

	small := testPNG(t, 40, 40)
	_, err = (&Decoder{MaxPixels: 1599}).Decode(dataURL("image/png", small))
	require.True(t, errors.As(err, &pixels))

	asset, err := (&Decoder{MaxPixels: 1600}).Decode(dataURL("image/png", small))
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, asset.Format)

	_, err = (&Decoder{MaxPixels: 10}).Decode(dataURL("image/jpeg", testJPEG(t, 8, 8)))
	require.True(t, errors.As(err, &pixels))
}

func TestCheckPixels_UnreadableHeaderPasses(t *testing.T) {
	assert.NoError(t, CheckPixels([]byte("\x89PNG junk"), 1))
}

func TestSniff(t *testing.T) {
	assert.Equal(t, FormatPNG, Sniff(testPNG(t, 2, 2)))
	assert.Equal(t, FormatJPEG, Sniff(testJPEG(t, 2, 2)))
	assert.Equal(t, Format(""), Sniff([]byte("GIF89a")))
	assert.Equal(t, Format(""), Sniff(nil))
}

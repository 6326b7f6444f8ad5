package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

// Helvetica is the base-14 font used for text and date fields.
const Helvetica = "Helvetica"

// helveticaWidths holds advance widths in 1/1000 em for WinAnsi codes 32-255.
var helveticaWidths = [224]int{
	// 32-63
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	// 64-95
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	// 96-127
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584, 350,
	// 128-159
	556, 350, 222, 556, 333, 1000, 556, 556, 333, 1000, 667, 333, 1000, 350, 611, 350,
	350, 222, 222, 333, 333, 350, 556, 1000, 333, 1000, 500, 333, 944, 350, 500, 667,
	// 160-191
	278, 333, 556, 556, 556, 556, 260, 556, 333, 737, 370, 556, 584, 333, 737, 333,
	400, 584, 333, 333, 333, 556, 537, 278, 333, 333, 365, 556, 834, 834, 834, 611,
	// 192-223
	667, 667, 667, 667, 667, 667, 1000, 722, 667, 667, 667, 667, 278, 278, 278, 278,
	722, 722, 778, 778, 778, 778, 778, 584, 778, 722, 722, 722, 722, 667, 667, 611,
	// 224-255
	556, 556, 556, 556, 556, 556, 889, 500, 556, 556, 556, 556, 278, 278, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 584, 611, 556, 556, 556, 556, 500, 556, 500,
}

// Font is a standard Type1 font registered on a document.
type Font struct {
	doc  *Document
	name string
	ref  types.IndirectRef
}

// Name returns the base font name.
func (f *Font) Name() string { return f.name }

// TextWidth returns the width of s in points at the given size.
func (f *Font) TextWidth(s string, size float64) float64 {
	units := 0
	for _, c := range encodeWinAnsi(s) {
		units += glyphWidth(c)
	}
	return float64(units) * size / 1000
}

func glyphWidth(c byte) int {
	if c < 32 {
		return 0
	}
	return helveticaWidths[c-32]
}

// encodeWinAnsi converts s to WinAnsiEncoding. Characters outside the code
// page become '?'.
func encodeWinAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok || b < 32 {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

func fontDict(name string) (types.Dict, error) {
	if name != Helvetica {
		return nil, fmt.Errorf("unsupported standard font %q", name)
	}
	d := types.NewDict()
	d["Type"] = types.Name("Font")
	d["Subtype"] = types.Name("Type1")
	d["BaseFont"] = types.Name(name)
	d["Encoding"] = types.Name("WinAnsiEncoding")
	return d, nil
}

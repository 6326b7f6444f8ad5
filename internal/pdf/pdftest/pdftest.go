// Package pdftest builds small PDF files for tests.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// A4 page size in points.
const (
	A4Width  = 595.28
	A4Height = 841.89
)

// Options controls the generated file.
type Options struct {
	Pages  int
	Width  float64
	Height float64
	// Origin offsets the MediaBox lower-left corner.
	Origin [2]float64
	// InheritMediaBox puts the MediaBox on the page tree root.
	InheritMediaBox bool
	// XRefStream writes a cross-reference stream instead of a table.
	XRefStream bool
	// ObjectStream stores the catalog and page dictionaries in an object
	// stream. It implies XRefStream.
	ObjectStream bool
	// CollidingNames gives every page an existing font named SigF1 and an
	// XObject named SigIm1.
	CollidingNames bool
	// BreakXRef corrupts the startxref offset.
	BreakXRef bool
	// Encrypt adds an /Encrypt entry to the trailer.
	Encrypt bool
	// NoTrailingNewline drops the final EOL after %%EOF.
	NoTrailingNewline bool
	// ForgedSize overrides the trailer /Size entry when non-zero.
	ForgedSize int
}

// A4 returns a blank A4 document with the given number of pages.
func A4(pages int) []byte {
	return Build(Options{Pages: pages, Width: A4Width, Height: A4Height})
}

// Letter returns a blank US Letter document with the given number of pages.
func Letter(pages int) []byte {
	return Build(Options{Pages: pages, Width: 612, Height: 792})
}

type object struct {
	num  int
	body []byte
	// packed objects live in the object stream.
	packed bool
}

// Build writes a PDF according to opts.
func Build(opts Options) []byte {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.Width == 0 {
		opts.Width, opts.Height = 612, 792
	}
	if opts.ObjectStream {
		opts.XRefStream = true
	}

	mediaBox := fmt.Sprintf("[%g %g %g %g]", opts.Origin[0], opts.Origin[1],
		opts.Origin[0]+opts.Width, opts.Origin[1]+opts.Height)

	// 1 catalog, 2 pages, 3 info, 4 font, 5 image, then page/content pairs.
	var objs []object
	kids := new(bytes.Buffer)
	for i := 0; i < opts.Pages; i++ {
		fmt.Fprintf(kids, "%d 0 R ", 6+2*i)
	}

	pagesDict := fmt.Sprintf("<</Type/Pages/Kids[%s]/Count %d", bytes.TrimSpace(kids.Bytes()), opts.Pages)
	if opts.InheritMediaBox {
		pagesDict += "/MediaBox" + mediaBox
	}
	pagesDict += ">>"

	objs = append(objs,
		object{num: 1, body: []byte("<</Type/Catalog/Pages 2 0 R>>"), packed: opts.ObjectStream},
		object{num: 2, body: []byte(pagesDict), packed: opts.ObjectStream},
		object{num: 3, body: []byte("<</Producer(pdftest)>>"), packed: opts.ObjectStream},
		object{num: 4, body: []byte("<</Type/Font/Subtype/Type1/BaseFont/Helvetica>>"), packed: opts.ObjectStream},
		object{num: 5, body: stream("<</Type/XObject/Subtype/Image/Width 1/Height 1/ColorSpace/DeviceGray/BitsPerComponent 8", []byte{0x80})},
	)

	for i := 0; i < opts.Pages; i++ {
		page := fmt.Sprintf("<</Type/Page/Parent 2 0 R/Contents %d 0 R", 7+2*i)
		if !opts.InheritMediaBox {
			page += "/MediaBox" + mediaBox
		}
		if opts.CollidingNames {
			page += "/Resources<</ProcSet[/PDF]/Font<</SigF1 4 0 R>>/XObject<</SigIm1 5 0 R>>>>"
		} else {
			page += "/Resources<</ProcSet[/PDF]>>"
		}
		page += ">>"
		content := fmt.Sprintf("0 0 1 RG %g %g 20 20 re S", opts.Origin[0]+10, opts.Origin[1]+10)
		objs = append(objs,
			object{num: 6 + 2*i, body: []byte(page), packed: opts.ObjectStream},
			object{num: 7 + 2*i, body: stream("<<", []byte(content))},
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make(map[int]int)
	packedIndex := make(map[int]int)
	var packed []object
	for _, o := range objs {
		if o.packed {
			packedIndex[o.num] = len(packed)
			packed = append(packed, o)
			continue
		}
		offsets[o.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
	}

	size := 6 + 2*opts.Pages
	objStmNum := 0
	if len(packed) > 0 {
		objStmNum = size
		size++
		offsets[objStmNum] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", objStmNum, objectStream(packed))
	}

	trailer := "/Root 1 0 R/Info 3 0 R/ID[<0102030405060708090A0B0C0D0E0F10><0102030405060708090A0B0C0D0E0F10>]"
	if opts.Encrypt {
		trailer += "/Encrypt<</Filter/Standard/V 1/R 2>>"
	}

	trailerSize := func() int {
		if opts.ForgedSize != 0 {
			return opts.ForgedSize
		}
		return size
	}

	var xrefOffset int
	if opts.XRefStream {
		xrefNum := size
		size++
		xrefOffset = buf.Len()
		offsets[xrefNum] = xrefOffset

		var rows bytes.Buffer
		for num := 0; num < size; num++ {
			var f2 [4]byte
			switch {
			case num == 0:
				rows.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
				continue
			case isPacked(packedIndex, num):
				binary.BigEndian.PutUint32(f2[:], uint32(objStmNum))
				rows.WriteByte(2)
				rows.Write(f2[:])
				rows.Write([]byte{0, byte(packedIndex[num])})
			default:
				binary.BigEndian.PutUint32(f2[:], uint32(offsets[num]))
				rows.WriteByte(1)
				rows.Write(f2[:])
				rows.Write([]byte{0, 0})
			}
		}
		data := deflate(rows.Bytes())
		fmt.Fprintf(&buf, "%d 0 obj\n<</Type/XRef/Size %d/W[1 4 2]%s/Filter/FlateDecode/Length %d>>\nstream\n", xrefNum, trailerSize(), trailer, len(data))
		buf.Write(data)
		buf.WriteString("\nendstream\nendobj\n")
	} else {
		xrefOffset = buf.Len()
		fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", size)
		for num := 1; num < size; num++ {
			fmt.Fprintf(&buf, "%010d 00000 n\r\n", offsets[num])
		}
		fmt.Fprintf(&buf, "trailer\n<</Size %d%s>>\n", trailerSize(), trailer)
	}

	if opts.BreakXRef {
		xrefOffset += 7
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)
	if !opts.NoTrailingNewline {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func isPacked(index map[int]int, num int) bool {
	_, ok := index[num]
	return ok
}

func stream(dictPrefix string, data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s/Length %d>>\nstream\n", dictPrefix, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}

func objectStream(objs []object) []byte {
	var header, body bytes.Buffer
	for _, o := range objs {
		fmt.Fprintf(&header, "%d %d ", o.num, body.Len())
		body.Write(o.body)
		body.WriteByte('\n')
	}
	raw := append(header.Bytes(), body.Bytes()...)
	data := deflate(raw)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<</Type/ObjStm/N %d/First %d/Filter/FlateDecode/Length %d>>\nstream\n", len(objs), header.Len(), len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}

func deflate(data []byte) []byte {
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	zw.Write(data)
	zw.Close()
	return b.Bytes()
}

// PNGHeader returns a PNG signature and an RGBA IHDR chunk declaring w by h
// pixels, with no image data after it.
func PNGHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8
	ihdr[9] = 6
	chunk := append([]byte("IHDR"), ihdr...)

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

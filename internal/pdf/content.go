package pdf

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/jonathan/pdf-signer/internal/canvas"
)

// kappa places cubic Bezier control points so four curves approximate a circle.
const kappa = 0.5522847498

// contentBuilder accumulates page content operators.
type contentBuilder struct {
	buf bytes.Buffer
}

func (c *contentBuilder) Len() int { return c.buf.Len() }

func (c *contentBuilder) Bytes() []byte { return c.buf.Bytes() }

func (c *contentBuilder) op(operator string, operands ...float64) {
	for _, v := range operands {
		c.buf.WriteString(formatNumber(v))
		c.buf.WriteByte(' ')
	}
	c.buf.WriteString(operator)
	c.buf.WriteByte('\n')
}

func (c *contentBuilder) save()    { c.op("q") }
func (c *contentBuilder) restore() { c.op("Q") }

func (c *contentBuilder) image(name string, x, y, w, h float64) {
	c.save()
	c.op("cm", w, 0, 0, h, x, y)
	c.name(name)
	c.buf.WriteString(" Do\n")
	c.restore()
}

func (c *contentBuilder) text(fontName string, encoded []byte, x, y, size float64) {
	c.save()
	c.fill(canvas.Black)
	c.op("BT")
	c.name(fontName)
	c.buf.WriteByte(' ')
	c.op("Tf", size)
	c.op("Td", x, y)
	writeLiteralString(&c.buf, encoded)
	c.buf.WriteString(" Tj\n")
	c.op("ET")
	c.restore()
}

func (c *contentBuilder) rectangle(x, y, w, h float64, style canvas.ShapeStyle) {
	c.save()
	c.style(style)
	c.op("re", x, y, w, h)
	c.paint(style)
	c.restore()
}

func (c *contentBuilder) circle(cx, cy, r float64, style canvas.ShapeStyle) {
	k := r * kappa
	c.save()
	c.style(style)
	c.op("m", cx+r, cy)
	c.op("c", cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	c.op("c", cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	c.op("c", cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	c.op("c", cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	c.op("h")
	c.paint(style)
	c.restore()
}

func (c *contentBuilder) fill(col canvas.Color) {
	c.op("rg", col.R, col.G, col.B)
}

func (c *contentBuilder) stroke(col canvas.Color) {
	c.op("RG", col.R, col.G, col.B)
}

func (c *contentBuilder) style(s canvas.ShapeStyle) {
	if s.Fill != nil {
		c.fill(*s.Fill)
	}
	if s.Stroke != nil {
		c.stroke(*s.Stroke)
		width := s.StrokeWidth
		if width <= 0 {
			width = 1
		}
		c.op("w", width)
	}
}

func (c *contentBuilder) paint(s canvas.ShapeStyle) {
	switch {
	case s.Fill != nil && s.Stroke != nil:
		c.op("B")
	case s.Fill != nil:
		c.op("f")
	case s.Stroke != nil:
		c.op("S")
	default:
		c.op("n")
	}
}

// name writes a resource name. Names are generated by resourceName and are
// always plain ASCII.
func (c *contentBuilder) name(n string) {
	c.buf.WriteByte('/')
	c.buf.WriteString(n)
}

func writeLiteralString(buf *bytes.Buffer, value []byte) {
	buf.WriteByte('(')
	for _, c := range value {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\r':
			buf.WriteString(`\r`)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

// formatNumber writes a float without exponent, trimmed to 4 decimals.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// wrapOps isolates operators in their own graphics state.
func wrapOps(ops []byte) []byte {
	out := make([]byte, 0, len(ops)+4)
	out = append(out, "q\n"...)
	out = append(out, ops...)
	out = append(out, "Q\n"...)
	return out
}

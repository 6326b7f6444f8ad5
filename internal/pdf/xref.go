package pdf

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// minObjectBytes is the smallest span one object can occupy in a file.
const minObjectBytes = 8

var sizeEntry = regexp.MustCompile(`/Size[\x00\t\n\f\r ]+(\d+)`)

// capObjectCount rewrites every integer /Size entry larger than the file
// could hold so a forged trailer cannot size the cross-reference table. The
// digits are zero-padded in place, leaving all byte offsets unchanged. data
// itself is never modified.
func capObjectCount(data []byte) []byte {
	limit := len(data)/minObjectBytes + 1
	capped := strconv.Itoa(limit)

	out, cloned := data, false
	for _, m := range sizeEntry.FindAllSubmatchIndex(data, -1) {
		digits := data[m[2]:m[3]]
		if n, err := strconv.Atoi(string(digits)); err == nil && n <= limit {
			continue
		}
		if len(capped) > len(digits) {
			continue
		}
		if !cloned {
			out, cloned = bytes.Clone(data), true
		}
		copy(out[m[2]:m[3]], strings.Repeat("0", len(digits)-len(capped))+capped)
	}
	return out
}

// normalizeSize sets the object count to one past the highest object that
// was actually read, so new objects are numbered densely after it.
func normalizeSize(ctx *model.Context) {
	highest := 0
	for nr := range ctx.Table {
		if nr > highest {
			highest = nr
		}
	}
	size := highest + 1
	ctx.Size = &size
}

package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrAlreadySaved is returned by a second Save after drawing.
var ErrAlreadySaved = errors.New("document already saved")

// Save serializes the document with every drawing made since Open. Each
// touched page gets its original content wrapped in q/Q and the new
// operators appended in a graphics state of their own. With nothing drawn
// the original bytes are returned unchanged.
func (d *Document) Save() ([]byte, error) {
	var dirty []*Page
	for _, p := range d.pages {
		if p.content.Len() > 0 {
			dirty = append(dirty, p)
		}
	}
	if len(dirty) == 0 {
		return d.source, nil
	}
	if d.saved {
		return nil, ErrAlreadySaved
	}
	d.saved = true

	for _, p := range dirty {
		if err := d.appendContent(p); err != nil {
			return nil, fmt.Errorf("failed to update page %d: %w", p.index, err)
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) appendContent(p *Page) error {
	open, err := d.addContentStream([]byte("q\n"))
	if err != nil {
		return err
	}
	closing, err := d.addContentStream(append([]byte("Q\n"), wrapOps(p.content.Bytes())...))
	if err != nil {
		return err
	}
	parts, err := d.contentParts(p.dict)
	if err != nil {
		return err
	}

	contents := make(types.Array, 0, len(parts)+2)
	contents = append(contents, *open)
	contents = append(contents, parts...)
	contents = append(contents, *closing)
	p.dict["Contents"] = contents
	return nil
}

func (d *Document) addContentStream(data []byte) (*types.IndirectRef, error) {
	sd, err := flateStream(types.NewDict(), data)
	if err != nil {
		return nil, err
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to add content stream: %w", err)
	}
	return ref, nil
}

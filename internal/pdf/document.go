// Package pdf implements the canvas drawing interfaces on top of pdfcpu's
// object model.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/jonathan/pdf-signer/internal/canvas"
)

var (
	// ErrInvalidPDF wraps every failure to read a document.
	ErrInvalidPDF = errors.New("invalid PDF")
	// ErrEncrypted is returned for documents with an /Encrypt dictionary.
	ErrEncrypted = errors.New("encrypted PDF")
	// ErrPageOutOfRange is returned for page indexes outside the document.
	ErrPageOutOfRange = errors.New("page index out of range")
)

// defaultMediaBox is US Letter, used when no MediaBox is found in the tree.
var defaultMediaBox = [4]float64{0, 0, 612, 792}

func init() {
	// Documents are processed in memory; pdfcpu must not create a user
	// configuration directory on the server.
	api.DisableConfigDir()
}

// Document is an opened PDF that accepts drawing operations.
type Document struct {
	// MaxImagePixels bounds the width*height of embedded rasters.
	MaxImagePixels int

	ctx    *model.Context
	source []byte
	pages  []*Page
	fonts  map[string]*Font
	saved  bool
}

// Page is one page of a Document.
type Page struct {
	doc   *Document
	index int
	dict  types.Dict
	// inherited holds the resources of the nearest ancestor that has them.
	inherited types.Dict
	res       types.Dict
	mediaBox  [4]float64
	content   contentBuilder
}

// Open parses data, validates it in relaxed mode and loads every page.
func Open(data []byte) (doc *Document, err error) {
	// Malformed input can panic inside the parser.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: parser panic: %v", ErrInvalidPDF, r)
		}
	}()

	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidPDF)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(capObjectCount(data)), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}
	if ctx.Encrypt != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPDF, ErrEncrypted)
	}
	normalizeSize(ctx)

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}
	if ctx.PageCount <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalidPDF)
	}

	d := &Document{
		MaxImagePixels: DefaultMaxImagePixels,
		ctx:            ctx,
		source:         data,
		fonts:          make(map[string]*Font),
	}
	for nr := 1; nr <= ctx.PageCount; nr++ {
		pageDict, _, inh, err := ctx.PageDict(nr, false)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrInvalidPDF, nr, err)
		}
		if pageDict == nil {
			return nil, fmt.Errorf("%w: page %d is missing", ErrInvalidPDF, nr)
		}
		d.pages = append(d.pages, d.newPage(nr-1, pageDict, inh))
	}
	return d, nil
}

func (d *Document) newPage(index int, dict types.Dict, inh *model.InheritedPageAttrs) *Page {
	p := &Page{doc: d, index: index, dict: dict, mediaBox: defaultMediaBox}

	if box, ok := d.rect(dict["MediaBox"]); ok {
		p.mediaBox = box
	} else if inh != nil && inh.MediaBox != nil {
		if box, ok := normalizeRect(inh.MediaBox.LL.X, inh.MediaBox.LL.Y, inh.MediaBox.UR.X, inh.MediaBox.UR.Y); ok {
			p.mediaBox = box
		}
	}
	if inh != nil {
		p.inherited = inh.Resources
	}
	return p
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns page i, zero-based.
func (d *Document) Page(i int) (canvas.Page, error) {
	p, err := d.page(i)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Document) page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, i, len(d.pages))
	}
	return d.pages[i], nil
}

// StandardFont returns a base-14 font, registering it once per document.
func (d *Document) StandardFont(name string) (canvas.Font, error) {
	if f, ok := d.fonts[name]; ok {
		return f, nil
	}
	dict, err := fontDict(name)
	if err != nil {
		return nil, err
	}
	ref, err := d.ctx.IndRefForNewObject(dict)
	if err != nil {
		return nil, fmt.Errorf("failed to add font %s: %w", name, err)
	}
	f := &Font{doc: d, name: name, ref: *ref}
	d.fonts[name] = f
	return f, nil
}

// ContentStream returns the decoded content of page i with all content
// streams concatenated.
func (d *Document) ContentStream(i int) ([]byte, error) {
	p, err := d.page(i)
	if err != nil {
		return nil, err
	}
	parts, err := d.contentParts(p.dict)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	for _, part := range parts {
		obj, err := d.ctx.Dereference(part)
		if err != nil {
			return nil, err
		}
		sd, ok := obj.(types.StreamDict)
		if !ok {
			continue
		}
		if sd.Content == nil {
			if err := sd.Decode(); err != nil {
				return nil, fmt.Errorf("failed to decode content of page %d: %w", i, err)
			}
		}
		out.Write(sd.Content)
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

// Resources returns the effective resource dictionary of page i.
func (d *Document) Resources(i int) (types.Dict, error) {
	p, err := d.page(i)
	if err != nil {
		return nil, err
	}
	if o, found := p.dict.Find("Resources"); found {
		return d.ctx.DereferenceDict(o)
	}
	return p.inherited, nil
}

// ResolveDict follows an indirect reference to a dictionary.
func (d *Document) ResolveDict(o types.Object) (types.Dict, error) {
	return d.ctx.DereferenceDict(o)
}

// contentParts flattens a page's Contents entry into a list of stream refs.
func (d *Document) contentParts(page types.Dict) ([]types.Object, error) {
	o, found := page.Find("Contents")
	if !found || o == nil {
		return nil, nil
	}
	switch c := o.(type) {
	case types.IndirectRef:
		obj, err := d.ctx.Dereference(c)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve page contents: %w", err)
		}
		if arr, ok := obj.(types.Array); ok {
			return append([]types.Object(nil), arr...), nil
		}
		return []types.Object{c}, nil
	case types.Array:
		return append([]types.Object(nil), c...), nil
	default:
		return nil, nil
	}
}

// rect reads a rectangle array and normalizes it to lower-left, upper-right
// order.
func (d *Document) rect(o types.Object) ([4]float64, bool) {
	obj, err := d.ctx.Dereference(o)
	if err != nil {
		return [4]float64{}, false
	}
	arr, ok := obj.(types.Array)
	if !ok || len(arr) != 4 {
		return [4]float64{}, false
	}
	var v [4]float64
	for i, item := range arr {
		resolved, err := d.ctx.Dereference(item)
		if err != nil {
			return [4]float64{}, false
		}
		n, ok := number(resolved)
		if !ok {
			return [4]float64{}, false
		}
		v[i] = n
	}
	return normalizeRect(v[0], v[1], v[2], v[3])
}

func normalizeRect(x1, y1, x2, y2 float64) ([4]float64, bool) {
	llx, urx := math.Min(x1, x2), math.Max(x1, x2)
	lly, ury := math.Min(y1, y2), math.Max(y1, y2)
	if !(urx-llx > 0) || !(ury-lly > 0) || math.IsInf(urx-llx, 0) || math.IsInf(ury-lly, 0) {
		return [4]float64{}, false
	}
	return [4]float64{llx, lly, urx, ury}, true
}

func number(o types.Object) (float64, bool) {
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	default:
		return 0, false
	}
}

// Size returns the MediaBox width and height in points.
func (p *Page) Size() (float64, float64) {
	return p.mediaBox[2] - p.mediaBox[0], p.mediaBox[3] - p.mediaBox[1]
}

// DrawImage paints img into the rectangle at (x, y) with size w by h.
func (p *Page) DrawImage(img canvas.Image, x, y, w, h float64) error {
	im, ok := img.(*Image)
	if !ok {
		return fmt.Errorf("image %T was not embedded by this document", img)
	}
	if im.doc != p.doc {
		return fmt.Errorf("image belongs to another document")
	}
	name, err := p.resourceName("XObject", "SigIm", im.ref)
	if err != nil {
		return err
	}
	p.content.image(name, x+p.mediaBox[0], y+p.mediaBox[1], w, h)
	return nil
}

// DrawText shows text with its baseline origin at (x, y).
func (p *Page) DrawText(text string, x, y, size float64, font canvas.Font) error {
	f, ok := font.(*Font)
	if !ok {
		return fmt.Errorf("font %T was not registered by this document", font)
	}
	if f.doc != p.doc {
		return fmt.Errorf("font belongs to another document")
	}
	name, err := p.resourceName("Font", "SigF", f.ref)
	if err != nil {
		return err
	}
	p.content.text(name, encodeWinAnsi(text), x+p.mediaBox[0], y+p.mediaBox[1], size)
	return nil
}

// DrawCircle paints a circle centered at (cx, cy).
func (p *Page) DrawCircle(cx, cy, r float64, style canvas.ShapeStyle) error {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("invalid circle radius %v", r)
	}
	p.content.circle(cx+p.mediaBox[0], cy+p.mediaBox[1], r, style)
	return nil
}

// DrawRectangle paints an axis-aligned rectangle.
func (p *Page) DrawRectangle(x, y, w, h float64, style canvas.ShapeStyle) error {
	p.content.rectangle(x+p.mediaBox[0], y+p.mediaBox[1], w, h, style)
	return nil
}

// resources returns the page's own resource dictionary, copying the current
// one on first use.
func (p *Page) resources() (types.Dict, error) {
	if p.res != nil {
		return p.res, nil
	}
	if o, found := p.dict.Find("Resources"); found && o != nil {
		res, err := p.doc.ctx.DereferenceDict(o)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve page resources: %w", err)
		}
		if res != nil {
			return p.ownResources(res), nil
		}
	}
	return p.ownResources(p.inherited), nil
}

// ownResources stores a private copy of src on the page. Resource objects
// are often shared between pages.
func (p *Page) ownResources(src types.Dict) types.Dict {
	res := types.NewDict()
	for k, v := range src {
		if sub, ok := v.(types.Dict); ok {
			v = copyDict(sub)
		}
		res[k] = v
	}
	p.dict["Resources"] = res
	p.res = res
	return res
}

// category returns the named resource sub-dictionary, creating it if needed.
func (p *Page) category(name string) (types.Dict, error) {
	res, err := p.resources()
	if err != nil {
		return nil, err
	}
	if o, found := res.Find(name); found && o != nil {
		sub, err := p.doc.ctx.DereferenceDict(o)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s resources: %w", name, err)
		}
		if sub != nil {
			sub = copyDict(sub)
			res[name] = sub
			return sub, nil
		}
	}
	sub := types.NewDict()
	res[name] = sub
	return sub, nil
}

// resourceName registers ref under the first free name with prefix and
// returns it. A name already bound to ref is reused.
func (p *Page) resourceName(category, prefix string, ref types.IndirectRef) (string, error) {
	sub, err := p.category(category)
	if err != nil {
		return "", err
	}
	if category == "Font" {
		p.addProcSet("Text")
	}

	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		existing, taken := sub[name]
		if !taken {
			sub[name] = ref
			return name, nil
		}
		if r, ok := existing.(types.IndirectRef); ok && r.ObjectNumber == ref.ObjectNumber {
			return name, nil
		}
	}
}

// addProcSet appends name to an existing ProcSet array.
func (p *Page) addProcSet(name string) {
	res, err := p.resources()
	if err != nil {
		return
	}
	o, found := res.Find("ProcSet")
	if !found {
		return
	}
	obj, err := p.doc.ctx.Dereference(o)
	if err != nil {
		return
	}
	arr, ok := obj.(types.Array)
	if !ok {
		return
	}
	for _, item := range arr {
		if n, ok := item.(types.Name); ok && string(n) == name {
			return
		}
	}
	res["ProcSet"] = append(append(types.Array(nil), arr...), types.Name(name))
}

func copyDict(d types.Dict) types.Dict {
	out := types.NewDict()
	for k, v := range d {
		out[k] = v
	}
	return out
}

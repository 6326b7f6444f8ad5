// Package signing burns fields into a document and reports the hash pair.
package signing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonathan/pdf-signer/internal/canvas"
	"github.com/jonathan/pdf-signer/internal/digest"
	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/geometry"
	"github.com/jonathan/pdf-signer/internal/pdf"
	"github.com/jonathan/pdf-signer/internal/render"
	"github.com/jonathan/pdf-signer/internal/sigimage"
)

// Loader parses source bytes into a drawable document.
type Loader func(source []byte) (canvas.Document, error)

// PDFLoader opens documents with the pdf package.
func PDFLoader(source []byte) (canvas.Document, error) {
	doc, err := pdf.Open(source)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// PDFLoaderWith opens documents with the pdf package and caps embedded
// images at maxPixels. A non-positive maxPixels keeps the pdf default.
func PDFLoaderWith(maxPixels int) Loader {
	return func(source []byte) (canvas.Document, error) {
		doc, err := pdf.Open(source)
		if err != nil {
			return nil, err
		}
		doc.MaxImagePixels = maxPixels
		return doc, nil
	}
}

// Result is the outcome of one signing operation.
type Result struct {
	Bytes        []byte
	OriginalHash string
	SignedHash   string
	Algorithm    digest.Algorithm
	Placed       int
	Skipped      []Diagnostic
}

// Engine signs documents. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	Load    Loader
	Decoder *sigimage.Decoder
	Hasher  *digest.Hasher
	Options render.Options
}

// NewEngine returns an engine using the pdf loader, the default hasher, and
// the default drawing rules.
func NewEngine() *Engine {
	return &Engine{
		Load:    PDFLoader,
		Decoder: sigimage.NewDecoder(sigimage.DefaultMaxBytes),
		Hasher:  digest.MustNew(string(digest.Default)),
		Options: render.DefaultOptions(),
	}
}

// entry is a field slot: either a parsed field or the reason it could not be
// parsed.
type entry struct {
	field fields.Field
	err   error
}

// Sign places fs on source.
func (e *Engine) Sign(source []byte, dataURL string, fs []fields.Field) (*Result, error) {
	entries := make([]entry, len(fs))
	for i, f := range fs {
		entries[i] = entry{field: f}
	}
	return e.sign(source, dataURL, entries)
}

// SignRaw parses each raw field leniently and signs. Fields that fail to
// parse are skipped with a diagnostic.
func (e *Engine) SignRaw(source []byte, dataURL string, raw []json.RawMessage) (*Result, error) {
	entries := make([]entry, len(raw))
	for i, r := range raw {
		f, err := fields.Parse(r)
		entries[i] = entry{field: f, err: err}
	}
	return e.sign(source, dataURL, entries)
}

func (e *Engine) sign(source []byte, dataURL string, entries []entry) (*Result, error) {
	hasher := e.Hasher
	if hasher == nil {
		hasher = digest.MustNew(string(digest.Default))
	}
	load := e.Load
	if load == nil {
		load = PDFLoader
	}

	result := &Result{
		OriginalHash: hasher.Digest(source),
		Algorithm:    hasher.Algorithm(),
	}

	doc, err := load(source)
	if err != nil {
		return nil, newError(KindCorruptDocument, "failed to load document", err)
	}

	asset, diag, err := e.decodeAsset(dataURL, entries)
	if err != nil {
		return nil, err
	}
	if diag != nil {
		result.Skipped = append(result.Skipped, *diag)
	}

	ctx := render.NewContext(doc, asset, e.Options)
	for i, en := range entries {
		if d := placeField(ctx, doc, i, en); d != nil {
			result.Skipped = append(result.Skipped, *d)
			continue
		}
		result.Placed++
	}

	out, err := doc.Save()
	if err != nil {
		return nil, newError(KindRenderFailed, "failed to serialize document", err)
	}
	result.Bytes = out
	result.SignedHash = hasher.Digest(out)
	return result, nil
}

// decodeAsset decodes the shared signature. Failure is fatal only when some
// field needs the signature.
func (e *Engine) decodeAsset(dataURL string, entries []entry) (*sigimage.Asset, *Diagnostic, error) {
	needed := false
	for _, en := range entries {
		if en.err == nil && en.field.Type == fields.TypeSignature {
			needed = true
			break
		}
	}

	if dataURL == "" {
		if needed {
			return nil, nil, newError(KindInvalidSignatureImage, "signature image is required for signature fields", nil)
		}
		return nil, nil, nil
	}

	asset, err := e.Decoder.Decode(dataURL)
	if err == nil {
		return asset, nil, nil
	}

	kind := KindOf(err)
	if needed {
		return nil, nil, newError(kind, "failed to decode signature image", err)
	}
	return nil, &Diagnostic{Index: -1, Reason: kind, Message: err.Error()}, nil
}

func placeField(ctx *render.Context, doc canvas.Document, i int, en entry) *Diagnostic {
	skip := func(kind Kind, err error) *Diagnostic {
		return &Diagnostic{Index: i, Reason: kind, Message: err.Error()}
	}

	if en.err != nil {
		return skip(KindOf(en.err), en.err)
	}
	f := en.field

	if f.PageIndex < 0 || f.PageIndex >= doc.PageCount() {
		return skip(KindInvalidPage, fmt.Errorf("page index %d outside [0, %d)", f.PageIndex, doc.PageCount()))
	}
	page, err := doc.Page(f.PageIndex)
	if err != nil {
		return skip(KindInvalidPage, err)
	}

	w, h := page.Size()
	box, err := geometry.MapToPageBox(w, h, f.Rect())
	if err != nil {
		return skip(KindInvalidGeometry, err)
	}

	r, ok := render.For(f.Type)
	if !ok {
		return skip(KindUnsupportedFieldType, fmt.Errorf("unsupported field type %q", f.Type))
	}
	if err := r.Render(ctx, page, f, box); err != nil {
		return skip(KindRenderFailed, err)
	}
	return nil
}

// IsFatal reports whether err aborted a signing operation.
func IsFatal(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

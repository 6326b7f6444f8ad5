package render

import (
	"errors"
	"testing"
	"time"

	"github.com/jonathan/pdf-signer/internal/canvas"
	"github.com/jonathan/pdf-signer/internal/canvas/canvastest"
	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/geometry"
	"github.com/jonathan/pdf-signer/internal/sigimage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts Options) (*canvastest.Document, canvas.Page, *Context) {
	t.Helper()
	doc := canvastest.NewDocument([2]float64{600, 800})
	page, err := doc.Page(0)
	require.NoError(t, err)
	asset := &sigimage.Asset{Data: []byte("png-bytes"), Format: sigimage.FormatPNG}
	return doc, page, NewContext(doc, asset, opts)
}

func mustBox(t *testing.T, f fields.Field) geometry.Box {
	t.Helper()
	box, err := geometry.MapToPageBox(600, 800, f.Rect())
	require.NoError(t, err)
	return box
}

func TestFor(t *testing.T) {
	for _, typ := range []fields.Type{fields.TypeSignature, fields.TypeText, fields.TypeDate, fields.TypeRadio} {
		r, ok := For(typ)
		assert.True(t, ok, string(typ))
		assert.NotNil(t, r)
	}
	_, ok := For("checkbox")
	assert.False(t, ok)
}

func TestSignature_ContainedFitRoundTrip(t *testing.T) {
	doc, page, ctx := setup(t, DefaultOptions())
	f := fields.Field{XRel: 0.1, YRel: 0.1, WRel: 0.3, HRel: 0.1, Type: fields.TypeSignature}
	box := mustBox(t, f)

	require.NoError(t, signatureRenderer{}.Render(ctx, page, f, box))

	images := doc.OpsOfKind("image")
	require.Len(t, images, 1)
	op := images[0]
	assert.InDelta(t, 180, op.W, 1e-9)
	assert.InDelta(t, 60, op.H, 1e-9)
	assert.InDelta(t, box.X, op.X, 1e-9, "binding axis fills the box")
	assert.InDelta(t, box.Y+10, op.Y, 1e-9, "free axis is centered")
	assert.InDelta(t, 180, box.Width, 1e-9)
}

func TestContainedFit(t *testing.T) {
	box := geometry.Box{X: 10, Y: 20, Width: 180, Height: 80}

	tests := []struct {
		name       string
		iw, ih     int
		clamp      bool
		x, y, w, h float64
	}{
		{"downscale", 300, 100, true, 10, 30, 180, 60},
		{"small image clamped", 50, 20, true, 75, 50, 50, 20},
		{"small image upscaled", 50, 20, false, 10, 24, 180, 72},
		{"tall image", 100, 400, true, 90, 20, 20, 80},
		{"unknown width stretches", 0, 100, true, 10, 20, 180, 80},
		{"unknown height stretches", 100, -1, false, 10, 20, 180, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := ContainedFit(box, tt.iw, tt.ih, tt.clamp)
			assert.InDelta(t, tt.x, x, 1e-9)
			assert.InDelta(t, tt.y, y, 1e-9)
			assert.InDelta(t, tt.w, w, 1e-9)
			assert.InDelta(t, tt.h, h, 1e-9)
		})
	}
}

func TestSignature_EmbedsOncePerDocument(t *testing.T) {
	doc, page, ctx := setup(t, DefaultOptions())
	f := fields.Field{XRel: 0.1, YRel: 0.1, WRel: 0.3, HRel: 0.1, Type: fields.TypeSignature}
	box := mustBox(t, f)

	for i := 0; i < 3; i++ {
		require.NoError(t, signatureRenderer{}.Render(ctx, page, f, box))
	}
	assert.Len(t, doc.Embeds, 1)
	assert.Len(t, doc.OpsOfKind("image"), 3)
}

func TestSignature_PNGFallback(t *testing.T) {
	doc := canvastest.NewDocument([2]float64{600, 800})
	doc.EmbedErr = errors.New("not a jpeg")
	doc.FailFormat = canvas.FormatJPEG
	page, _ := doc.Page(0)
	asset := &sigimage.Asset{Data: []byte("actually png"), Format: sigimage.FormatJPEG}

	ctx := NewContext(doc, asset, DefaultOptions())
	box := geometry.Box{Width: 100, Height: 50}
	require.NoError(t, signatureRenderer{}.Render(ctx, page, fields.Field{}, box))
	assert.Equal(t, []canvas.ImageFormat{canvas.FormatJPEG, canvas.FormatPNG}, doc.Embeds)

	opts := DefaultOptions()
	opts.PNGFallback = false
	strict := canvastest.NewDocument([2]float64{600, 800})
	strict.EmbedErr = errors.New("not a jpeg")
	strict.FailFormat = canvas.FormatJPEG
	page, _ = strict.Page(0)
	ctx = NewContext(strict, asset, opts)

	err := signatureRenderer{}.Render(ctx, page, fields.Field{}, box)
	assert.ErrorIs(t, err, ErrEmbedSignature)
	err = signatureRenderer{}.Render(ctx, page, fields.Field{}, box)
	assert.ErrorIs(t, err, ErrEmbedSignature)
	assert.Len(t, strict.Embeds, 1, "a failed embed is not retried per field")
}

func TestSignature_NoAsset(t *testing.T) {
	doc := canvastest.NewDocument([2]float64{600, 800})
	page, _ := doc.Page(0)
	ctx := NewContext(doc, nil, DefaultOptions())

	err := signatureRenderer{}.Render(ctx, page, fields.Field{}, geometry.Box{Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrNoSignature)
	assert.Empty(t, doc.Embeds)
}

func TestText_Placement(t *testing.T) {
	doc, page, ctx := setup(t, DefaultOptions())
	f := fields.Field{XRel: 0.5, YRel: 0.5, WRel: 0.4, HRel: 0.05, Type: fields.TypeText, Value: "Jane"}
	box := mustBox(t, f)

	require.NoError(t, textRenderer{}.Render(ctx, page, f, box))

	texts := doc.OpsOfKind("text")
	require.Len(t, texts, 1)
	op := texts[0]
	assert.Equal(t, "Jane", op.Text)
	assert.Equal(t, "Helvetica", op.Font)
	assert.Equal(t, 10.0, op.Size)
	assert.InDelta(t, box.X+4, op.X, 1e-9)
	assert.InDelta(t, box.Y+box.Height/2-5, op.Y, 1e-9)
}

func TestText_EmptyValue(t *testing.T) {
	doc, page, ctx := setup(t, DefaultOptions())
	err := textRenderer{}.Render(ctx, page, fields.Field{Type: fields.TypeText}, geometry.Box{Width: 100, Height: 20})
	assert.ErrorIs(t, err, ErrEmptyValue)
	assert.Empty(t, doc.Ops)
}

func TestText_Truncation(t *testing.T) {
	doc, page, ctx := setup(t, DefaultOptions())

	// The fake font advances 5 points per rune at size 10.
	f := fields.Field{Type: fields.TypeText, Value: "abcdefgh"}
	require.NoError(t, textRenderer{}.Render(ctx, page, f, geometry.Box{Width: 30, Height: 20}))
	assert.Equal(t, "abcde", doc.OpsOfKind("text")[0].Text)

	err := textRenderer{}.Render(ctx, page, f, geometry.Box{Width: 6, Height: 20})
	assert.ErrorIs(t, err, ErrTextTooNarrow)
}

func TestTruncate(t *testing.T) {
	font := &canvastest.Font{Advance: 0.5}
	assert.Equal(t, "hello", Truncate("hello", font, 10, 25))
	assert.Equal(t, "hell", Truncate("hello", font, 10, 24.9))
	assert.Equal(t, "ab", Truncate("ab   cd", font, 10, 25))
	assert.Equal(t, "", Truncate("hello", font, 10, 0))
	assert.Equal(t, "日本", Truncate("日本語", font, 10, 10))
}

func TestDate_DefaultsToToday(t *testing.T) {
	opts := DefaultOptions()
	opts.Clock = func() time.Time { return time.Date(2024, time.March, 7, 15, 0, 0, 0, time.UTC) }
	doc, page, ctx := setup(t, opts)

	box := geometry.Box{Width: 200, Height: 20}
	require.NoError(t, dateRenderer{}.Render(ctx, page, fields.Field{Type: fields.TypeDate}, box))
	require.NoError(t, dateRenderer{}.Render(ctx, page, fields.Field{Type: fields.TypeDate, Value: "31/12/1999"}, box))

	texts := doc.OpsOfKind("text")
	require.Len(t, texts, 2)
	assert.Equal(t, "07/03/2024", texts[0].Text)
	assert.Equal(t, "31/12/1999", texts[1].Text)
}

func TestRadio(t *testing.T) {
	doc, page, ctx := setup(t, DefaultOptions())
	box := geometry.Box{X: 100, Y: 200, Width: 40, Height: 20}

	require.NoError(t, radioRenderer{}.Render(ctx, page, fields.Field{Type: fields.TypeRadio}, box))
	assert.Empty(t, doc.Ops, "unchecked radios draw nothing")

	require.NoError(t, radioRenderer{}.Render(ctx, page, fields.Field{Type: fields.TypeRadio, Checked: true}, box))
	circles := doc.OpsOfKind("circle")
	require.Len(t, circles, 2)

	ring, dot := circles[0], circles[1]
	assert.Equal(t, 5.0, ring.R)
	assert.Equal(t, 2.5, dot.R)
	assert.NotNil(t, ring.Style.Stroke)
	assert.Nil(t, ring.Style.Fill)
	assert.Equal(t, 1.0, ring.Style.StrokeWidth)
	assert.NotNil(t, dot.Style.Fill)

	for _, c := range circles {
		assert.Equal(t, 120.0, c.X)
		assert.Equal(t, 210.0, c.Y)
		assert.GreaterOrEqual(t, c.X-c.R, box.X)
		assert.LessOrEqual(t, c.X+c.R, box.X+box.Width)
		assert.GreaterOrEqual(t, c.Y-c.R, box.Y)
		assert.LessOrEqual(t, c.Y+c.R, box.Y+box.Height)
	}
}

func TestContext_FontError(t *testing.T) {
	doc, page, ctx := setup(t, DefaultOptions())
	doc.FontErr = errors.New("no fonts")
	err := textRenderer{}.Render(ctx, page, fields.Field{Value: "x"}, geometry.Box{Width: 100, Height: 20})
	assert.Error(t, err)
}

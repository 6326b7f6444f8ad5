// Package fields defines the placement instructions carried by a sign request.
package fields

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jonathan/pdf-signer/internal/geometry"
)

// Type is the kind of mark a field produces.
type Type string

const (
	TypeSignature Type = "signature"
	TypeText      Type = "text"
	TypeDate      Type = "date"
	TypeRadio     Type = "radio"
)

// Known reports whether t is one of the supported field types.
func (t Type) Known() bool {
	switch t {
	case TypeSignature, TypeText, TypeDate, TypeRadio:
		return true
	default:
		return false
	}
}

// Field is one placement instruction.
type Field struct {
	PageIndex int
	XRel      float64
	YRel      float64
	WRel      float64
	HRel      float64
	Type      Type
	Value     string
	Checked   bool
}

// Rect returns the field's normalized rectangle.
func (f Field) Rect() geometry.RelRect {
	return geometry.RelRect{XRel: f.XRel, YRel: f.YRel, WRel: f.WRel, HRel: f.HRel}
}

// ParseError reports a field entry that could not be decoded.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid field: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid field: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// wireField mirrors the JSON shape sent by the client. Values are kept raw so
// a single malformed member invalidates only its own field.
type wireField struct {
	PageIndex json.RawMessage `json:"pageIndex"`
	XRel      json.RawMessage `json:"xRel"`
	YRel      json.RawMessage `json:"yRel"`
	WRel      json.RawMessage `json:"wRel"`
	HRel      json.RawMessage `json:"hRel"`
	Type      json.RawMessage `json:"type"`
	Value     json.RawMessage `json:"value"`
	Checked   json.RawMessage `json:"checked"`
}

// Parse decodes one field entry. A missing pageIndex defaults to 0 and a
// numeric string is coerced, geometry
// must be numeric, and a non-boolean checked counts as false. Geometry
// errors are returned as *geometry.InvalidGeometryError.
func Parse(raw json.RawMessage) (Field, error) {
	var w wireField
	if err := json.Unmarshal(raw, &w); err != nil {
		return Field{}, &ParseError{Message: "field must be an object", Cause: err}
	}

	var f Field

	if len(w.Type) > 0 {
		var s string
		if err := json.Unmarshal(w.Type, &s); err != nil {
			return Field{}, &ParseError{Message: "type must be a string", Cause: err}
		}
		f.Type = Type(s)
	}

	if isPresent(w.PageIndex) {
		n, err := parsePageIndex(w.PageIndex)
		if err != nil {
			return Field{}, err
		}
		f.PageIndex = n
	}

	geom := []struct {
		name string
		raw  json.RawMessage
		dst  *float64
	}{
		{"xRel", w.XRel, &f.XRel},
		{"yRel", w.YRel, &f.YRel},
		{"wRel", w.WRel, &f.WRel},
		{"hRel", w.HRel, &f.HRel},
	}
	for _, g := range geom {
		if !isPresent(g.raw) {
			return Field{}, &geometry.InvalidGeometryError{Field: g.name, Value: math.NaN()}
		}
		if err := json.Unmarshal(g.raw, g.dst); err != nil {
			return Field{}, &geometry.InvalidGeometryError{Field: g.name, Value: math.NaN()}
		}
	}

	if isPresent(w.Value) {
		var s string
		if err := json.Unmarshal(w.Value, &s); err == nil {
			f.Value = s
		} else {
			var n json.Number
			if err := json.Unmarshal(w.Value, &n); err != nil {
				return Field{}, &ParseError{Message: "value must be a string", Cause: err}
			}
			f.Value = n.String()
		}
	}

	if isPresent(w.Checked) {
		var b bool
		if err := json.Unmarshal(w.Checked, &b); err == nil {
			f.Checked = b
		}
	}

	return f, nil
}

// parsePageIndex accepts a JSON number or a numeric string. A blank string
// means page 0.
func parsePageIndex(raw json.RawMessage) (int, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, &ParseError{Message: "pageIndex must be an integer", Cause: err}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		n, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, &ParseError{Message: "pageIndex must be an integer", Cause: err}
		}
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, &ParseError{Message: "pageIndex must be an integer"}
	}
	return int(n), nil
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

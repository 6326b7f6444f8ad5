package signing

import (
	"errors"
	"fmt"

	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/geometry"
	"github.com/jonathan/pdf-signer/internal/sigimage"
	"github.com/jonathan/pdf-signer/internal/storage"
)

// Kind classifies a signing failure or a skipped field.
type Kind string

const (
	KindDocumentNotFound      Kind = "document_not_found"
	KindCorruptDocument       Kind = "corrupt_document"
	KindInvalidSignatureImage Kind = "invalid_signature_image"
	KindSignatureTooLarge     Kind = "signature_too_large"
	KindInvalidGeometry       Kind = "invalid_geometry"
	KindInvalidPage           Kind = "invalid_page"
	KindInvalidField          Kind = "invalid_field"
	KindUnsupportedFieldType  Kind = "unsupported_field_type"
	KindRenderFailed          Kind = "render_failed"
	KindStorageFailed         Kind = "storage_failed"
	KindAuditWriteFailed      Kind = "audit_write_failed"
	KindUnknown               Kind = "unknown"
)

// Error is a fatal signing failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf classifies err. Errors from the field pipeline are recognized even
// when not wrapped in an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	var invalidImage *sigimage.InvalidImageError
	var tooLarge *sigimage.TooLargeError
	var pixels *sigimage.PixelLimitError
	var geomErr *geometry.InvalidGeometryError
	var parseErr *fields.ParseError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return KindDocumentNotFound
	case errors.As(err, &tooLarge), errors.As(err, &pixels):
		return KindSignatureTooLarge
	case errors.As(err, &invalidImage):
		return KindInvalidSignatureImage
	case errors.As(err, &geomErr):
		return KindInvalidGeometry
	case errors.As(err, &parseErr):
		return KindInvalidField
	default:
		return KindUnknown
	}
}

// Diagnostic explains why a field was not placed. Index is the field's
// position in the request, or -1 for request-level notes.
type Diagnostic struct {
	Index   int    `json:"index"`
	Reason  Kind   `json:"reason"`
	Message string `json:"message"`
}

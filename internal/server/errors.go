package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/schemas"
	"github.com/jonathan/pdf-signer/internal/signing"
	"github.com/jonathan/pdf-signer/internal/storage"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrPayloadTooLarge indicates a request body over its configured limit.
type ErrPayloadTooLarge struct {
	Limit int64
}

func (e *ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.Limit)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		schemaErr     *schemas.ValidationError
		tooLarge      *ErrPayloadTooLarge
		maxBytes      *http.MaxBytesError
		signErr       *signing.Error
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &schemaErr):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &signErr):
		return statusForKind(signErr.Kind)
	case errors.Is(err, signing.ErrNotPDF), errors.Is(err, storage.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, audit.ErrListUnsupported):
		return http.StatusNotImplemented
	}
	return statusForKind(signing.KindOf(err))
}

// statusForKind maps an engine failure kind onto a response status.
func statusForKind(kind signing.Kind) int {
	switch kind {
	case signing.KindDocumentNotFound:
		return http.StatusNotFound
	case signing.KindCorruptDocument, signing.KindInvalidSignatureImage,
		signing.KindInvalidGeometry, signing.KindInvalidPage,
		signing.KindInvalidField, signing.KindUnsupportedFieldType:
		return http.StatusBadRequest
	case signing.KindSignatureTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// reasonFor names err for the "reason" member of error bodies.
func reasonFor(err error) string {
	var (
		validationErr *ErrValidation
		schemaErr     *schemas.ValidationError
		signErr       *signing.Error
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &schemaErr):
		return "invalid_request"
	case errors.As(err, &signErr):
		return string(signErr.Kind)
	case HTTPStatus(err) == http.StatusRequestEntityTooLarge && signing.KindOf(err) != signing.KindSignatureTooLarge:
		return "payload_too_large"
	case errors.Is(err, signing.ErrNotPDF):
		return "not_a_pdf"
	case errors.Is(err, storage.ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, audit.ErrListUnsupported):
		return "not_implemented"
	}
	if kind := signing.KindOf(err); kind != signing.KindUnknown {
		return string(kind)
	}
	return "internal"
}

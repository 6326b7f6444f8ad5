package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/fields"
	"github.com/jonathan/pdf-signer/internal/schemas"
	"github.com/jonathan/pdf-signer/internal/signing"
	"github.com/jonathan/pdf-signer/internal/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// UploadResponse is returned by POST /api/upload-pdf
type UploadResponse struct {
	PdfID  string `json:"pdfId"`
	PdfURL string `json:"pdfUrl"`
}

// SignPDFRequest is the body of POST /api/sign-pdf
type SignPDFRequest struct {
	PdfID                string            `json:"pdfId" validate:"required,max=255"`
	SignatureImageBase64 *string           `json:"signatureImageBase64"`
	Fields               []json.RawMessage `json:"fields" validate:"required,min=1"`
}

// SignPDFResponse is returned by POST /api/sign-pdf
type SignPDFResponse struct {
	SignedPdfURL  string               `json:"signedPdfUrl"`
	SignedPdfID   string               `json:"signedPdfId"`
	OriginalHash  string               `json:"originalHash"`
	SignedHash    string               `json:"signedHash"`
	Algorithm     string               `json:"algorithm"`
	PlacedFields  int                  `json:"placedFields"`
	SkippedFields []signing.Diagnostic `json:"skippedFields"`
}

// AuditListResponse is returned by GET /api/audits/{pdfId}
type AuditListResponse struct {
	PdfID  string         `json:"pdfId"`
	Audits []audit.Record `json:"audits"`
}

// handleUpload stores a multipart "pdf" file
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.failure(w, &ErrPayloadTooLarge{Limit: s.maxUploadBytes}, "Failed to upload PDF")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "No file uploaded", "invalid_request")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "No file uploaded", "invalid_request")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadBytes {
		s.failure(w, &ErrPayloadTooLarge{Limit: s.maxUploadBytes}, "Failed to upload PDF")
		return
	}
	if mediaType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type")); mediaType != "application/pdf" {
		s.errorResponse(w, http.StatusBadRequest, "Only PDF files are allowed", "not_a_pdf")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.failure(w, err, "Failed to upload PDF")
		return
	}

	id, err := s.service.Upload(r.Context(), data)
	if err != nil {
		if errors.Is(err, signing.ErrNotPDF) {
			s.errorResponse(w, http.StatusBadRequest, "Only PDF files are allowed", "not_a_pdf")
			return
		}
		s.failure(w, err, "Failed to upload PDF")
		return
	}

	s.jsonResponse(w, http.StatusCreated, UploadResponse{PdfID: id, PdfURL: "/pdf/" + id})
}

// multipartOverhead is the slack allowed above the file limit for form
// boundaries and part headers.
const multipartOverhead = 64 << 10

// handleSign burns the requested fields into a stored upload
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxJSONBytes))
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.failure(w, &ErrPayloadTooLarge{Limit: s.maxJSONBytes}, "Failed to sign PDF")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "invalid_request")
		return
	}

	req, err := decodeSignRequest(body)
	if err != nil {
		s.failure(w, err, "Failed to sign PDF")
		return
	}

	dataURL := ""
	if req.SignatureImageBase64 != nil {
		dataURL = *req.SignatureImageBase64
	}
	if dataURL == "" && wantsSignature(req.Fields) {
		s.failure(w, &ErrValidation{Field: "signatureImageBase64", Message: "signatureImageBase64 is required for signature fields"}, "Failed to sign PDF")
		return
	}

	doc, err := s.service.SignStored(r.Context(), signing.SignRequest{
		PdfID:   req.PdfID,
		DataURL: dataURL,
		Fields:  req.Fields,
	})
	if err != nil {
		s.failure(w, err, "Failed to sign PDF")
		return
	}

	skipped := doc.Skipped
	if skipped == nil {
		skipped = []signing.Diagnostic{}
	}
	s.jsonResponse(w, http.StatusOK, SignPDFResponse{
		SignedPdfURL:  "/signed/" + doc.ID,
		SignedPdfID:   doc.ID,
		OriginalHash:  doc.OriginalHash,
		SignedHash:    doc.SignedHash,
		Algorithm:     string(doc.Algorithm),
		PlacedFields:  doc.Placed,
		SkippedFields: skipped,
	})
}

// decodeSignRequest checks required members first so the common mistakes get
// plain messages, then applies the full envelope schema.
func decodeSignRequest(body []byte) (*SignPDFRequest, error) {
	var req SignPDFRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return nil, &ErrValidation{Field: "body", Message: "Invalid request body: " + err.Error()}
	}

	if err := validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "PdfID":
				if verrs[0].Tag() == "required" {
					return nil, &ErrValidation{Field: "pdfId", Message: "pdfId is required"}
				}
				return nil, &ErrValidation{Field: "pdfId", Message: "pdfId is too long"}
			case "Fields":
				return nil, &ErrValidation{Field: "fields", Message: "fields array is required"}
			}
		}
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}

	if err := schemas.Validate(schemas.SignRequest, body); err != nil {
		var schemaErr *schemas.ValidationError
		if errors.As(err, &schemaErr) {
			return nil, &ErrValidation{Field: "body", Message: schemaErr.Summary()}
		}
		return nil, err
	}
	return &req, nil
}

// wantsSignature reports whether any entry declares the signature type.
// Entries that fail to decode are left for the engine to report.
func wantsSignature(raw []json.RawMessage) bool {
	for _, entry := range raw {
		var probe struct {
			Type fields.Type `json:"type"`
		}
		if json.Unmarshal(entry, &probe) == nil && probe.Type == fields.TypeSignature {
			return true
		}
	}
	return false
}

// handleDocument serves a stored PDF inline
func (s *Server) handleDocument(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		data, err := store.Load(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrInvalidID):
				s.errorResponse(w, http.StatusBadRequest, "Invalid document id", "invalid_id")
			case errors.Is(err, storage.ErrNotFound):
				s.errorResponse(w, http.StatusNotFound, "Not found", string(signing.KindDocumentNotFound))
			default:
				s.failure(w, err, "Failed to read PDF")
			}
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="`+id+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			log.Printf("[server] error writing %s: %v", id, err)
		}
	}
}

// handleListAudits returns the audit trail for a document, newest first
func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	if s.audits == nil {
		s.failure(w, audit.ErrListUnsupported, "Audit listing unavailable")
		return
	}

	pdfID := r.PathValue("pdfId")
	if !storage.ValidID(pdfID) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid document id", "invalid_id")
		return
	}

	limit := audit.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer", "invalid_request")
			return
		}
		limit = n
	}

	records, err := s.audits.List(r.Context(), pdfID, limit)
	if err != nil {
		s.failure(w, err, "Failed to list audits")
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	s.jsonResponse(w, http.StatusOK, AuditListResponse{PdfID: pdfID, Audits: records})
}

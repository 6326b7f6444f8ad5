// Package schemas provides JSON Schema validation for request and manifest documents.
package schemas

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	schemafiles "github.com/jonathan/pdf-signer/schemas"
)

// Embedded schema names.
const (
	SignRequest   = "sign_request.schema.json"
	Fields        = "fields.schema.json"
	BatchManifest = "batch_manifest.schema.json"
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Summary returns the first failure on one line.
func (ve *ValidationError) Summary() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	first := ve.Errors[0]
	if len(ve.Errors) == 1 {
		return fmt.Sprintf("%s: %s", first.Field, first.Message)
	}
	return fmt.Sprintf("%s: %s (and %d more)", first.Field, first.Message, len(ve.Errors)-1)
}

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

// embedded compiles every embedded schema once. Cross-schema $refs resolve
// against the other embedded files.
func embedded() (map[string]*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		names, err := fs.Glob(schemafiles.FS, "*.schema.json")
		if err != nil {
			compileErr = &SchemaLoadError{Path: "(embedded)", Message: "failed to list schemas", Cause: err}
			return
		}

		sources := make(map[string]string, len(names))
		for _, name := range names {
			data, err := fs.ReadFile(schemafiles.FS, name)
			if err != nil {
				compileErr = &SchemaLoadError{Path: name, Message: "failed to read schema", Cause: err}
				return
			}
			sources[name] = string(data)
		}

		compiled = make(map[string]*gojsonschema.Schema, len(names))
		for _, name := range names {
			sl := gojsonschema.NewSchemaLoader()
			for other, src := range sources {
				if other == name {
					continue
				}
				if err := sl.AddSchemas(gojsonschema.NewStringLoader(src)); err != nil {
					compileErr = &SchemaLoadError{Path: other, Message: "failed to register schema", Cause: err}
					return
				}
			}
			schema, err := sl.Compile(gojsonschema.NewStringLoader(sources[name]))
			if err != nil {
				compileErr = &SchemaLoadError{Path: name, Message: "failed to compile schema", Cause: err}
				return
			}
			compiled[name] = schema
		}
	})
	return compiled, compileErr
}

// Validate checks a JSON document against the named embedded schema.
func Validate(name string, document []byte) error {
	return validateLoader(name, gojsonschema.NewBytesLoader(document))
}

// ValidateValue checks a decoded Go value, such as a YAML manifest, against
// the named embedded schema.
func ValidateValue(name string, value any) error {
	return validateLoader(name, gojsonschema.NewGoLoader(value))
}

func validateLoader(name string, document gojsonschema.JSONLoader) error {
	schemas, err := embedded()
	if err != nil {
		return err
	}
	schema, ok := schemas[name]
	if !ok {
		return &SchemaLoadError{Path: name, Message: "unknown schema"}
	}

	result, err := schema.Validate(document)
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	return toValidationError(result)
}

// ValidateJSON validates a JSON file against a JSON Schema file
func ValidateJSON(schemaPath, jsonPath string) error {
	// Resolve absolute paths to handle relative paths correctly
	schemaAbsPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to resolve schema path: %w", err)
	}

	jsonAbsPath, err := filepath.Abs(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to resolve JSON path: %w", err)
	}

	if _, err := os.Stat(schemaAbsPath); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", schemaAbsPath)
	}

	if _, err := os.Stat(jsonAbsPath); os.IsNotExist(err) {
		return fmt.Errorf("JSON file not found: %s", jsonAbsPath)
	}

	schemaLoader := gojsonschema.NewReferenceLoader("file://" + schemaAbsPath)
	documentLoader := gojsonschema.NewReferenceLoader("file://" + jsonAbsPath)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    schemaAbsPath,
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}
	return toValidationError(result)
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}

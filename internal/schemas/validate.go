// Package schemas validates the structured judgments produced by the LLM
// workflow engine against embedded JSON Schemas before they are persisted.
// An engine response the schema rejects is treated as a malformed record,
// not silently passed downstream.
package schemas

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// Flow schema names.
const (
	PageJudgmentSchema  = "page_judgment.schema.json"
	FinalJudgmentSchema = "final_judgment.schema.json"
)

// FieldError is a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates the schema violations of one document.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("schema validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Schema returns the embedded schema text by name, so the control panel can
// serve it for inspection.
func Schema(name string) (string, error) {
	data, err := schemaFiles.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	return string(data), nil
}

// ValidateDocument validates a JSON document string against a named
// embedded schema. Returns *ValidationError when the document is
// well-formed JSON but violates the schema.
func ValidateDocument(schemaName, document string) error {
	schemaContent, err := Schema(schemaName)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaContent),
		gojsonschema.NewStringLoader(document),
	)
	if err != nil {
		return fmt.Errorf("failed to validate against %s: %w", schemaName, err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}

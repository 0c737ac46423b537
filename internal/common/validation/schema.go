// internal/common/validation/schema.go
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Every external-JSON boundary (LLM responses, stored conditional logic,
// answer routing values) goes through a validating parse that returns a
// tagged result instead of panicking on bad input.

// ParseResult is the outcome of a validating parse.
type ParseResult struct {
	Valid  bool
	Errors []string
}

// Err returns a single error summarizing the validation failures, or nil.
func (r *ParseResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(r.Errors, "; "))
}

// ValidateJSON checks document against the given JSON schema.
func ValidateJSON(schemaJSON string, document []byte) (*ParseResult, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		// Document is not even parseable JSON, or the schema is broken.
		return &ParseResult{Valid: false, Errors: []string{err.Error()}}, err
	}

	if result.Valid() {
		return &ParseResult{Valid: true}, nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return &ParseResult{Valid: false, Errors: msgs}, nil
}

// ParseValidated validates document against schemaJSON and unmarshals it into
// out on success. A non-nil error means the document must not be trusted;
// callers decide between fail-open and fail-closed per their contract.
func ParseValidated(schemaJSON string, document []byte, out interface{}) error {
	res, err := ValidateJSON(schemaJSON, document)
	if err != nil {
		return err
	}
	if !res.Valid {
		return res.Err()
	}
	if err := json.Unmarshal(document, out); err != nil {
		return fmt.Errorf("unmarshal after validation: %w", err)
	}
	return nil
}

package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"strings"
)

const (
	snapshotSchemaURL = "https://github.com/saylorsolutions/dashlock/snapshot.schema.json"

	// DefaultSnapshotSchema accepts any JSON object or array.
	DefaultSnapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": ["object", "array"]
}`
)

// Validator checks the structure of a decrypted snapshot.
// This is the only integrity check available, since artifacts carry no authentication tag.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the given JSON Schema document, or DefaultSnapshotSchema if it's empty.
func NewValidator(schemaDoc []byte) (*Validator, error) {
	if len(bytes.TrimSpace(schemaDoc)) == 0 {
		schemaDoc = []byte(DefaultSnapshotSchema)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(snapshotSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add snapshot schema: %w", err)
	}
	sch, err := c.Compile(snapshotSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile snapshot schema: %w", err)
	}
	return &Validator{schema: sch}, nil
}

// Validate fails with ErrDecryptionFailed if plaintext isn't a JSON document matching the schema.
func (v *Validator) Validate(plaintext string) error {
	if err := v.check(plaintext); err != nil {
		return fmt.Errorf("%w: decrypted data %v, wrong password or corrupted artifact", ErrDecryptionFailed, err)
	}
	return nil
}

// ValidateInput fails with ErrInvalidInput if a snapshot about to be encrypted couldn't pass Validate later.
func (v *Validator) ValidateInput(plaintext string) error {
	if err := v.check(plaintext); err != nil {
		return fmt.Errorf("%w: plaintext %v", ErrInvalidInput, err)
	}
	return nil
}

func (v *Validator) check(plaintext string) error {
	if !json.Valid([]byte(plaintext)) {
		return errors.New("is not valid JSON")
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(plaintext))
	if err != nil {
		return fmt.Errorf("is not valid JSON: %v", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("doesn't match the snapshot schema: %v", err)
	}
	return nil
}

package config

import (
	"sync"

	"github.com/grovetools/gitbutler/schema"
)

var (
	schemaOnce sync.Once
	schemaData []byte
	schemaErr  error
)

// SchemaValidator validates raw configuration documents against the
// schema generated from Config.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator() (*SchemaValidator, error) {
	schemaOnce.Do(func() {
		schemaData, schemaErr = GenerateSchema()
	})
	if schemaErr != nil {
		return nil, schemaErr
	}

	validator, err := schema.NewValidator("gitbutler.schema.json", schemaData)
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{validator: validator}, nil
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}

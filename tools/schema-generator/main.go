// Command schema-generator writes the JSON schemas of gitbutler.yml and of
// its "logging" extension section under schema/definitions.
package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/gitbutler/config"
	"github.com/grovetools/gitbutler/logging"
	"github.com/invopop/jsonschema"
)

const outputDir = "schema/definitions"

func main() {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	base, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}
	write("gitbutler.schema.json", base)

	loggingSchema, err := generateLoggingSchema()
	if err != nil {
		log.Fatalf("Error generating logging schema: %v", err)
	}
	write("logging.schema.json", loggingSchema)
}

func generateLoggingSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&logging.Config{})
	schema.Title = "GitButler Logging Configuration"
	schema.Description = "Schema for the 'logging' section in gitbutler.yml."
	// Every logging field is optional
	schema.Required = nil

	return json.MarshalIndent(schema, "", "  ")
}

func write(name string, data []byte) {
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}
	log.Printf("Successfully generated schema at %s", path)
}

// Package schema compiles the generated JSON Schemas and checks decoded
// documents against them.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is a single failed keyword, located by JSON pointer.
type Violation struct {
	Path    string
	Message string
}

// ViolationError lists every leaf failure of a document.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		path := v.Path
		if path == "" {
			path = "/"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", path, v.Message))
	}
	return "document does not match schema: " + strings.Join(lines, "; ")
}

// Validator checks documents against one compiled schema.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles a Draft 7 schema registered under url.
func NewValidator(url string, data []byte) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", url, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks doc, which may be any JSON-marshalable value such as a
// decoded YAML or TOML map. Failures are returned as *ViolationError.
func (v *Validator) Validate(doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	err = v.compiled.Validate(generic)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	out := &ViolationError{}
	leaves(verr, out)
	if len(out.Violations) == 0 {
		out.Violations = append(out.Violations, Violation{Path: verr.InstanceLocation, Message: verr.Message})
	}
	return out
}

func leaves(e *jsonschema.ValidationError, out *ViolationError) {
	if len(e.Causes) == 0 {
		out.Violations = append(out.Violations, Violation{Path: e.InstanceLocation, Message: e.Message})
		return
	}
	for _, c := range e.Causes {
		leaves(c, out)
	}
}

// Package schema compiles and applies JSON Schemas for two purposes: the
// request's schema must itself be a well-formed object schema before
// it is ever handed to a provider CLI, and a provider's structured output
// must validate against that same schema before it is returned to the
// caller.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

// Compiled is a schema that has been structurally checked and resolved,
// ready to validate instances.
type Compiled struct {
	raw      map[string]any
	resolved *jsonschema.Resolved
}

// Compile checks that raw is a well-formed object schema (a JSON object,
// "type": "object", and a "properties" object) and resolves it. Providers
// only ever receive schemas that have already passed through Compile.
func Compile(raw map[string]any) (*Compiled, error) {
	if err := checkShape(raw); err != nil {
		return nil, apierr.InvalidSchema(err.Error())
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, apierr.InvalidSchema(fmt.Sprintf("schema is not serializable: %v", err))
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apierr.InvalidSchema(fmt.Sprintf("schema does not parse as JSON Schema: %v", err))
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, apierr.InvalidSchema(fmt.Sprintf("schema does not resolve: %v", err))
	}

	return &Compiled{raw: raw, resolved: resolved}, nil
}

// checkShape enforces the request-level constraint that the schema
// describes a single JSON object, not an array, scalar, or anyOf/oneOf root.
func checkShape(raw map[string]any) error {
	if raw == nil {
		return fmt.Errorf("schema must not be empty")
	}
	typ, ok := raw["type"]
	if !ok {
		return fmt.Errorf(`schema must set "type": "object"`)
	}
	if s, ok := typ.(string); !ok || s != "object" {
		return fmt.Errorf(`schema "type" must be "object", got %v`, typ)
	}
	props, ok := raw["properties"]
	if !ok {
		return fmt.Errorf(`schema must define "properties"`)
	}
	if _, ok := props.(map[string]any); !ok {
		return fmt.Errorf(`schema "properties" must be an object`)
	}
	return nil
}

// Validate checks output against c, returning an OutputValidation apierr
// naming every violation when it does not conform.
func (c *Compiled) Validate(output json.RawMessage) error {
	var v any
	if err := json.Unmarshal(output, &v); err != nil {
		return apierr.OutputParse(fmt.Sprintf("structured output is not valid JSON: %v", err), string(output))
	}

	if err := c.resolved.Validate(v); err != nil {
		return apierr.OutputValidation(leafErrors(err), output)
	}
	return nil
}

// leafErrors flattens err into one message per violation. jsonschema-go
// reports every simultaneous violation as a joined error tree (the standard
// `Unwrap() []error` multi-error shape, plus ordinary single-cause
// wrapping); walking both forms down to their leaves yields one string per
// violation, each carrying that violation's own path pointer into the
// instance, instead of collapsing the whole tree into one opaque message.
func leafErrors(err error) []string {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, sub := range multi.Unwrap() {
			out = append(out, leafErrors(sub)...)
		}
		return out
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		if inner := wrapped.Unwrap(); inner != nil {
			return leafErrors(inner)
		}
	}
	return []string{err.Error()}
}

// Raw returns the schema as originally supplied, for adapters that need to
// hand it to a provider CLI verbatim (as an argv flag, a temp file, or
// embedded in a prompt).
func (c *Compiled) Raw() map[string]any {
	return c.raw
}

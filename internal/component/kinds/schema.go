package kinds

import (
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

var (
	schemaOnce     sync.Once
	compiledSchema map[Kind]*jsonschema.Schema
	schemaErr      error
)

func compileSchemas() {
	compiledSchema = make(map[Kind]*jsonschema.Schema, len(All))
	for _, k := range All {
		def, ok := Lookup(k)
		if !ok {
			schemaErr = fmt.Errorf("no definition for %s", k)
			return
		}
		compiler := jsonschema.NewCompiler()
		schema, err := compiler.Compile([]byte(def.Schema))
		if err != nil {
			schemaErr = fmt.Errorf("compile %s schema: %w", k, err)
			return
		}
		compiledSchema[k] = schema
	}
}

// validateSchema checks raw progress JSON against the kind's JSON schema.
func validateSchema(k Kind, raw []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	schema, ok := compiledSchema[k]
	if !ok {
		return fmt.Errorf("no schema for %s", k)
	}
	result := schema.ValidateJSON(raw)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%s progress failed schema validation: %v", k, result.Errors)
}

// ValidateProgressJSON checks raw progress JSON against the kind's schema
// without decoding it first. The integrity engine uses it on untrusted input.
func ValidateProgressJSON(k Kind, raw []byte) error {
	return validateSchema(k, raw)
}

package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/ikigai-term/ikigai/internal/ikerr"
)

// GenerateParametersSchema reflects a Go value into the JSON Schema string
// a ToolDef.ParametersSchemaJSON expects, so a tool's invocation contract
// can be declared as a typed Go struct instead of hand-written JSON.
func GenerateParametersSchema(v any) ikerr.Result[string] {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(v)

	out, err := json.Marshal(schema)
	if err != nil {
		return ikerr.Err[string](ikerr.Wrap(err, ikerr.Internal, "failed to marshal generated tool parameter schema"))
	}
	return ikerr.Ok(string(out))
}

// ValidateParametersSchema parses a tool's declared parameters schema,
// rejecting malformed JSON before it ever reaches a provider adapter.
func ValidateParametersSchema(schemaJSON string) *ikerr.Error {
	if schemaJSON == "" {
		return nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(schemaJSON), &v); err != nil {
		return ikerr.Wrap(err, ikerr.Parse, "tool parameters_schema_json is not valid JSON")
	}
	return nil
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	City string `json:"city" jsonschema:"required"`
}

func TestGenerateParametersSchemaProducesValidJSON(t *testing.T) {
	res := GenerateParametersSchema(weatherArgs{})
	schemaJSON, err := res.Unwrap()
	require.Nil(t, err)
	assert.Nil(t, ValidateParametersSchema(schemaJSON))
	assert.Contains(t, schemaJSON, "city")
}

func TestValidateParametersSchemaRejectsMalformedJSON(t *testing.T) {
	err := ValidateParametersSchema("{not json")
	require.NotNil(t, err)
	assert.Equal(t, "parse", string(err.Cat))
}

func TestValidateParametersSchemaAcceptsEmptyString(t *testing.T) {
	assert.Nil(t, ValidateParametersSchema(""))
}

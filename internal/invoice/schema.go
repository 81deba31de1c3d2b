package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
)

// BuildInvoiceJSONSchema returns the minimal shape an edited invoice must keep before
// it is sent back: a named file, flat detail groups, and line items as objects.
func BuildInvoiceJSONSchema() map[string]any {
	leaf := map[string]any{
		"type": []any{"string", "number", "boolean", "null"},
	}
	flatGroup := map[string]any{
		"type":                 "object",
		"additionalProperties": leaf,
	}
	return map[string]any{
		"type":     "object",
		"required": []any{constants.KeyFilename},
		"properties": map[string]any{
			constants.KeyFilename: map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			constants.KeyInvoiceDetails: flatGroup,
			constants.KeyTaxDetails:     flatGroup,
			"lineItems": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "object"},
			},
		},
		"additionalProperties": true,
	}
}

// Validator checks records against a compiled schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator(schemaMap map[string]any) (*Validator, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("invoice.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// DefaultValidator compiles BuildInvoiceJSONSchema.
func DefaultValidator() *Validator {
	v, err := NewValidator(BuildInvoiceJSONSchema())
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Validator) Validate(record *formengine.Mapping) error {
	if record == nil {
		return common.NewAppError("SCHEMA", "no invoice record", common.ErrValidation)
	}
	raw, err := record.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return common.NewAppError("SCHEMA", fmt.Sprintf("invoice does not match schema: %v", err), common.ErrValidation)
	}
	return nil
}

package submitcontact

import (
	"encoding/json"

	"contact-functions/internal/common/errors"
	"contact-functions/internal/common/validation"
)

// bodySchema accepts any JSON object; field rules are applied afterwards
// so the first failing field can be named.
const bodySchema = `{"type": "object"}`

// requiredFields are checked in this order; the first failure is reported.
var requiredFields = []struct {
	Field string
	Label string
}{
	{"name", "Name"},
	{"email", "Email"},
	{"message", "Message"},
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"name", "email", "message"},
		Properties: map[string]validation.Property{
			"name": {
				Type:        "string",
				Description: "Submitter's name",
				NotBlank:    true,
			},
			"email": {
				Type:        "string",
				Description: "Reply address",
				NotBlank:    true,
			},
			"message": {
				Type:        "string",
				Description: "Inquiry text",
				NotBlank:    true,
			},
			"phone": {
				Description: "Optional phone number; non-string values are recorded as empty",
			},
		},
		AdditionalProperties: true,
	}
}

// DecodeBody parses raw as a JSON object. Anything else, including an
// empty body or null, is an invalid-JSON client error.
func DecodeBody(raw []byte) (map[string]interface{}, error) {
	if err := validation.ValidateDocument(raw, bodySchema); err != nil {
		return nil, errors.NewInvalidJSONError(err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.NewInvalidJSONError(err)
	}
	return body, nil
}

// ValidateInput checks name, email and message in order and builds the Input.
func ValidateInput(body map[string]interface{}) (*Input, error) {
	result := validation.ValidateInput(body, GetInputSchema())

	fields := make([]string, len(requiredFields))
	for i, f := range requiredFields {
		fields[i] = f.Field
	}
	if failed, ok := result.FirstFailing(fields...); ok {
		for _, f := range requiredFields {
			if f.Field == failed {
				return nil, errors.NewFieldValidationError(f.Field, f.Label)
			}
		}
	}

	input := &Input{
		Name:    body["name"].(string),
		Email:   body["email"].(string),
		Message: body["message"].(string),
	}
	if phone, ok := body["phone"].(string); ok {
		input.Phone = phone
	}

	return input, nil
}

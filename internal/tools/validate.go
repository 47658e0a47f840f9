package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map

// ValidateParams checks tool call arguments against the tool's JSON Schema.
// It returns human-readable violation messages, empty when the arguments
// are valid. A schema that fails to compile is treated as accepting
// everything so a malformed tool definition cannot brick the turn.
func ValidateParams(toolName string, schema map[string]any, params map[string]any) []string {
	compiled, err := compileSchema(toolName, schema)
	if err != nil || compiled == nil {
		return nil
	}

	// Round-trip through JSON so Go-native values (int, struct) match
	// the types the validator expects.
	payload, err := json.Marshal(params)
	if err != nil {
		return []string{fmt.Sprintf("arguments are not JSON-encodable: %v", err)}
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return []string{fmt.Sprintf("arguments are not valid JSON: %v", err)}
	}

	if err := compiled.Validate(decoded); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return flattenViolations(ve)
		}
		return []string{err.Error()}
	}
	return nil
}

func compileSchema(toolName string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString(toolName+".schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// flattenViolations walks the validation error tree and collects the
// leaf messages, prefixed with the parameter location.
func flattenViolations(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		loc = strings.ReplaceAll(loc, "/", ".")
		if loc == "" {
			return []string{ve.Message}
		}
		return []string{fmt.Sprintf("%s: %s", loc, ve.Message)}
	}

	var out []string
	for _, cause := range ve.Causes {
		out = append(out, flattenViolations(cause)...)
	}
	return out
}

func joinViolations(violations []string) string {
	return strings.Join(violations, "; ")
}

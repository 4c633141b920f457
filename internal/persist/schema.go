package persist

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var documentSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("heels.schema.json", schemaJSON)
})

// CheckSchema validates a raw YAML document against the embedded schema.
// It runs before the typed decode, which would silently drop unknown keys.
// An empty document is valid.
func CheckSchema(b []byte) error {
	s, err := documentSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	v, err := jsonShape(raw)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// jsonShape converts a decoded YAML tree into the values encoding/json
// produces: string map keys and float64 numbers.
func jsonShape(v any) (any, error) {
	b, err := json.Marshal(stringKeys(v))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stringKeys rewrites maps with non-string keys, such as the numeric world
// ids under characters.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	}
	return v
}

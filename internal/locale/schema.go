package locale

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// fixtureSchema describes a locale fixtures document.
const fixtureSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["locales"],
  "properties": {
    "locales": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["locale", "url", "expected_title"],
        "additionalProperties": false,
        "properties": {
          "locale": {"type": "string", "minLength": 2},
          "url": {"type": "string", "pattern": "^https?://"},
          "expected_title": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(fixtureSchema)

// validateDocument checks the shape of a YAML fixtures document before it is
// decoded, so typos such as "expected:" are reported instead of dropped.
func validateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse locale fixtures: %w", err)
	}
	if doc == nil {
		return errors.New("locale fixtures document is empty")
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert locale fixtures: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(docJSON))
	if err != nil {
		return fmt.Errorf("failed to validate locale fixtures: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid locale fixtures:\n%s", strings.Join(msgs, "\n"))
}

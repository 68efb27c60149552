package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxStructuredRepairAttempts limits the follow-up turns asking the model to
// fix output that failed to parse or validate.
const maxStructuredRepairAttempts = 2

// compiled caches compiled schemas by their raw text.
var compiled sync.Map

// parseStructuredJSON parses JSON from model output, tolerating markdown
// code fences and prose around the document.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	for _, candidate := range []string{content, stripCodeFences(content), extractJSONCandidate(content)} {
		if candidate == "" {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		normalized, err := json.Marshal(parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize structured output: %w", err)
		}
		return normalized, nil
	}
	return nil, fmt.Errorf("failed to parse structured JSON")
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if last := len(lines) - 1; strings.TrimSpace(lines[last]) == "```" {
		lines = lines[:last]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate returns the span from the first '{' or '[' to the
// last matching closer.
func extractJSONCandidate(content string) string {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if content[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(content, closer)
	if end < start {
		return ""
	}
	return content[start : end+1]
}

// validateStructuredJSON validates parsed JSON against the response format's
// schema. Formats without a schema accept anything.
func validateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}
	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaRaw)
	if s, ok := compiled.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	core, err := innerSchema(schemaRaw)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(core)); err != nil {
		return nil, fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile structured schema: %w", err)
	}
	compiled.Store(key, schema)
	return schema, nil
}

// innerSchema unwraps {"name","strict","schema":{...}} to the schema itself.
func innerSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var wrapper struct {
		Schema json.RawMessage `json:"schema"`
	}
	if err := json.Unmarshal(schemaRaw, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}
	if len(wrapper.Schema) > 0 {
		return wrapper.Schema, nil
	}
	return schemaRaw, nil
}

func structuredRepairPrompt(schemaRaw json.RawMessage, issue error) string {
	return fmt.Sprintf(`Your previous reply could not be used: %v

Reply again with ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema:
%s`, issue, string(schemaRaw))
}

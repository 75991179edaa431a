package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExtractJSON parses a JSON object out of model output, with lightweight
// recovery for markdown code fences and surrounding commentary. The stages
// are strict decode, fence stripping, then first-balanced-braces extraction;
// when all fail the caller applies its degraded default rather than erroring.
func ExtractJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty model output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("failed to normalize extracted JSON: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in model output")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return ""
	}

	fenced := trimmed[start:]
	lines := strings.Split(fenced, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop the opening fence line (which may carry a language tag).
	lines = lines[1:]
	for i, line := range lines {
		if strings.TrimSpace(line) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(trimmed, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// CompileSchema compiles a JSON Schema document for response validation.
func CompileSchema(schemaJSON string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON checks extracted JSON against a compiled schema. A validation
// failure is treated by callers the same way as a parse failure: degrade,
// never propagate.
func ValidateJSON(schema *jsonschema.Schema, raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode JSON for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("model output does not match schema: %w", err)
	}
	return nil
}

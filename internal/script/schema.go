package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiledSchema validates a raw JSON response against a fixed shape
// before it's unmarshaled, catching malformed LLM output (missing
// fields, wrong types) earlier and with a clearer error than a bare
// json.Unmarshal failure would give.
type compiledSchema struct {
	schema *jsonschema.Schema
}

func mustCompileSchema(name, schemaJSON string) *compiledSchema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("script: invalid schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("script: compile schema %s: %v", name, err))
	}
	return &compiledSchema{schema: s}
}

// Validate parses jsonText as generic JSON and checks it against the
// compiled schema.
func (s *compiledSchema) Validate(jsonText string) error {
	var v any
	if err := json.Unmarshal([]byte(jsonText), &v); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	return s.schema.Validate(v)
}

var analysisSchema = mustCompileSchema("analysis.json", `{
	"type": "object",
	"required": ["summary", "key_points", "topics", "complexity"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"key_points": {"type": "array", "items": {"type": "string"}},
		"topics": {"type": "array", "items": {"type": "string"}},
		"complexity": {"enum": ["beginner", "intermediate", "advanced"]}
	}
}`)

var personaResearchSchema = mustCompileSchema("persona_research.json", `{
	"type": "object",
	"required": ["invented_name", "gender", "perspective", "talking_points", "detailed_profile_text"],
	"properties": {
		"invented_name": {"type": "string", "minLength": 1},
		"gender": {"type": "string"},
		"role": {"type": "string"},
		"perspective": {"type": "string", "minLength": 1},
		"talking_points": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"detailed_profile_text": {"type": "string", "minLength": 1}
	}
}`)

var outlineSchema = mustCompileSchema("outline.json", `{
	"type": "object",
	"required": ["title", "summary", "segments"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"summary": {"type": "string"},
		"word_budget": {"type": "number"},
		"segments": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["title", "target_words", "speaker_id"],
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"speaker_id": {"type": "string", "minLength": 1},
					"target_words": {"type": "number"}
				}
			}
		}
	}
}`)

var dialogueSchema = mustCompileSchema("dialogue.json", `{
	"type": "object",
	"required": ["turns"],
	"properties": {
		"turns": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["speaker_id", "text"],
				"properties": {
					"speaker_id": {"type": "string", "minLength": 1},
					"text": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`)

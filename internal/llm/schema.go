package llm

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON Schema describing the shape a backend must return.
type Schema struct {
	name     string
	source   string
	compiled *jsonschema.Schema
}

// NewSchema compiles a JSON Schema document.
func NewSchema(name, source string) (*Schema, error) {
	compiled, err := jsonschema.CompileString(name+".json", source)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, source: source, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level schemas known to be valid.
func MustSchema(name, source string) *Schema {
	s, err := NewSchema(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema identifier used in logs and errors.
func (s *Schema) Name() string { return s.name }

// Source returns the schema document, suitable for embedding in prompts.
func (s *Schema) Source() string { return s.source }

// Validate checks a decoded JSON value against the schema.
func (s *Schema) Validate(v any) error { return s.compiled.Validate(v) }

// QuestionListSchema is the shape of a question generation reply.
var QuestionListSchema = MustSchema("question_list", `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`)

// AnswerListSchema is the shape of an answer generation reply. The array is
// named "questions" even though it carries question/answer pairs.
var AnswerListSchema = MustSchema("answer_list", `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "answer"],
        "properties": {
          "question": {"type": "string"},
          "answer": {"type": "string"}
        }
      }
    }
  }
}`)

// QuestionList is the decoded form of QuestionListSchema.
type QuestionList struct {
	Questions []string `json:"questions"`
}

// AnswerList is the decoded form of AnswerListSchema.
type AnswerList struct {
	Questions []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"questions"`
}

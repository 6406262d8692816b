package resume

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gorm.io/datatypes"
)

// ErrInvalidEncoding is returned when a sub-list does not match its JSON schema.
var ErrInvalidEncoding = errors.New("invalid sub-list encoding")

const experiencesSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["job_title", "company", "job_desc"],
    "properties": {
      "job_title": {"type": "string", "maxLength": 5000},
      "company":   {"type": "string", "maxLength": 5000},
      "job_desc":  {"type": "string", "maxLength": 5000}
    },
    "anyOf": [
      {"properties": {"job_title": {"minLength": 1}}},
      {"properties": {"company": {"minLength": 1}}}
    ]
  }
}`

const projectsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["name", "description", "link"],
    "properties": {
      "name":        {"type": "string", "minLength": 1, "maxLength": 5000},
      "description": {"type": "string", "maxLength": 5000},
      "link":        {"type": "string"}
    }
  }
}`

const certificationsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["name", "issuer", "year"],
    "properties": {
      "name":   {"type": "string", "minLength": 1, "maxLength": 5000},
      "issuer": {"type": "string", "maxLength": 5000},
      "year":   {"type": "string"}
    }
  }
}`

var (
	experiencesValidator    = mustSchema(experiencesSchema)
	projectsValidator       = mustSchema(projectsSchema)
	certificationsValidator = mustSchema(certificationsSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile sub-list schema: %v", err))
	}
	return s
}

// encodeList returns nil for an empty list so the column is stored as NULL.
func encodeList[T any](items []T, schema *gojsonschema.Schema) (datatypes.JSON, error) {
	if len(items) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode sub-list: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate sub-list: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, strings.Join(msgs, "; "))
	}
	return datatypes.JSON(raw), nil
}

func decodeList[T any](raw datatypes.JSON) ([]T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode sub-list: %w", err)
	}
	return items, nil
}

func encodeExperiences(items []Experience) (datatypes.JSON, error) {
	return encodeList(items, experiencesValidator)
}

func encodeProjects(items []Project) (datatypes.JSON, error) {
	return encodeList(items, projectsValidator)
}

func encodeCertifications(items []Certification) (datatypes.JSON, error) {
	return encodeList(items, certificationsValidator)
}

func joinSkills(skills []string) string {
	return strings.Join(skills, ", ")
}

// SplitSkills splits a comma separated list, trimming entries and dropping empty ones.
func SplitSkills(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

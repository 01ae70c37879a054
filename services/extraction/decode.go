package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ParseError means the completion was not a JSON object at all.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON: %v", e.Err)
}

// ValidationError means the JSON parsed but does not satisfy the schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "\n")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report problems with the json field names the model sees
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode parses raw completion output into the schema's document type.
// Required keys must be present and not null; an empty string is a value.
func Decode(schema SchemaName, raw string) (Document, error) {
	document := newDocument(schema)
	if document == nil {
		_, err := LookupSchema(string(schema))
		return nil, err
	}
	shape, err := definition(schema)
	if err != nil {
		return nil, err
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &object); err != nil {
		return nil, &ParseError{Err: err}
	}

	missing := missingKeys(shape, object)
	problems := make([]string, 0, len(missing))
	for _, key := range missing {
		problems = append(problems, fmt.Sprintf("%s: field required", key))
	}

	payload, err := json.Marshal(wholeNumbersAsIntegers(shape, object))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(document); err != nil {
		return nil, &ValidationError{Problems: append(problems, decodeProblem(err))}
	}

	if err := validate.Struct(document); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return nil, &ValidationError{Problems: append(problems, err.Error())}
		}
		for _, fe := range fieldErrors {
			if slices.Contains(missing, fe.Field()) {
				continue
			}
			problems = append(problems, describeFieldError(fe))
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return document, nil
}

// missingKeys lists required keys that are absent or null, in schema order.
func missingKeys(shape jsonSchema, object map[string]json.RawMessage) []string {
	var missing []string
	for _, key := range shape.Required {
		value, ok := object[key]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			missing = append(missing, key)
		}
	}
	return missing
}

// wholeNumbersAsIntegers rewrites 80.0 as 80 for integer properties. Fractional
// values are left alone and fail decoding.
func wholeNumbersAsIntegers(shape jsonSchema, object map[string]json.RawMessage) map[string]json.RawMessage {
	for key, prop := range shape.Properties {
		if prop.Type != "integer" {
			continue
		}
		value, ok := object[key]
		if !ok {
			continue
		}
		var number float64
		if err := json.Unmarshal(value, &number); err != nil {
			continue
		}
		if number == math.Trunc(number) && math.Abs(number) < 1<<53 {
			object[key] = json.RawMessage(strconv.FormatInt(int64(number), 10))
		}
	}
	return object
}

func decodeProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type.String(), typeErr.Value)
	}
	return err.Error()
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: field required", fe.Field())
	case "eq":
		return fmt.Sprintf("%s: must be %q", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s: must be greater than or equal to %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s: must be less than or equal to %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s: failed %s validation", fe.Field(), fe.Tag())
}

// stripCodeFences removes a ```json fence some models wrap around the object.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
)

// FieldError is one entry of a 422 response, shaped like FastAPI's validation errors.
type FieldError struct {
	Type string   `json:"type"`
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
}

type validationError struct {
	fields []FieldError
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%d invalid field(s)", len(e.fields))
}

var errMalformed = errors.New("malformed JSON body")

var requiredFields = []string{"email", "secret", "url"}

// decodeTaskRequest parses a /quiz body. Syntax errors wrap errMalformed; shape
// errors are a *validationError. Unknown fields are kept in Extra.
func decodeTaskRequest(body io.Reader) (quiz.TaskRequest, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return quiz.TaskRequest{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return quiz.TaskRequest{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if dec.More() {
		return quiz.TaskRequest{}, fmt.Errorf("%w: trailing data after JSON value", errMalformed)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return quiz.TaskRequest{}, &validationError{fields: []FieldError{{
			Type: "model_attributes_type",
			Loc:  []string{"body"},
			Msg:  "Input should be a valid dictionary or object to extract fields from",
		}}}
	}

	var fields []FieldError
	values := make(map[string]string, len(requiredFields))
	for _, name := range requiredFields {
		raw, present := obj[name]
		s, isString := raw.(string)
		switch {
		case !present:
			fields = append(fields, FieldError{Type: "missing", Loc: []string{"body", name}, Msg: "Field required"})
		case !isString:
			fields = append(fields, FieldError{Type: "string_type", Loc: []string{"body", name}, Msg: "Input should be a valid string"})
		default:
			values[name] = s
		}
	}
	if len(fields) > 0 {
		return quiz.TaskRequest{}, &validationError{fields: fields}
	}

	extra := make(map[string]any)
	for k, v := range obj {
		if _, known := values[k]; !known {
			extra[k] = v
		}
	}
	return quiz.TaskRequest{
		Email:  values["email"],
		Secret: values["secret"],
		URL:    values["url"],
		Extra:  extra,
	}, nil
}

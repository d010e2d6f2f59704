package tools

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnknownTool is returned for tags outside the closed action set.
var ErrUnknownTool = errors.New("unknown tool")

// ValidateAction checks an action's arguments against its schema and tool-specific rules.
func ValidateAction(a Action) error {
	schema, ok := SchemaFor(a.Kind)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownTool, a.Name)
	}
	if err := validateAgainstSchema(schema, a.Args); err != nil {
		return err
	}

	switch a.Kind {
	case KindClick, KindFillText:
		if strings.TrimSpace(a.String("selector")) == "" {
			return errors.New("selector must not be empty")
		}
	case KindCallAPI, KindReadFile:
		return validateHTTPURL("url", a.String("url"))
	case KindRunPython:
		if strings.TrimSpace(a.String("code")) == "" {
			return errors.New("code must not be empty")
		}
	case KindSubmit:
		return validateHTTPURL("submission_url", a.String("submission_url"))
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}

func validateAgainstSchema(schema Schema, args map[string]any) error {
	for _, field := range schema.Parameters {
		val, exists := args[field.Name]
		if field.Required && !exists {
			return fmt.Errorf("%s is required", field.Name)
		}
		if !exists {
			continue
		}
		switch field.Type {
		case "string":
			if _, ok := val.(string); !ok {
				return fmt.Errorf("%s must be string", field.Name)
			}
		case "object":
			if _, ok := val.(map[string]any); !ok {
				return fmt.Errorf("%s must be object", field.Name)
			}
		}
	}
	return nil
}

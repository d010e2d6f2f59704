package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of actions the model may request.
type Kind string

const (
	KindClick      Kind = "click"
	KindFillText   Kind = "fill_text"
	KindCallAPI    Kind = "call_api"
	KindReadFile   Kind = "read_file"
	KindRunPython  Kind = "run_python_code"
	KindScreenshot Kind = "take_screenshot_and_analyze"
	KindSubmit     Kind = "submit_answer"
	// KindUnrecognized marks a tag outside the known set; Action.Name keeps the tag.
	KindUnrecognized Kind = "unrecognized"
)

// Kinds lists every dispatchable action.
var Kinds = []Kind{KindClick, KindFillText, KindCallAPI, KindReadFile, KindRunPython, KindScreenshot, KindSubmit}

func parseKind(name string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if k == known {
			return k
		}
	}
	return KindUnrecognized
}

// Action is one decoded model decision.
type Action struct {
	Kind Kind
	// Name is the tool tag exactly as the model wrote it.
	Name    string
	Thought string
	Args    map[string]any
}

// String returns a string argument or "".
func (a Action) String(key string) string {
	s, _ := a.Args[key].(string)
	return s
}

// Headers returns the headers argument as a string map.
func (a Action) Headers() map[string]string {
	raw, ok := a.Args["headers"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}

// ErrNoJSON is returned when the model reply holds no JSON object.
var ErrNoJSON = errors.New("reply does not contain a JSON object")

var argAliases = map[string]string{
	"answer":          "answer_json",
	"analysis_prompt": "prompt",
	"question":        "prompt",
	"submit_url":      "submission_url",
	"python_code":     "code",
	"value":           "text",
}

// DecodeAction parses a model reply of the form
//
//	{"tool": "submit_answer", "submission_url": "...", "answer_json": {...}}
//
// Arguments may also be nested under "args" or "arguments". Markdown code fences
// and prose around the object are tolerated. An unknown tool tag decodes to
// KindUnrecognized rather than an error.
func DecodeAction(reply string) (Action, error) {
	body, err := extractObject(reply)
	if err != nil {
		return Action{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}

	name := firstString(fields, "tool", "tool_name", "action", "name")
	if name == "" {
		return Action{}, errors.New(`action is missing the "tool" field`)
	}

	args := make(map[string]any, len(fields))
	for _, key := range []string{"args", "arguments", "parameters"} {
		if nested, ok := fields[key].(map[string]any); ok {
			for k, v := range nested {
				args[k] = v
			}
		}
	}
	for k, v := range fields {
		switch k {
		case "tool", "tool_name", "action", "name", "args", "arguments", "parameters", "thought", "reasoning":
			continue
		}
		if _, exists := args[k]; !exists {
			args[k] = v
		}
	}
	for alias, canonical := range argAliases {
		if v, ok := args[alias]; ok {
			if _, exists := args[canonical]; !exists {
				args[canonical] = v
			}
			delete(args, alias)
		}
	}

	return Action{
		Kind:    parseKind(name),
		Name:    name,
		Thought: firstString(fields, "thought", "reasoning"),
		Args:    args,
	}, nil
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func extractObject(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	if body, ok := fenced(s); ok && json.Valid([]byte(body)) {
		return []byte(body), nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	return []byte(s[start : end+1]), nil
}

// fenced returns the body of the first markdown code fence in s. The info
// string is dropped whatever its case.
func fenced(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	rest := s[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	} else if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
		rest = rest[4:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

package tools

import (
	"fmt"
	"strings"
)

// Schema describes a tool for prompt documentation and argument validation.
type Schema struct {
	Name        Kind          `json:"name"`
	Description string        `json:"description"`
	Parameters  []SchemaField `json:"parameters"`
}

// SchemaField describes a single parameter.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, object, any
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

var schemas = []Schema{
	{
		Name:        KindClick,
		Description: "Click the first element matching a CSS selector.",
		Parameters: []SchemaField{
			{Name: "selector", Type: "string", Description: "CSS selector", Required: true},
		},
	},
	{
		Name:        KindFillText,
		Description: "Replace the value of an input matching a CSS selector.",
		Parameters: []SchemaField{
			{Name: "selector", Type: "string", Description: "CSS selector", Required: true},
			{Name: "text", Type: "string", Description: "Text to type", Required: true},
		},
	},
	{
		Name:        KindCallAPI,
		Description: "HTTP GET a URL and return its status and body.",
		Parameters: []SchemaField{
			{Name: "url", Type: "string", Description: "Absolute http(s) URL", Required: true},
			{Name: "headers", Type: "object", Description: "Optional request headers"},
		},
	},
	{
		Name:        KindReadFile,
		Description: "Download a file (PDF, CSV, HTML, text) and return its text content.",
		Parameters: []SchemaField{
			{Name: "url", Type: "string", Description: "Absolute http(s) URL", Required: true},
		},
	},
	{
		Name:        KindRunPython,
		Description: "Run Python 3 code in a sandbox and return what it prints.",
		Parameters: []SchemaField{
			{Name: "code", Type: "string", Description: "Python source; print() the values you need", Required: true},
		},
	},
	{
		Name:        KindScreenshot,
		Description: "Screenshot the current page and ask a vision model about it.",
		Parameters: []SchemaField{
			{Name: "prompt", Type: "string", Description: "What to look for", Required: true},
		},
	},
	{
		Name:        KindSubmit,
		Description: "Submit the final answer. Ends the task for this page.",
		Parameters: []SchemaField{
			{Name: "submission_url", Type: "string", Description: "Endpoint named on the page", Required: true},
			{Name: "answer_json", Type: "any", Description: `{"answer": <value>}; value may be a number, string, boolean, base64 data URI, or JSON object/array`, Required: true},
		},
	},
}

// Schemas returns descriptors for the given kinds, or for every kind when none are given.
func Schemas(kinds ...Kind) []Schema {
	if len(kinds) == 0 {
		return append([]Schema(nil), schemas...)
	}
	out := make([]Schema, 0, len(kinds))
	for _, k := range kinds {
		if s, ok := SchemaFor(k); ok {
			out = append(out, s)
		}
	}
	return out
}

// SchemaFor returns the schema of one kind.
func SchemaFor(k Kind) (Schema, bool) {
	for _, s := range schemas {
		if s.Name == k {
			return s, true
		}
	}
	return Schema{}, false
}

// Describe renders schemas as a compact list for a system prompt.
func Describe(list []Schema) string {
	var b strings.Builder
	for _, s := range list {
		params := make([]string, 0, len(s.Parameters))
		for _, p := range s.Parameters {
			opt := ""
			if !p.Required {
				opt = "?"
			}
			params = append(params, fmt.Sprintf("%s%s: %s", p.Name, opt, p.Type))
		}
		fmt.Fprintf(&b, "- %s(%s): %s\n", s.Name, strings.Join(params, ", "), s.Description)
	}
	return b.String()
}

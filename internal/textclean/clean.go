// Package textclean reduces page markup to plain text for prompts.
package textclean

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleBlock  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	svgBlock    = regexp.MustCompile(`(?is)<svg\b[^>]*>.*?</svg\s*>`)
	anyTag      = regexp.MustCompile(`<[^>]*>`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// CleanHTML drops script, style and svg blocks, strips remaining tags and
// collapses whitespace. Entities are left encoded, which keeps the function
// idempotent: after one pass no "<...>" sequence survives.
func CleanHTML(markup string) string {
	s := scriptBlock.ReplaceAllString(markup, " ")
	s = styleBlock.ReplaceAllString(s, " ")
	s = svgBlock.ReplaceAllString(s, " ")
	s = anyTag.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Excerpt returns at most n characters of s, never splitting a UTF-8 sequence.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Truncate is Excerpt with a marker appended when something was cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return Excerpt(s, n) + "\n[truncated]"
}

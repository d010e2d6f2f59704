// Package agent solves chains of quiz pages: it perceives a page, routes it to a
// specialist profile, runs a bounded perceive-think-act loop and follows the
// grading responses from one page to the next.
package agent

import (
	"go.opentelemetry.io/otel"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
)

var tracer = otel.Tracer("github.com/24f2000010/TDS-PROJ2-T32025/internal/agent")

// Task is one solving attempt for a single quiz page.
type Task struct {
	Request quiz.TaskRequest
	URL     string
	// Hint is embedded verbatim in the task instructions.
	Hint    string
	Profile quiz.Profile
	// Snapshot is the page as already perceived after navigation; empty means
	// the solver takes its own.
	Snapshot string
}

// Report summarises a finished chain.
type Report struct {
	RunID string
	// Visited lists every quiz URL entered, in order.
	Visited  []string
	Attempts int
	Outcome  quiz.Outcome
	Last     quiz.SubmissionResult
}

package quiz

// OutcomeKind enumerates what the supervisor does after a submission.
type OutcomeKind int

const (
	// OutcomeDone ends the chain.
	OutcomeDone OutcomeKind = iota
	// OutcomeContinue moves to NextURL.
	OutcomeContinue
	// OutcomeRetry re-solves the same URL with Reason as a hint.
	OutcomeRetry
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDone:
		return "done"
	case OutcomeContinue:
		return "continue"
	case OutcomeRetry:
		return "retry"
	}
	return "unknown"
}

// Outcome is the supervisor's decision for one submission.
type Outcome struct {
	Kind    OutcomeKind
	NextURL string
	Reason  string
}

// Decide maps a submission result onto exactly one outcome. A returned url always
// wins, whether or not the answer was correct.
func Decide(res SubmissionResult) Outcome {
	switch {
	case res.URL != "":
		return Outcome{Kind: OutcomeContinue, NextURL: res.URL}
	case res.Correct:
		return Outcome{Kind: OutcomeDone}
	default:
		return Outcome{Kind: OutcomeRetry, Reason: res.Reason}
	}
}

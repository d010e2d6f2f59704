// Package quiz holds the value types shared by the agent, the tools and the HTTP boundary.
package quiz

import (
	"strings"
)

// TaskRequest is an accepted quiz task. It is not modified after acceptance.
type TaskRequest struct {
	Email  string
	Secret string
	URL    string
	// Extra carries any additional fields of the inbound request.
	Extra map[string]any
}

const redacted = "[redacted]"

// Metadata returns the task as a flat map for prompts. The secret is redacted.
func (t TaskRequest) Metadata() map[string]any {
	out := make(map[string]any, len(t.Extra)+3)
	for k, v := range t.Extra {
		out[k] = v
	}
	out["email"] = t.Email
	out["url"] = t.URL
	if t.Secret != "" {
		out["secret"] = redacted
	}
	return out
}

// SubmissionResult is the grading response returned by a submission endpoint.
type SubmissionResult struct {
	Correct bool   `json:"correct"`
	Reason  string `json:"reason,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Profile names a specialist configuration for the solving loop.
type Profile string

const (
	ProfileSimple Profile = "SIMPLE"
	ProfileCode   Profile = "CODE"
	ProfilePro    Profile = "PRO"
)

// Profiles lists every profile from least to most capable.
var Profiles = []Profile{ProfileSimple, ProfileCode, ProfilePro}

// ParseProfile matches a profile name case-insensitively.
func ParseProfile(s string) (Profile, bool) {
	switch Profile(strings.ToUpper(strings.TrimSpace(s))) {
	case ProfileSimple:
		return ProfileSimple, true
	case ProfileCode:
		return ProfileCode, true
	case ProfilePro:
		return ProfilePro, true
	}
	return "", false
}

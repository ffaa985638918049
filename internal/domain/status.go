package domain

import "fmt"

// Status is the publication lifecycle state of an Article.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusRejected   Status = "rejected"
	StatusError      Status = "error"
)

// validTransitions lists every allowed (from, to) pair of the lifecycle:
// draft to processing, processing to published or rejected, and error as
// the parking state for exhausted or broken articles. error to draft is
// the operator re-queue path; the pipeline itself never takes it.
var validTransitions = map[Status][]Status{
	StatusDraft:      {StatusProcessing, StatusError},
	StatusProcessing: {StatusPublished, StatusRejected, StatusError},
	StatusError:      {StatusDraft},
	// published and rejected are terminal, retained for audit
}

// ParseStatus converts a raw string to a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusProcessing, StatusPublished, StatusRejected, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown article status %q", s)
}

// IsTransitionAllowed reports whether the lifecycle permits the move.
// A same-state "transition" is allowed: it is how a stage patches fields
// (attempt counters, error detail) under the same CAS guard without
// advancing the lifecycle.
func IsTransitionAllowed(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing pipeline transitions.
func IsTerminal(s Status) bool {
	return s == StatusPublished || s == StatusRejected
}
